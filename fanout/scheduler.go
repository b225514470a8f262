// Package fanout implements the Content Fan-out Scheduler: bounded
// concurrent per-concept content generation across three agents (tutorial,
// resources, quiz), idempotent resume via the framework's own per-concept
// status fields, and the Task's terminal transition to completed or
// partial_failure. It implements nodes.ContentScheduler.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/nodes"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// ErrMajorityFailure is returned when the batch's failure rate crosses the
// abort threshold: failed/attempted >= 0.5, or every attempted concept
// failed. Run marks the Task failed itself before returning this error.
var ErrMajorityFailure = errors.New("fanout: majority of concepts failed content generation")

// failureRateThreshold is the failed/attempted ratio at or above which the
// batch aborts.
const failureRateThreshold = 0.5

// defaultParallelConceptLimit bounds overall concurrency when the caller
// does not configure one explicitly.
const defaultParallelConceptLimit = 4

// Scheduler runs the three content agents per concept with bounded
// concurrency and persists the results through the Brain. It satisfies
// nodes.ContentScheduler.
type Scheduler struct {
	Brain    *brain.Brain
	Tutorial agent.TutorialAgent
	Resource agent.ResourceAgent
	Quiz     agent.QuizAgent
	Store    agent.ObjectStore
	CoverImg agent.CoverImageAgent // optional; nil skips cover generation

	// ParallelConceptLimit bounds how many concepts run concurrently. Zero
	// falls back to defaultParallelConceptLimit.
	ParallelConceptLimit int
}

var _ nodes.ContentScheduler = Scheduler{}

type conceptOutcome struct {
	concept   roadmap.Concept
	tutorial  roadmap.TutorialMetadata
	resource  roadmap.ResourceRecommendationMetadata
	quiz      roadmap.QuizMetadata
	succeeded bool
	failure   roadmap.FailureRecord
}

// Run implements nodes.ContentScheduler. It enumerates every concept not
// already fully completed, fans the remainder out with bounded
// concurrency, persists the batch, updates the framework's per-concept
// status fields, and transitions the Task to its terminal status.
func (s Scheduler) Run(ctx context.Context, taskID, roadmapID string, fw roadmap.Framework) (nodes.FanOutResult, error) {
	limit := s.ParallelConceptLimit
	if limit <= 0 {
		limit = defaultParallelConceptLimit
	}

	var pending []*roadmap.Concept
	fw.Walk(func(_ *roadmap.Stage, _ *roadmap.Module, c *roadmap.Concept) {
		if !conceptComplete(*c) {
			pending = append(pending, c)
		}
	})

	if len(pending) == 0 {
		return nodes.FanOutResult{}, nil
	}

	s.Brain.Bus().Publish(ctx, taskID, roadmap.Event{
		Type:      roadmap.EventBatchStart,
		TaskID:    taskID,
		RoadmapID: roadmapID,
		Fields:    map[string]interface{}{"pending_concepts": len(pending)},
		CreatedAt: time.Now().UTC(),
	})

	outcomes, err := s.runConcepts(ctx, taskID, roadmapID, pending, limit)
	if err != nil {
		return nodes.FanOutResult{}, err
	}

	attempted := len(outcomes)
	failedCount := 0
	for _, o := range outcomes {
		if !o.succeeded {
			failedCount++
		}
	}
	if attempted > 0 && (float64(failedCount)/float64(attempted) >= failureRateThreshold || failedCount == attempted) {
		s.Brain.Logger().LogCategorized(taskID, roadmap.LogError, roadmap.CategoryWorkflow,
			fmt.Sprintf("content fan-out aborted: %d/%d concepts failed", failedCount, attempted))
		_ = s.Brain.MarkTaskFailed(ctx, taskID, "majority of concepts failed content generation")
		return nodes.FanOutResult{}, ErrMajorityFailure
	}

	result, failedFromPersist := s.persist(ctx, taskID, roadmapID, outcomes)

	if err := s.applyStatuses(ctx, taskID, roadmapID, fw, outcomes, failedFromPersist); err != nil {
		s.Brain.Logger().Warning(taskID, "failed to persist updated concept statuses: "+err.Error())
	}

	status := roadmap.TaskCompleted
	if len(result.FailedConcepts) > 0 {
		status = roadmap.TaskPartialFailure
	}
	summary := roadmap.ExecutionSummary{
		ConceptsAttempted:  attempted,
		ConceptsFailed:     len(result.FailedConcepts),
		TutorialsGenerated: len(result.TutorialRefs),
		ResourcesGenerated: len(result.ResourceRefs),
		QuizzesGenerated:   len(result.QuizRefs),
	}
	if err := s.Brain.MarkTaskTerminal(ctx, taskID, status, summary, result.FailedConcepts); err != nil {
		return result, fmt.Errorf("fanout: mark task terminal: %w", err)
	}

	if s.CoverImg != nil {
		go func() {
			_, _ = s.CoverImg.Generate(context.Background(), agent.CoverImageInput{RoadmapID: roadmapID, Title: fw.Title})
		}()
	}

	return result, nil
}

// runConcepts fans the pending concepts out with a semaphore-bounded
// errgroup. A per-concept failure never aborts the group; it only marks
// that concept's outcome failed, so siblings keep running.
func (s Scheduler) runConcepts(ctx context.Context, taskID, roadmapID string, pending []*roadmap.Concept, limit int) ([]conceptOutcome, error) {
	sem := semaphore.NewWeighted(int64(limit))
	outcomes := make([]conceptOutcome, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range pending {
		i, c := i, c
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			outcomes[i] = s.runConcept(gctx, taskID, roadmapID, *c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fanout: concept batch: %w", err)
	}
	return outcomes, nil
}

// runConcept invokes the three content agents in parallel for one concept.
// All three must succeed for the concept to count as successful.
func (s Scheduler) runConcept(ctx context.Context, taskID, roadmapID string, concept roadmap.Concept) conceptOutcome {
	s.Brain.Bus().Publish(ctx, taskID, roadmap.Event{
		Type: roadmap.EventConceptStart, TaskID: taskID, RoadmapID: roadmapID,
		ConceptID: concept.ConceptID, CreatedAt: time.Now().UTC(),
	})

	var (
		tutOut  agent.TutorialOutput
		resOut  []roadmap.Resource
		quizOut []roadmap.QuizQuestion
		tutErr, resErr, quizErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tutOut, tutErr = s.Tutorial.Generate(gctx, agent.TutorialInput{RoadmapID: roadmapID, Concept: concept})
		return nil
	})
	g.Go(func() error {
		resOut, resErr = s.Resource.Recommend(gctx, agent.ResourceInput{RoadmapID: roadmapID, Concept: concept})
		return nil
	})
	g.Go(func() error {
		quizOut, quizErr = s.Quiz.Generate(gctx, agent.QuizInput{RoadmapID: roadmapID, Concept: concept})
		return nil
	})
	_ = g.Wait()

	if err := firstErr(tutErr, resErr, quizErr); err != nil {
		s.Brain.Bus().Publish(ctx, taskID, roadmap.Event{
			Type: roadmap.EventConceptFailed, TaskID: taskID, RoadmapID: roadmapID,
			ConceptID: concept.ConceptID,
			Fields:    map[string]interface{}{"error": err.Error()},
			CreatedAt: time.Now().UTC(),
		})
		return conceptOutcome{
			concept: concept,
			failure: roadmap.FailureRecord{ConceptID: concept.ConceptID, Stage: "content_fan_out", Reason: err.Error(), FailedAt: time.Now().UTC()},
		}
	}

	bodyURL := ""
	if s.Store != nil {
		now := time.Now().UTC()
		tmp := roadmap.TutorialMetadata{RoadmapID: roadmapID, ConceptID: concept.ConceptID, ContentVersion: 1, CreatedAt: now}
		url, err := s.Store.Put(ctx, tmp.ObjectKey(), []byte(tutOut.Body))
		if err != nil {
			s.Brain.Logger().Warning(taskID, "failed to write tutorial body to object store: "+err.Error(),
				exlog.WithConcept(concept.ConceptID))
		} else {
			bodyURL = url
		}
	}

	now := time.Now().UTC()
	outcome := conceptOutcome{
		concept: concept,
		tutorial: roadmap.TutorialMetadata{
			ID: newRefID(), RoadmapID: roadmapID, ConceptID: concept.ConceptID,
			Title: tutOut.Title, Summary: tutOut.Summary, Status: roadmap.ContentCompleted,
			ContentVersion: 1, IsLatest: true, BodyURL: bodyURL,
			EstimatedTime: tutOut.EstimatedTime, CreatedAt: now,
		},
		resource: roadmap.ResourceRecommendationMetadata{
			ID: newRefID(), RoadmapID: roadmapID, ConceptID: concept.ConceptID,
			Status: roadmap.ContentCompleted, Resources: resOut, CreatedAt: now,
		},
		quiz: roadmap.QuizMetadata{
			ID: newRefID(), RoadmapID: roadmapID, ConceptID: concept.ConceptID,
			Status: roadmap.ContentCompleted, Questions: quizOut, CreatedAt: now,
		},
		succeeded: true,
	}

	s.Brain.Bus().Publish(ctx, taskID, roadmap.Event{
		Type: roadmap.EventConceptAllContentComplete, TaskID: taskID, RoadmapID: roadmapID,
		ConceptID: concept.ConceptID, CreatedAt: time.Now().UTC(),
	})
	return outcome
}

// persist saves every successful outcome through the Brain's batch save
// helper. A per-batch database error demotes that concept to failed rather
// than aborting the whole run.
func (s Scheduler) persist(ctx context.Context, taskID, roadmapID string, outcomes []conceptOutcome) (nodes.FanOutResult, []string) {
	var tutorials []roadmap.TutorialMetadata
	var resources []roadmap.ResourceRecommendationMetadata
	var quizzes []roadmap.QuizMetadata
	failed := make([]roadmap.FailureRecord, 0)

	for _, o := range outcomes {
		if !o.succeeded {
			failed = append(failed, o.failure)
			continue
		}
		tutorials = append(tutorials, o.tutorial)
		resources = append(resources, o.resource)
		quizzes = append(quizzes, o.quiz)
	}

	failedIDs, err := s.Brain.SaveContentBatch(ctx, tutorials, resources, quizzes)
	if err != nil {
		s.Brain.Logger().Warning(taskID, "content batch persisted with per-concept failures: "+err.Error())
	}
	demoted := make(map[string]bool, len(failedIDs))
	for _, id := range failedIDs {
		demoted[id] = true
		failed = append(failed, roadmap.FailureRecord{ConceptID: id, Stage: "persist", Reason: "database error", FailedAt: time.Now().UTC()})
	}

	result := nodes.FanOutResult{
		TutorialRefs:   map[string]roadmap.ArtifactRef{},
		ResourceRefs:   map[string]roadmap.ArtifactRef{},
		QuizRefs:       map[string]roadmap.ArtifactRef{},
		FailedConcepts: failed,
	}
	for _, o := range outcomes {
		if !o.succeeded || demoted[o.concept.ConceptID] {
			continue
		}
		result.TutorialRefs[o.concept.ConceptID] = roadmap.ArtifactRef{ConceptID: o.concept.ConceptID, RefID: o.tutorial.ID}
		result.ResourceRefs[o.concept.ConceptID] = roadmap.ArtifactRef{ConceptID: o.concept.ConceptID, RefID: o.resource.ID}
		result.QuizRefs[o.concept.ConceptID] = roadmap.ArtifactRef{ConceptID: o.concept.ConceptID, RefID: o.quiz.ID}

		s.Brain.Bus().Publish(ctx, taskID, roadmap.Event{
			Type: roadmap.EventConceptComplete, TaskID: taskID, RoadmapID: roadmapID,
			ConceptID: o.concept.ConceptID, CreatedAt: time.Now().UTC(),
		})
	}
	return result, failedIDs
}

// applyStatuses writes the per-concept content/resources/quiz status fields
// back into the framework tree and saves it.
func (s Scheduler) applyStatuses(ctx context.Context, taskID, roadmapID string, fw roadmap.Framework, outcomes []conceptOutcome, demoted []string) error {
	demotedSet := make(map[string]bool, len(demoted))
	for _, id := range demoted {
		demotedSet[id] = true
	}
	outcomeByID := make(map[string]conceptOutcome, len(outcomes))
	for _, o := range outcomes {
		outcomeByID[o.concept.ConceptID] = o
	}

	fw.Walk(func(_ *roadmap.Stage, _ *roadmap.Module, c *roadmap.Concept) {
		o, ok := outcomeByID[c.ConceptID]
		if !ok {
			return
		}
		if !o.succeeded || demotedSet[c.ConceptID] {
			c.ContentStatus, c.ResourcesStatus, c.QuizStatus = roadmap.ContentFailed, roadmap.ContentFailed, roadmap.ContentFailed
			return
		}
		c.ContentStatus = roadmap.ContentCompleted
		c.ContentRef = o.tutorial.ID
		c.ContentSummary = o.tutorial.Summary
		c.ResourcesStatus = roadmap.ContentCompleted
		c.ResourcesID = o.resource.ID
		c.ResourcesCount = len(o.resource.Resources)
		c.QuizStatus = roadmap.ContentCompleted
		c.QuizID = o.quiz.ID
		c.QuizQuestionsCount = len(o.quiz.Questions)
	})

	return s.Brain.SaveRoadmapFramework(ctx, taskID, roadmapID, fw)
}

func conceptComplete(c roadmap.Concept) bool {
	return c.ContentStatus == roadmap.ContentCompleted &&
		c.ResourcesStatus == roadmap.ContentCompleted &&
		c.QuizStatus == roadmap.ContentCompleted
}

func newRefID() string { return uuid.NewString() }

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
