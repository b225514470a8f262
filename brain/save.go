package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/roadmapforge/orchestrator/repository"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// SaveIntentAnalysis claims roadmap_id for this task by writing the initial
// RoadmapMetadata row (empty framework, no title yet) and stamping the
// task with its assigned roadmap_id. The INSERT's primary key is the
// uniqueness backstop behind EnsureUniqueRoadmapID's generated suffixes. It
// also persists the skill-gap analysis as its own queryable
// TechAssessmentRecord rather than leaving it buried in the opaque
// intent_analysis payload.
func (b *Brain) SaveIntentAnalysis(ctx context.Context, taskID, userID, roadmapID string, intent roadmap.IntentAnalysis) error {
	now := time.Now().UTC()
	if err := b.roadmaps.Upsert(ctx, roadmap.RoadmapMetadata{
		RoadmapID: roadmapID,
		UserID:    userID,
		TaskID:    taskID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("brain: save intent analysis: %w", err)
	}

	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("brain: save intent analysis: load task: %w", err)
	}
	task.RoadmapID = roadmapID
	task.UpdatedAt = now
	if err := b.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("brain: save intent analysis: stamp task roadmap_id: %w", err)
	}

	if err := b.techAssess.Save(ctx, repository.TechAssessmentRecord{
		TaskID:            taskID,
		KeyTechnologies:   intent.KeyTechnologies,
		DifficultyProfile: intent.DifficultyProfile,
		SkillGaps:         intent.SkillGaps,
		CreatedAt:         now,
	}); err != nil {
		return fmt.Errorf("brain: save intent analysis: tech assessment: %w", err)
	}
	return nil
}

// SaveRoadmapFramework persists a freshly designed or edited Framework tree
// for roadmapID, recomputing totals and title from the tree itself. The
// framework must always be written as a whole value, never mutated
// through a previously loaded entity in place.
func (b *Brain) SaveRoadmapFramework(ctx context.Context, taskID, roadmapID string, fw roadmap.Framework) error {
	m, err := b.roadmaps.Get(ctx, roadmapID)
	if err != nil {
		return fmt.Errorf("brain: save framework: load roadmap: %w", err)
	}
	m.Framework = fw
	m.Title = fw.Title
	m.TaskID = taskID
	m.UpdatedAt = time.Now().UTC()
	if err := b.roadmaps.Upsert(ctx, m); err != nil {
		return fmt.Errorf("brain: save framework: %w", err)
	}
	return nil
}

// SaveValidationResult records one Structure Validation round.
func (b *Brain) SaveValidationResult(ctx context.Context, taskID, roadmapID string, round int, out roadmap.ValidationOutput) error {
	rec := roadmap.ValidationRecord{
		ID:              newID(),
		RoadmapID:       roadmapID,
		TaskID:          taskID,
		Round:           round,
		IsValid:         out.IsValid,
		OverallScore:    out.OverallScore,
		CriticalCount:   out.CriticalCount(),
		WarningCount:    out.WarningCount(),
		DimensionScores: out.DimensionScores,
		Suggestions:     out.ImprovementSuggestions,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := b.validations.Save(ctx, rec); err != nil {
		return fmt.Errorf("brain: save validation result: %w", err)
	}
	return nil
}

// SaveEditPlan records the decomposition of validation feedback or human
// rejection feedback into an EditPlan, returning the record id so the
// caller can thread it through RoadmapState.EditPlanRecordID.
func (b *Brain) SaveEditPlan(ctx context.Context, taskID, roadmapID string, source roadmap.EditSource, plan roadmap.EditPlan) (string, error) {
	rec := roadmap.EditPlanRecord{
		ID:        newID(),
		RoadmapID: roadmapID,
		TaskID:    taskID,
		Source:    source,
		Plan:      plan,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := b.editPlans.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("brain: save edit plan: %w", err)
	}
	return rec.ID, nil
}

// SaveEditResult persists the applied edit (origin/modified snapshots, the
// diffed changed-concept set, a summary) and writes the modified framework
// as the roadmap's current tree. Returns the changed concept ids so the
// runner can fold them into its state delta.
func (b *Brain) SaveEditResult(ctx context.Context, taskID, roadmapID string, round int, origin, modified roadmap.Framework, summary string) ([]string, error) {
	changed := roadmap.DiffChangedConcepts(origin, modified)

	rec := roadmap.EditRecord{
		ID:                newID(),
		RoadmapID:         roadmapID,
		TaskID:            taskID,
		Round:             round,
		OriginFramework:   origin,
		ModifiedFramework: modified,
		ChangedConceptIDs: changed,
		Summary:           summary,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := b.edits.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("brain: save edit result: %w", err)
	}
	if err := b.SaveRoadmapFramework(ctx, taskID, roadmapID, modified); err != nil {
		return nil, fmt.Errorf("brain: save edit result: %w", err)
	}
	return changed, nil
}

// UpdateTaskToPendingReview moves a task into human_review_pending and
// emits the human_review_required event carrying roadmap summary stats, on
// the Human Review node's first (non-resume) entry.
func (b *Brain) UpdateTaskToPendingReview(ctx context.Context, taskID, roadmapID, title string, stageCount, conceptCount int) error {
	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("brain: update task to pending review: %w", err)
	}
	task.Status = roadmap.TaskHumanReviewPending
	task.UpdatedAt = time.Now().UTC()
	if err := b.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("brain: update task to pending review: %w", err)
	}

	b.bus.Publish(ctx, taskID, roadmap.Event{
		Type:      roadmap.EventHumanReviewRequired,
		TaskID:    taskID,
		RoadmapID: roadmapID,
		Fields: map[string]interface{}{
			"title":         title,
			"stage_count":   stageCount,
			"concept_count": conceptCount,
		},
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// UpdateTaskAfterReview persists a HumanReviewFeedback record (computing
// the next review_round from existing feedback for this task) and restores
// the task to processing. A failure to persist feedback does not fail the
// workflow — the decision is already captured in the resume
// value the caller is folding into state — so this returns the round
// number even when the persist step itself errors, letting the caller log
// a warning and continue.
func (b *Brain) UpdateTaskAfterReview(ctx context.Context, taskID, roadmapID string, approved bool, feedback string, snapshot roadmap.Framework) (round int, err error) {
	existing, listErr := b.reviews.ForTask(ctx, taskID)
	round = len(existing) + 1

	rec := roadmap.HumanReviewFeedback{
		ID:                newID(),
		RoadmapID:         roadmapID,
		TaskID:            taskID,
		ReviewRound:       round,
		Approved:          approved,
		Feedback:          feedback,
		FrameworkSnapshot: snapshot,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
	}
	saveErr := b.reviews.Save(ctx, rec)

	task, taskErr := b.tasks.Get(ctx, taskID)
	if taskErr == nil {
		task.Status = roadmap.TaskProcessing
		task.UpdatedAt = time.Now().UTC()
		taskErr = b.tasks.Update(ctx, task)
	}

	switch {
	case listErr != nil:
		return round, fmt.Errorf("brain: update task after review: list prior feedback: %w", listErr)
	case saveErr != nil:
		return round, fmt.Errorf("brain: update task after review: save feedback: %w", saveErr)
	case taskErr != nil:
		return round, fmt.Errorf("brain: update task after review: restore task to processing: %w", taskErr)
	}
	return round, nil
}

// SaveContentBatch persists one fan-out batch's tutorials, resources, and
// quizzes. Per-item errors are collected rather than aborting the whole
// batch, so the scheduler can record only the concepts that actually
// failed to persist and continue — partial success is a valid terminal
// outcome.
func (b *Brain) SaveContentBatch(ctx context.Context, tutorials []roadmap.TutorialMetadata, resources []roadmap.ResourceRecommendationMetadata, quizzes []roadmap.QuizMetadata) (failedConceptIDs []string, err error) {
	failed := make(map[string]bool)

	for _, t := range tutorials {
		if err := b.tutorials.SaveNewVersion(ctx, t); err != nil {
			failed[t.ConceptID] = true
		}
	}
	for _, r := range resources {
		if err := b.resources.Save(ctx, r); err != nil {
			failed[r.ConceptID] = true
		}
	}
	for _, q := range quizzes {
		if err := b.quizzes.Save(ctx, q); err != nil {
			failed[q.ConceptID] = true
		}
	}

	if len(failed) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(failed))
	for id := range failed {
		ids = append(ids, id)
	}
	return ids, fmt.Errorf("brain: %d concept(s) failed to persist in content batch", len(ids))
}
