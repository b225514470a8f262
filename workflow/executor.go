package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/graph/store"
	"github.com/roadmapforge/orchestrator/nodes"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// Executor wraps a compiled graph.Engine with four entry points: a fresh
// run, a human-review resume, a resume from the latest checkpoint (used by
// crash recovery), and a scoped content retry that re-enters the Content
// Fan-out scheduler directly rather than the full graph.
type Executor struct {
	Engine *graph.Engine[roadmap.RoadmapState]
	Brain  *brain.Brain
}

// NewExecutor compiles Config into an Engine and returns an Executor over
// it. Callers that need the Engine directly (tests, an admin surface) can
// use Build themselves instead.
func NewExecutor(cfg Config) (*Executor, error) {
	engine, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	return &Executor{Engine: engine, Brain: cfg.Brain}, nil
}

// Execute runs the graph fresh for an already-created Task row. taskID
// doubles as the checkpoint store's thread_id. A suspend (ErrSuspended) is
// not treated as an error: the caller should inspect the returned state's
// CurrentStep/Task.Status to see the workflow paused for human review.
func (e *Executor) Execute(ctx context.Context, userRequest, taskID string) (roadmap.RoadmapState, error) {
	initial := roadmap.RoadmapState{UserRequest: userRequest, TaskID: taskID}
	return e.run(ctx, taskID, func() (roadmap.RoadmapState, error) {
		return e.Engine.Run(ctx, taskID, initial)
	})
}

// ResumeAfterHumanReview folds the user's decision into state and resumes
// the graph at the Human Review node.
func (e *Executor) ResumeAfterHumanReview(ctx context.Context, taskID string, approved bool, feedback string) (roadmap.RoadmapState, error) {
	delta := roadmap.RoadmapState{
		TaskID:        taskID,
		HumanApproved: &approved,
		UserFeedback:  feedback,
	}
	return e.run(ctx, taskID, func() (roadmap.RoadmapState, error) {
		return e.Engine.Resume(ctx, taskID, delta)
	})
}

// ResumeFromCheckpoint re-enters the graph at exactly the node named by the
// task's latest checkpoint, with no state delta folded in. Used by the
// Recovery Manager to rehydrate a task interrupted mid-graph by a process
// crash — unlike Execute, it never restarts from intent_analysis.
func (e *Executor) ResumeFromCheckpoint(ctx context.Context, st store.Store[roadmap.RoadmapState], taskID string) (roadmap.RoadmapState, error) {
	return e.run(ctx, taskID, func() (roadmap.RoadmapState, error) {
		_, step, err := st.LoadLatest(ctx, taskID)
		if err != nil {
			var zero roadmap.RoadmapState
			return zero, fmt.Errorf("workflow: resume from checkpoint: load latest: %w", err)
		}
		cp, err := st.LoadCheckpointV2(ctx, taskID, step)
		if err != nil {
			var zero roadmap.RoadmapState
			return zero, fmt.Errorf("workflow: resume from checkpoint: load checkpoint: %w", err)
		}
		return e.Engine.RunWithCheckpoint(ctx, cp)
	})
}

// run centralizes the post-invocation bookkeeping common to every entry
// point: clear the live-step cache on normal completion, and always flush
// the execution logger, wrapping whichever Engine call the caller supplies.
func (e *Executor) run(ctx context.Context, taskID string, invoke func() (roadmap.RoadmapState, error)) (roadmap.RoadmapState, error) {
	state, err := invoke()

	if err == nil {
		e.Brain.ClearLiveStep(taskID)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if flushErr := e.Brain.Logger().Flush(flushCtx); flushErr != nil {
		e.Brain.Logger().Warning(taskID, "execution logger flush failed: "+flushErr.Error())
	}

	if errors.Is(err, graph.ErrSuspended) {
		return state, nil
	}
	return state, err
}

// RetryConcepts re-runs the content fan-out scheduler scoped to a subset of
// concepts. taskID must already exist as a pending Task row
// (task_type=retry_batch), created by the caller. Rather than pruning the
// framework tree, it resets only the targeted
// concepts' per-content-type status fields to pending; every other concept
// keeps its existing completed status, so the scheduler's own idempotent
// skip (it never re-runs a concept already at status completed) confines
// the retry to exactly the requested set without needing a separate
// scheduler code path.
func (e *Executor) RetryConcepts(ctx context.Context, scheduler nodes.ContentScheduler, taskID, roadmapID string, conceptIDs []string) (nodes.FanOutResult, error) {
	meta, err := e.Brain.Roadmaps().Get(ctx, roadmapID)
	if err != nil {
		return nodes.FanOutResult{}, fmt.Errorf("workflow: retry concepts: load roadmap: %w", err)
	}

	fw := meta.Framework
	targets := make(map[string]bool, len(conceptIDs))
	for _, id := range conceptIDs {
		targets[id] = true
	}
	fw.Walk(func(_ *roadmap.Stage, _ *roadmap.Module, c *roadmap.Concept) {
		if !targets[c.ConceptID] {
			return
		}
		c.ContentStatus = roadmap.ContentPending
		c.ResourcesStatus = roadmap.ContentPending
		c.QuizStatus = roadmap.ContentPending
	})

	result, err := scheduler.Run(ctx, taskID, roadmapID, fw)
	if err != nil {
		return nodes.FanOutResult{}, fmt.Errorf("workflow: retry concepts: %w", err)
	}
	return result, nil
}
