package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph/store"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// defaultRecoveryAge is the default window, from Task.CreatedAt, within
// which a stuck processing task is considered recoverable rather than
// abandoned.
const defaultRecoveryAge = 24 * time.Hour

// RecoveryManager rehydrates workflows left mid-flight by a crashed process.
// TaskRepo.Processing returns every task with status=processing regardless
// of type or age, so the task_type=creation and created_at filters are
// applied here rather than in the repository query.
type RecoveryManager struct {
	Brain    *brain.Brain
	Store    store.Store[roadmap.RoadmapState]
	Executor *Executor

	// MaxAge bounds how old a processing task's CreatedAt may be before it
	// is treated as abandoned rather than recoverable. Zero means
	// defaultRecoveryAge.
	MaxAge time.Duration
}

// Recover runs once at process start: scans processing tasks, filters to
// creation tasks within the age window, and for each either resumes it
// from its latest checkpoint or marks it failed with
// "no_checkpoint_available". human_review_pending tasks are untouched —
// Processing never returns them since they aren't status=processing.
func (m *RecoveryManager) Recover(ctx context.Context) error {
	maxAge := m.MaxAge
	if maxAge <= 0 {
		maxAge = defaultRecoveryAge
	}

	tasks, err := m.Brain.Tasks().Processing(ctx)
	if err != nil {
		return fmt.Errorf("workflow: recovery: list processing tasks: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	var firstErr error
	for _, t := range tasks {
		if t.TaskType != roadmap.TaskTypeCreation {
			continue
		}
		if t.CreatedAt.Before(cutoff) {
			m.Brain.Logger().Warning(t.TaskID, fmt.Sprintf("recovery: skipping task older than %s recovery window", maxAge))
			continue
		}
		if err := m.recoverOne(ctx, t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *RecoveryManager) recoverOne(ctx context.Context, t roadmap.Task) error {
	_, _, err := m.Store.LoadLatest(ctx, t.TaskID)
	if err != nil {
		if markErr := m.Brain.MarkTaskFailed(ctx, t.TaskID, "no_checkpoint_available"); markErr != nil {
			return fmt.Errorf("workflow: recovery: mark %s failed: %w", t.TaskID, markErr)
		}
		return nil
	}

	m.Brain.Bus().Publish(ctx, t.TaskID, roadmap.Event{
		Type:      roadmap.EventTaskRecovering,
		TaskID:    t.TaskID,
		RoadmapID: t.RoadmapID,
		CreatedAt: time.Now().UTC(),
	})

	if _, err := m.Executor.ResumeFromCheckpoint(ctx, m.Store, t.TaskID); err != nil {
		return fmt.Errorf("workflow: recovery: resume %s: %w", t.TaskID, err)
	}
	return nil
}
