// Package brain is the workflow's single transactional gateway: every node
// runner enters and exits through Brain.EnterNode/FinishNode, and every
// database write a runner needs goes through one of the typed Save* helpers
// rather than touching a repository directly. This concentrates the
// status-update + log + event triad in one place instead of scattering it
// across every node.
package brain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roadmapforge/orchestrator/eventbus"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/repository"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// Brain coordinates one node's execution lifecycle and owns every save
// helper a node runner needs. It holds no workflow state itself; state
// lives in the graph engine's RoadmapState and in the repositories below.
type Brain struct {
	tasks       *repository.TaskRepo
	roadmaps    *repository.RoadmapRepo
	tutorials   *repository.TutorialRepo
	resources   *repository.ResourceRepo
	quizzes     *repository.QuizRepo
	validations *repository.ValidationRecordRepo
	editPlans   *repository.EditPlanRecordRepo
	edits       *repository.EditRecordRepo
	reviews     *repository.HumanReviewFeedbackRepo
	techAssess  *repository.TechAssessmentRepo
	chats       *repository.ChatRepo
	notes       *repository.NoteRepo

	logger *exlog.Logger
	bus    *eventbus.Bus
	live   *liveStepCache
}

// New builds a Brain on top of a single metadata Store, an event bus, and
// an execution logger. Each repository is constructed once and reused for
// the life of the process.
func New(store *repository.Store, bus *eventbus.Bus, logger *exlog.Logger) *Brain {
	return &Brain{
		tasks:       repository.NewTaskRepo(store),
		roadmaps:    repository.NewRoadmapRepo(store),
		tutorials:   repository.NewTutorialRepo(store),
		resources:   repository.NewResourceRepo(store),
		quizzes:     repository.NewQuizRepo(store),
		validations: repository.NewValidationRecordRepo(store),
		editPlans:   repository.NewEditPlanRecordRepo(store),
		edits:       repository.NewEditRecordRepo(store),
		reviews:     repository.NewHumanReviewFeedbackRepo(store),
		techAssess:  repository.NewTechAssessmentRepo(store),
		chats:       repository.NewChatRepo(store),
		notes:       repository.NewNoteRepo(store),
		logger:      logger,
		bus:         bus,
		live:        newLiveStepCache(),
	}
}

// Tasks exposes the task repository directly for the read-mostly queries
// (resume-detection probes, the recovery manager's startup scan) that don't
// belong behind a Save* helper.
func (b *Brain) Tasks() *repository.TaskRepo { return b.tasks }

// Roadmaps exposes the roadmap repository for read paths (API handlers,
// the content fan-out scheduler's "already completed" probe).
func (b *Brain) Roadmaps() *repository.RoadmapRepo { return b.roadmaps }

// Tutorials, Resources, Quizzes expose the content repositories for the
// fan-out scheduler's idempotent-resume check.
func (b *Brain) Tutorials() *repository.TutorialRepo { return b.tutorials }
func (b *Brain) Resources() *repository.ResourceRepo { return b.resources }
func (b *Brain) Quizzes() *repository.QuizRepo       { return b.quizzes }

// Chats and Notes expose the supplemented per-task Q&A and per-concept
// annotation repositories for the workflow package's conversational and
// note-taking surfaces.
func (b *Brain) Chats() *repository.ChatRepo { return b.chats }
func (b *Brain) Notes() *repository.NoteRepo { return b.notes }

// Logger exposes the execution logger so callers outside a node (the
// Executor, the recovery manager) can log without going through a node
// lifecycle.
func (b *Brain) Logger() *exlog.Logger { return b.logger }

// Bus exposes the event bus for the same reason.
func (b *Brain) Bus() *eventbus.Bus { return b.bus }

// LiveStep returns the in-memory current-step cache entry for a task, for
// low-latency status endpoints. Stale reads after Clear are tolerable;
// this is a cache, not a source of truth.
func (b *Brain) LiveStep(taskID string) (string, bool) { return b.live.get(taskID) }

// ClearLiveStep drops the cache entry for a task, called by the Executor on
// normal workflow completion.
func (b *Brain) ClearLiveStep(taskID string) { b.live.clear(taskID) }

// NodeContext tracks timing for one node_execution span, returned by
// EnterNode and consumed by FinishNode.
type NodeContext struct {
	taskID   string
	nodeName string
	start    time.Time
}

// EnterNode implements the pre-execution half of the node_execution
// contract: update live_step, move Task to processing with current_step,
// emit a processing progress event, and log a "start" entry. When
// skipBefore is true (the node is being re-entered after a suspend/resume)
// none of this runs again — the original entry already did it.
func (b *Brain) EnterNode(ctx context.Context, taskID, nodeName string, skipBefore bool) (*NodeContext, error) {
	nc := &NodeContext{taskID: taskID, nodeName: nodeName, start: time.Now()}
	if skipBefore {
		return nc, nil
	}

	b.live.set(taskID, nodeName)

	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		return nc, fmt.Errorf("brain: load task for node entry: %w", err)
	}
	task.Status = roadmap.TaskProcessing
	task.CurrentStep = nodeName
	task.UpdatedAt = time.Now().UTC()
	if err := b.tasks.Update(ctx, task); err != nil {
		return nc, fmt.Errorf("brain: update task to processing: %w", err)
	}

	b.bus.Publish(ctx, taskID, roadmap.Event{
		Type:      roadmap.EventProgress,
		TaskID:    taskID,
		Status:    "processing",
		RoadmapID: task.RoadmapID,
		Fields:    map[string]interface{}{"step": nodeName},
		CreatedAt: time.Now().UTC(),
	})
	b.logger.LogWorkflowStart(taskID, nodeName)

	return nc, nil
}

// FinishNode implements the post-execution half of the node_execution
// contract. On a nil err it logs completion with the computed duration and emits a
// completed progress event. On a non-nil err it marks the task failed
// (preserving current_step), logs the error with the exception type and a
// truncated message, and emits a failed event. The error is always
// returned unchanged so the caller can fold it straight into
// graph.NodeResult.Err.
func (b *Brain) FinishNode(ctx context.Context, taskID, nodeName string, nc *NodeContext, err error) error {
	duration := time.Since(nc.start)

	if err == nil {
		b.logger.LogWorkflowComplete(taskID, nodeName, duration)
		b.bus.Publish(ctx, taskID, roadmap.Event{
			Type:      roadmap.EventProgress,
			TaskID:    taskID,
			Status:    "completed",
			Fields:    map[string]interface{}{"step": nodeName, "duration_ms": duration.Milliseconds()},
			CreatedAt: time.Now().UTC(),
		})
		return nil
	}

	if markErr := b.MarkTaskFailed(ctx, taskID, err.Error()); markErr != nil {
		b.logger.LogCategorized(taskID, roadmap.LogError, roadmap.CategoryWorkflow,
			"failed to mark task failed after node error", exlog.WithStep(nodeName),
			exlog.WithDetails(map[string]interface{}{"mark_error": markErr.Error()}))
	}
	b.logger.LogCategorized(taskID, roadmap.LogError, roadmap.CategoryWorkflow,
		"node failed: "+truncate(err.Error(), 500), exlog.WithStep(nodeName), exlog.WithDuration(duration),
		exlog.WithDetails(map[string]interface{}{"error_type": fmt.Sprintf("%T", err)}))
	b.bus.Publish(ctx, taskID, roadmap.Event{
		Type:      roadmap.EventFailed,
		TaskID:    taskID,
		Status:    "failed",
		Fields:    map[string]interface{}{"step": nodeName, "error": truncate(err.Error(), 200)},
		CreatedAt: time.Now().UTC(),
	})
	return err
}

// MarkTaskFailed transitions a task to failed with a short user-visible
// error message, preserving current_step so the UI can show where it broke.
func (b *Brain) MarkTaskFailed(ctx context.Context, taskID, message string) error {
	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("brain: load task to mark failed: %w", err)
	}
	task.Status = roadmap.TaskFailed
	task.ErrorMessage = truncate(message, 500)
	now := time.Now().UTC()
	task.UpdatedAt = now
	task.CompletedAt = &now
	return b.tasks.Update(ctx, task)
}

// MarkTaskTerminal transitions a task to one of the two success terminal
// states (completed or partial_failure), attaching the execution summary
// and any accumulated failed-concepts list.
func (b *Brain) MarkTaskTerminal(ctx context.Context, taskID string, status roadmap.TaskStatus, summary roadmap.ExecutionSummary, failed []roadmap.FailureRecord) error {
	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		return fmt.Errorf("brain: load task to mark terminal: %w", err)
	}
	task.Status = status
	task.ExecutionSummary = summary
	task.FailedConcepts = failed
	now := time.Now().UTC()
	task.UpdatedAt = now
	task.CompletedAt = &now
	if err := b.tasks.Update(ctx, task); err != nil {
		return err
	}

	eventType := roadmap.EventCompleted
	if status != roadmap.TaskCompleted {
		eventType = roadmap.EventFailed
		if status == roadmap.TaskPartialFailure {
			eventType = roadmap.EventCompleted // partial_failure still completes the stream; see fanout package
		}
	}
	b.bus.Publish(ctx, taskID, roadmap.Event{
		Type:      eventType,
		TaskID:    taskID,
		Status:    string(status),
		RoadmapID: task.RoadmapID,
		CreatedAt: now,
	})
	return nil
}

func newID() string { return uuid.NewString() }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
