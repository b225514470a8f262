// Package exlog implements the Execution Logger: a buffered, queryable
// structured log stream keyed by task_id. Writes accumulate in memory and
// are committed to the repository in batches; Flush must be called at every
// natural quiescence point (workflow completion, suspension before a
// human-review interrupt, and error handlers) so logs belonging to
// short-lived paths are not lost if the process exits before the next
// automatic flush.
package exlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadmapforge/orchestrator/repository"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// flushThreshold is how many buffered entries accumulate before Log
// triggers an automatic flush, independent of any explicit Flush call.
const flushThreshold = 50

// Logger buffers roadmap.ExecutionLogEntry writes and periodically commits
// them to an ExecutionLogRepo. Safe for concurrent use.
type Logger struct {
	repo *repository.ExecutionLogRepo

	mu     sync.Mutex
	buffer []roadmap.ExecutionLogEntry
}

// New creates a Logger backed by repo.
func New(repo *repository.ExecutionLogRepo) *Logger {
	return &Logger{repo: repo}
}

func (l *Logger) log(taskID string, level roadmap.LogLevel, category roadmap.LogCategory, message string, opts ...Option) {
	entry := roadmap.ExecutionLogEntry{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Level:     level,
		Category:  category,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&entry)
	}

	l.mu.Lock()
	l.buffer = append(l.buffer, entry)
	shouldFlush := len(l.buffer) >= flushThreshold
	l.mu.Unlock()

	if shouldFlush {
		_ = l.Flush(context.Background())
	}
}

// Option customizes an ExecutionLogEntry beyond its required fields.
type Option func(*roadmap.ExecutionLogEntry)

func WithStep(step string) Option           { return func(e *roadmap.ExecutionLogEntry) { e.Step = step } }
func WithAgent(agentName string) Option     { return func(e *roadmap.ExecutionLogEntry) { e.AgentName = agentName } }
func WithConcept(conceptID string) Option   { return func(e *roadmap.ExecutionLogEntry) { e.ConceptID = conceptID } }
func WithRoadmap(roadmapID string) Option   { return func(e *roadmap.ExecutionLogEntry) { e.RoadmapID = roadmapID } }
func WithDetails(details map[string]interface{}) Option {
	return func(e *roadmap.ExecutionLogEntry) { e.Details = details }
}
func WithDuration(d time.Duration) Option {
	return func(e *roadmap.ExecutionLogEntry) { e.DurationMs = d.Milliseconds() }
}

func (l *Logger) Debug(taskID, message string, opts ...Option) {
	l.log(taskID, roadmap.LogDebug, roadmap.CategoryWorkflow, message, opts...)
}

func (l *Logger) Info(taskID, message string, opts ...Option) {
	l.log(taskID, roadmap.LogInfo, roadmap.CategoryWorkflow, message, opts...)
}

func (l *Logger) Warning(taskID, message string, opts ...Option) {
	l.log(taskID, roadmap.LogWarning, roadmap.CategoryWorkflow, message, opts...)
}

func (l *Logger) Error(taskID, message string, opts ...Option) {
	l.log(taskID, roadmap.LogError, roadmap.CategoryWorkflow, message, opts...)
}

// LogCategorized logs at an explicit level and category, for callers that
// need something other than the workflow-category Info/Warning/Error/Debug
// helpers above (e.g. category=agent or category=tool).
func (l *Logger) LogCategorized(taskID string, level roadmap.LogLevel, category roadmap.LogCategory, message string, opts ...Option) {
	l.log(taskID, level, category, message, opts...)
}

// LogWorkflowStart is the convenience entry point the Brain's
// node_execution contract calls on every node entry.
func (l *Logger) LogWorkflowStart(taskID, step string) {
	l.log(taskID, roadmap.LogInfo, roadmap.CategoryWorkflow, "start", WithStep(step))
}

// LogWorkflowComplete is the convenience entry point node_execution calls
// on every normal node exit, carrying the computed duration.
func (l *Logger) LogWorkflowComplete(taskID, step string, duration time.Duration) {
	l.log(taskID, roadmap.LogInfo, roadmap.CategoryWorkflow, "complete", WithStep(step), WithDuration(duration))
}

// Flush commits every buffered entry to the repository in one transaction
// and clears the buffer. Safe to call concurrently and redundantly; a no-op
// when nothing is buffered.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	pending := l.buffer
	l.buffer = nil
	l.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	return l.repo.InsertBatch(ctx, pending)
}

// ForTask proxies to the repository's paginated, filtered query. Flush is
// not called automatically — callers that need strict read-your-writes
// consistency should Flush before querying.
func (l *Logger) ForTask(ctx context.Context, taskID string, q repository.LogQuery) ([]roadmap.ExecutionLogEntry, error) {
	return l.repo.ForTask(ctx, taskID, q)
}

// Summary proxies to the repository's aggregate query.
func (l *Logger) Summary(ctx context.Context, taskID string) (roadmap.LogSummary, error) {
	return l.repo.Summary(ctx, taskID)
}
