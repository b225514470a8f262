package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// TaskRepo persists roadmap.Task rows and exposes the semantic queries
// runners and the recovery manager need: active task for a roadmap, and
// tasks stuck mid-execution at process startup.
type TaskRepo struct {
	store *Store
}

func NewTaskRepo(store *Store) *TaskRepo {
	return &TaskRepo{store: store}
}

func (r *TaskRepo) Create(ctx context.Context, t roadmap.Task) error {
	failed, err := json.Marshal(t.FailedConcepts)
	if err != nil {
		return fmt.Errorf("repository: marshal failed_concepts: %w", err)
	}
	summary, err := json.Marshal(t.ExecutionSummary)
	if err != nil {
		return fmt.Errorf("repository: marshal execution_summary: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO tasks (
			task_id, user_id, task_type, status, current_step, roadmap_id,
			user_request, error_message, failed_concepts, execution_summary,
			celery_task_id, created_at, updated_at, completed_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.TaskID, t.UserID, string(t.TaskType), string(t.Status), t.CurrentStep, t.RoadmapID,
		t.UserRequest, t.ErrorMessage, string(failed), string(summary),
		t.CeleryTaskID, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: insert task: %w", err)
	}
	return nil
}

// Update persists every mutable field of t. JSON columns are always
// re-marshaled and rewritten wholesale — partial in-place JSON edits are
// never signalled correctly to SQLite, so the repository always writes a
// fresh column value rather than mutating one in place.
func (r *TaskRepo) Update(ctx context.Context, t roadmap.Task) error {
	failed, err := json.Marshal(t.FailedConcepts)
	if err != nil {
		return fmt.Errorf("repository: marshal failed_concepts: %w", err)
	}
	summary, err := json.Marshal(t.ExecutionSummary)
	if err != nil {
		return fmt.Errorf("repository: marshal execution_summary: %w", err)
	}

	res, err := r.store.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = ?, current_step = ?, roadmap_id = ?, error_message = ?,
			failed_concepts = ?, execution_summary = ?, updated_at = ?, completed_at = ?
		WHERE task_id = ?`,
		string(t.Status), t.CurrentStep, t.RoadmapID, t.ErrorMessage,
		string(failed), string(summary), t.UpdatedAt, t.CompletedAt, t.TaskID,
	)
	if err != nil {
		return fmt.Errorf("repository: update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepo) Get(ctx context.Context, taskID string) (roadmap.Task, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT task_id, user_id, task_type, status, current_step, roadmap_id,
			user_request, error_message, failed_concepts, execution_summary,
			celery_task_id, created_at, updated_at, completed_at
		FROM tasks WHERE task_id = ?`, taskID)
	return scanTask(row)
}

// ActiveForRoadmap returns the most recent non-terminal task for a roadmap,
// or ErrNotFound if none exists. Used by API handlers to reject a second
// concurrent edit workflow against a roadmap already mid-flight.
func (r *TaskRepo) ActiveForRoadmap(ctx context.Context, roadmapID string) (roadmap.Task, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT task_id, user_id, task_type, status, current_step, roadmap_id,
			user_request, error_message, failed_concepts, execution_summary,
			celery_task_id, created_at, updated_at, completed_at
		FROM tasks
		WHERE roadmap_id = ? AND status NOT IN ('completed','partial_failure','failed','cancelled')
		ORDER BY created_at DESC LIMIT 1`, roadmapID)
	return scanTask(row)
}

// Processing returns every task currently in the processing status, used by
// the recovery manager on startup to rehydrate work interrupted by a crash.
func (r *TaskRepo) Processing(ctx context.Context) ([]roadmap.Task, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT task_id, user_id, task_type, status, current_step, roadmap_id,
			user_request, error_message, failed_concepts, execution_summary,
			celery_task_id, created_at, updated_at, completed_at
		FROM tasks WHERE status = ?`, string(roadmap.TaskProcessing))
	if err != nil {
		return nil, fmt.Errorf("repository: query processing tasks: %w", err)
	}
	defer rows.Close()

	var out []roadmap.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (roadmap.Task, error) {
	var (
		t                      roadmap.Task
		taskType, status       string
		failedJSON, summaryJSON string
		completedAt            sql.NullTime
	)
	err := row.Scan(
		&t.TaskID, &t.UserID, &taskType, &status, &t.CurrentStep, &t.RoadmapID,
		&t.UserRequest, &t.ErrorMessage, &failedJSON, &summaryJSON,
		&t.CeleryTaskID, &t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.Task{}, ErrNotFound
	}
	if err != nil {
		return roadmap.Task{}, fmt.Errorf("repository: scan task: %w", err)
	}
	t.TaskType = roadmap.TaskType(taskType)
	t.Status = roadmap.TaskStatus(status)
	if completedAt.Valid {
		ct := completedAt.Time
		t.CompletedAt = &ct
	}
	if err := json.Unmarshal([]byte(failedJSON), &t.FailedConcepts); err != nil {
		return roadmap.Task{}, fmt.Errorf("repository: unmarshal failed_concepts: %w", err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &t.ExecutionSummary); err != nil {
		return roadmap.Task{}, fmt.Errorf("repository: unmarshal execution_summary: %w", err)
	}
	return t, nil
}
