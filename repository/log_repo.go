package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// ExecutionLogRepo persists roadmap.ExecutionLogEntry. It is the durable
// counterpart to the Event Bus's fire-and-forget Events: callers typically
// write through exlog's buffered writer rather than here directly. Writes
// go through InsertBatch, which stores a whole batch in one transaction.
type ExecutionLogRepo struct {
	store *Store
}

func NewExecutionLogRepo(store *Store) *ExecutionLogRepo {
	return &ExecutionLogRepo{store: store}
}

// InsertBatch writes many entries in one short-lived transaction, the shape
// exlog's flush() uses so a burst of buffered log lines becomes one round
// trip rather than one per entry.
func (r *ExecutionLogRepo) InsertBatch(ctx context.Context, entries []roadmap.ExecutionLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			details, err := json.Marshal(e.Details)
			if err != nil {
				return fmt.Errorf("repository: marshal log details: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO execution_logs (
					id, task_id, level, category, step, agent_name, concept_id,
					roadmap_id, message, details, duration_ms, created_at
				) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				e.ID, e.TaskID, string(e.Level), string(e.Category), e.Step, e.AgentName,
				e.ConceptID, e.RoadmapID, e.Message, string(details), e.DurationMs, e.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("repository: insert log entry: %w", err)
			}
		}
		return nil
	})
}

func (r *ExecutionLogRepo) scan(rows interface {
	Scan(dest ...interface{}) error
}) (roadmap.ExecutionLogEntry, error) {
	var (
		e                  roadmap.ExecutionLogEntry
		level, category    string
		details            string
	)
	if err := rows.Scan(&e.ID, &e.TaskID, &level, &category, &e.Step, &e.AgentName,
		&e.ConceptID, &e.RoadmapID, &e.Message, &details, &e.DurationMs, &e.CreatedAt); err != nil {
		return roadmap.ExecutionLogEntry{}, fmt.Errorf("repository: scan log entry: %w", err)
	}
	e.Level = roadmap.LogLevel(level)
	e.Category = roadmap.LogCategory(category)
	if details != "" {
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return roadmap.ExecutionLogEntry{}, fmt.Errorf("repository: unmarshal log details: %w", err)
		}
	}
	return e, nil
}

// LogQuery filters a paginated ForTask lookup.
type LogQuery struct {
	Level    roadmap.LogLevel
	Category roadmap.LogCategory
	Limit    int
	Offset   int
}

// ForTask returns log entries for a task, newest first, optionally filtered
// by level and/or category and paginated.
func (r *ExecutionLogRepo) ForTask(ctx context.Context, taskID string, q LogQuery) ([]roadmap.ExecutionLogEntry, error) {
	query := `SELECT id, task_id, level, category, step, agent_name, concept_id,
		roadmap_id, message, details, duration_ms, created_at
		FROM execution_logs WHERE task_id = ?`
	args := []interface{}{taskID}

	if q.Level != "" {
		query += " AND level = ?"
		args = append(args, string(q.Level))
	}
	if q.Category != "" {
		query += " AND category = ?"
		args = append(args, string(q.Category))
	}
	query += " ORDER BY created_at DESC"

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: query logs: %w", err)
	}
	defer rows.Close()

	var out []roadmap.ExecutionLogEntry
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary aggregates counts per level, counts per category, total duration,
// and the time range covered for a task's log stream.
func (r *ExecutionLogRepo) Summary(ctx context.Context, taskID string) (roadmap.LogSummary, error) {
	summary := roadmap.LogSummary{
		CountByLevel:    map[roadmap.LogLevel]int{},
		CountByCategory: map[roadmap.LogCategory]int{},
	}

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT level, category, duration_ms, created_at FROM execution_logs WHERE task_id = ?`, taskID)
	if err != nil {
		return summary, fmt.Errorf("repository: query log summary: %w", err)
	}
	defer rows.Close()

	var earliest, latest time.Time
	first := true
	for rows.Next() {
		var level, category string
		var duration int64
		var createdAt time.Time
		if err := rows.Scan(&level, &category, &duration, &createdAt); err != nil {
			return summary, fmt.Errorf("repository: scan log summary row: %w", err)
		}
		summary.CountByLevel[roadmap.LogLevel(level)]++
		summary.CountByCategory[roadmap.LogCategory(category)]++
		summary.TotalDurationMs += duration
		if first || createdAt.Before(earliest) {
			earliest = createdAt
		}
		if first || createdAt.After(latest) {
			latest = createdAt
		}
		first = false
	}
	summary.EarliestAt = earliest
	summary.LatestAt = latest
	return summary, rows.Err()
}
