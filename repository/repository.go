// Package repository implements typed persistence for every entity in the
// roadmap domain model: tasks, roadmaps, generated content, validation and
// edit audit trails, execution logs, and the supplemented tech-assessment,
// chat, and note records. It follows the same connection-pool and
// transaction idiom as graph/store: a single *sql.DB guarded by a
// sync.RWMutex, WAL mode for single-writer-many-reader throughput, and
// short-lived transactions rather than one long transaction per request.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by ID finds no matching row.
var ErrNotFound = errors.New("repository: not found")

// Store owns the shared *sql.DB connection pool and schema bootstrap.
// Every typed repository (TaskRepo, RoadmapRepo, ...) wraps the same Store
// and so shares its connection pool. Repository methods do not take a
// transaction, so writes through several repositories are not combined
// into one transaction.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open creates (or reuses) the SQLite database at path and bootstraps every
// table. Metadata access is read-heavy and bursty across many concurrent
// node runners, so unlike a checkpoint store we keep a small pool of
// readers open (SQLite serializes writers internally via WAL) instead of
// pinning MaxOpenConns to 1.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("repository: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT,
			roadmap_id TEXT,
			user_request TEXT,
			error_message TEXT,
			failed_concepts TEXT NOT NULL DEFAULT '[]',
			execution_summary TEXT NOT NULL DEFAULT '{}',
			celery_task_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_roadmap ON tasks(roadmap_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,

		`CREATE TABLE IF NOT EXISTS roadmaps (
			roadmap_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			task_id TEXT,
			title TEXT,
			stage_count INTEGER NOT NULL DEFAULT 0,
			module_count INTEGER NOT NULL DEFAULT 0,
			concept_count INTEGER NOT NULL DEFAULT 0,
			framework TEXT NOT NULL DEFAULT '{}',
			deleted_at DATETIME,
			deleted_by TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_roadmaps_user ON roadmaps(user_id)`,

		`CREATE TABLE IF NOT EXISTS tutorials (
			ref_id TEXT PRIMARY KEY,
			roadmap_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			content_version INTEGER NOT NULL,
			is_latest INTEGER NOT NULL DEFAULT 1,
			title TEXT,
			body_url TEXT,
			estimated_time TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tutorials_latest
			ON tutorials(roadmap_id, concept_id, content_version)`,
		`CREATE INDEX IF NOT EXISTS idx_tutorials_lookup
			ON tutorials(roadmap_id, concept_id, is_latest)`,

		`CREATE TABLE IF NOT EXISTS resources (
			ref_id TEXT PRIMARY KEY,
			roadmap_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			resources TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_lookup ON resources(roadmap_id, concept_id)`,

		`CREATE TABLE IF NOT EXISTS quizzes (
			ref_id TEXT PRIMARY KEY,
			roadmap_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			questions TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quizzes_lookup ON quizzes(roadmap_id, concept_id)`,

		`CREATE TABLE IF NOT EXISTS validation_records (
			record_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			roadmap_id TEXT,
			round INTEGER NOT NULL DEFAULT 1,
			is_valid INTEGER NOT NULL,
			overall_score REAL NOT NULL,
			output TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_task ON validation_records(task_id)`,

		`CREATE TABLE IF NOT EXISTS edit_records (
			record_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			roadmap_id TEXT,
			source TEXT NOT NULL,
			origin_framework TEXT NOT NULL DEFAULT '{}',
			modified_framework TEXT NOT NULL DEFAULT '{}',
			changed_concept_ids TEXT NOT NULL DEFAULT '[]',
			summary TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edit_task ON edit_records(task_id)`,

		`CREATE TABLE IF NOT EXISTS edit_plan_records (
			record_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			roadmap_id TEXT,
			source TEXT NOT NULL,
			plan TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_editplan_task ON edit_plan_records(task_id)`,

		`CREATE TABLE IF NOT EXISTS human_review_feedback (
			feedback_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			roadmap_id TEXT,
			review_round INTEGER NOT NULL DEFAULT 1,
			approved INTEGER NOT NULL DEFAULT 0,
			feedback TEXT,
			framework_snapshot TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_task ON human_review_feedback(task_id)`,

		`CREATE TABLE IF NOT EXISTS execution_logs (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			level TEXT NOT NULL,
			category TEXT NOT NULL,
			step TEXT,
			agent_name TEXT,
			concept_id TEXT,
			roadmap_id TEXT,
			message TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_task ON execution_logs(task_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_level ON execution_logs(task_id, level)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_category ON execution_logs(task_id, category)`,

		`CREATE TABLE IF NOT EXISTS tech_assessments (
			task_id TEXT PRIMARY KEY,
			key_technologies TEXT NOT NULL DEFAULT '[]',
			difficulty_profile TEXT,
			skill_gaps TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chats (
			chat_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_task ON chats(task_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS notes (
			note_id TEXT PRIMARY KEY,
			roadmap_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notes_concept ON notes(roadmap_id, concept_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("repository: create schema: %w", err)
		}
	}
	return nil
}

// WithTx runs fn inside a short-lived transaction, rolling back on error or
// panic and committing otherwise. Large saves (e.g. a full content fan-out
// result) should be decomposed into several of these rather than one long
// transaction, so callers are expected to call WithTx once per logical
// unit of work, not once per request.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("repository: store closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the raw pool for repositories that need direct (non-tx) access.
func (s *Store) DB() *sql.DB {
	return s.db
}
