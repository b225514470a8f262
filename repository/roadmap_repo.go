package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// RoadmapRepo persists roadmap.RoadmapMetadata, including its embedded
// Framework tree. Soft-deleted roadmaps stay in the table (for audit and
// undo) but are excluded from List; DeleteExpired performs the hard delete
// once a roadmap has aged past its retention window.
type RoadmapRepo struct {
	store *Store
}

func NewRoadmapRepo(store *Store) *RoadmapRepo {
	return &RoadmapRepo{store: store}
}

func (r *RoadmapRepo) Upsert(ctx context.Context, m roadmap.RoadmapMetadata) error {
	fw, err := json.Marshal(m.Framework)
	if err != nil {
		return fmt.Errorf("repository: marshal framework: %w", err)
	}
	stages, modules, concepts := m.Totals()

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO roadmaps (
			roadmap_id, user_id, task_id, title, stage_count, module_count,
			concept_count, framework, deleted_at, deleted_by, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(roadmap_id) DO UPDATE SET
			title = excluded.title,
			stage_count = excluded.stage_count,
			module_count = excluded.module_count,
			concept_count = excluded.concept_count,
			framework = excluded.framework,
			deleted_at = excluded.deleted_at,
			deleted_by = excluded.deleted_by,
			updated_at = excluded.updated_at`,
		m.RoadmapID, m.UserID, m.TaskID, m.Title, stages, modules, concepts,
		string(fw), m.DeletedAt, m.DeletedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: upsert roadmap: %w", err)
	}
	return nil
}

// ReplaceFramework persists a new Framework snapshot for an existing
// roadmap. Callers must never mutate a previously-read Framework value in
// place and write it back; this method always re-marshals a fresh value,
// so an edit runner that builds its modified framework from scratch
// (rather than mutating the original) is the only safe caller shape.
func (r *RoadmapRepo) ReplaceFramework(ctx context.Context, roadmapID string, fw roadmap.Framework, updatedAt time.Time) error {
	data, err := json.Marshal(fw)
	if err != nil {
		return fmt.Errorf("repository: marshal framework: %w", err)
	}
	stages := len(fw.Stages)
	modules, concepts := 0, 0
	for _, st := range fw.Stages {
		modules += len(st.Modules)
		for _, m := range st.Modules {
			concepts += len(m.Concepts)
		}
	}

	res, err := r.store.db.ExecContext(ctx, `
		UPDATE roadmaps SET framework = ?, stage_count = ?, module_count = ?,
			concept_count = ?, updated_at = ?
		WHERE roadmap_id = ?`,
		string(data), stages, modules, concepts, updatedAt, roadmapID,
	)
	if err != nil {
		return fmt.Errorf("repository: replace framework: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RoadmapRepo) Get(ctx context.Context, roadmapID string) (roadmap.RoadmapMetadata, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT roadmap_id, user_id, task_id, title, framework, deleted_at,
			deleted_by, created_at, updated_at
		FROM roadmaps WHERE roadmap_id = ?`, roadmapID)
	return scanRoadmap(row)
}

// SoftDelete marks a roadmap deleted without removing the row, so list
// queries exclude it while edit history and undo remain possible until the
// retention sweeper runs.
func (r *RoadmapRepo) SoftDelete(ctx context.Context, roadmapID, deletedBy string, at time.Time) error {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE roadmaps SET deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE roadmap_id = ?`, at, deletedBy, at, roadmapID)
	if err != nil {
		return fmt.Errorf("repository: soft delete roadmap: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns non-deleted roadmaps for a user, newest first.
func (r *RoadmapRepo) ListForUser(ctx context.Context, userID string) ([]roadmap.RoadmapMetadata, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT roadmap_id, user_id, task_id, title, framework, deleted_at,
			deleted_by, created_at, updated_at
		FROM roadmaps WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: list roadmaps: %w", err)
	}
	defer rows.Close()

	var out []roadmap.RoadmapMetadata
	for rows.Next() {
		m, err := scanRoadmap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteExpired permanently removes roadmaps soft-deleted before the cutoff,
// the retention sweeper's underlying operation. Returns the count removed.
func (r *RoadmapRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.store.db.ExecContext(ctx, `
		DELETE FROM roadmaps WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("repository: sweep expired roadmaps: %w", err)
	}
	return res.RowsAffected()
}

func scanRoadmap(row rowScanner) (roadmap.RoadmapMetadata, error) {
	var (
		m                        roadmap.RoadmapMetadata
		fwJSON                   string
		deletedAt                sql.NullTime
		deletedBy                sql.NullString
	)
	err := row.Scan(&m.RoadmapID, &m.UserID, &m.TaskID, &m.Title, &fwJSON,
		&deletedAt, &deletedBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.RoadmapMetadata{}, ErrNotFound
	}
	if err != nil {
		return roadmap.RoadmapMetadata{}, fmt.Errorf("repository: scan roadmap: %w", err)
	}
	if err := json.Unmarshal([]byte(fwJSON), &m.Framework); err != nil {
		return roadmap.RoadmapMetadata{}, fmt.Errorf("repository: unmarshal framework: %w", err)
	}
	if deletedAt.Valid {
		m.DeletedAt = &deletedAt.Time
	}
	if deletedBy.Valid {
		m.DeletedBy = deletedBy.String
	}
	m.StageCount = len(m.Framework.Stages)
	for _, st := range m.Framework.Stages {
		m.ModuleCount += len(st.Modules)
		for _, mod := range st.Modules {
			m.ConceptCount += len(mod.Concepts)
		}
	}
	return m, nil
}
