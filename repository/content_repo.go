package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// TutorialRepo persists roadmap.TutorialMetadata. Tutorials are versioned:
// SaveNewVersion inserts a new row and flips IsLatest off for every prior
// version of the same (roadmap_id, concept_id) inside one transaction, so
// the version switch and the new row become visible atomically. This pair
// must be serialized per (roadmap_id, concept_id); the unique index on
// (roadmap_id, concept_id, content_version) is the constraint backstop if
// two callers race on the same version number.
type TutorialRepo struct {
	store *Store
}

func NewTutorialRepo(store *Store) *TutorialRepo {
	return &TutorialRepo{store: store}
}

func (r *TutorialRepo) SaveNewVersion(ctx context.Context, t roadmap.TutorialMetadata) error {
	return r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE tutorials SET is_latest = 0
			WHERE roadmap_id = ? AND concept_id = ? AND is_latest = 1`,
			t.RoadmapID, t.ConceptID); err != nil {
			return fmt.Errorf("repository: demote prior tutorial version: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tutorials (
				ref_id, roadmap_id, concept_id, content_version, is_latest,
				title, body_url, estimated_time, created_at, updated_at
			) VALUES (?,?,?,?,1,?,?,?,?,?)`,
			t.ID, t.RoadmapID, t.ConceptID, t.ContentVersion,
			t.Title, t.BodyURL, t.EstimatedTime, t.CreatedAt, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("repository: insert tutorial version: %w", err)
		}
		return nil
	})
}

// Latest returns the current IsLatest tutorial for a concept.
func (r *TutorialRepo) Latest(ctx context.Context, roadmapID, conceptID string) (roadmap.TutorialMetadata, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT ref_id, roadmap_id, concept_id, content_version, is_latest,
			title, body_url, estimated_time, created_at
		FROM tutorials WHERE roadmap_id = ? AND concept_id = ? AND is_latest = 1`,
		roadmapID, conceptID)
	return scanTutorial(row)
}

func scanTutorial(row rowScanner) (roadmap.TutorialMetadata, error) {
	var t roadmap.TutorialMetadata
	var isLatest int
	err := row.Scan(&t.ID, &t.RoadmapID, &t.ConceptID, &t.ContentVersion, &isLatest,
		&t.Title, &t.BodyURL, &t.EstimatedTime, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.TutorialMetadata{}, ErrNotFound
	}
	if err != nil {
		return roadmap.TutorialMetadata{}, fmt.Errorf("repository: scan tutorial: %w", err)
	}
	t.IsLatest = isLatest != 0
	t.Status = roadmap.ContentCompleted
	return t, nil
}

// ResourceRepo persists roadmap.ResourceRecommendationMetadata. Single-
// version on read: ForConcept returns only the newest row for a concept.
// A save overwrites a row with the same ref_id and otherwise adds a row;
// older rows for the concept are not removed.
type ResourceRepo struct {
	store *Store
}

func NewResourceRepo(store *Store) *ResourceRepo {
	return &ResourceRepo{store: store}
}

func (r *ResourceRepo) Save(ctx context.Context, m roadmap.ResourceRecommendationMetadata) error {
	data, err := json.Marshal(m.Resources)
	if err != nil {
		return fmt.Errorf("repository: marshal resources: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO resources (ref_id, roadmap_id, concept_id, resources, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(ref_id) DO UPDATE SET resources = excluded.resources, updated_at = excluded.updated_at`,
		m.ID, m.RoadmapID, m.ConceptID, string(data), m.CreatedAt, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: save resources: %w", err)
	}
	return nil
}

func (r *ResourceRepo) ForConcept(ctx context.Context, roadmapID, conceptID string) (roadmap.ResourceRecommendationMetadata, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT ref_id, roadmap_id, concept_id, resources, created_at
		FROM resources WHERE roadmap_id = ? AND concept_id = ?
		ORDER BY created_at DESC LIMIT 1`, roadmapID, conceptID)

	var m roadmap.ResourceRecommendationMetadata
	var data string
	err := row.Scan(&m.ID, &m.RoadmapID, &m.ConceptID, &data, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.ResourceRecommendationMetadata{}, ErrNotFound
	}
	if err != nil {
		return roadmap.ResourceRecommendationMetadata{}, fmt.Errorf("repository: scan resources: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &m.Resources); err != nil {
		return roadmap.ResourceRecommendationMetadata{}, fmt.Errorf("repository: unmarshal resources: %w", err)
	}
	m.Status = roadmap.ContentCompleted
	return m, nil
}

// QuizRepo persists roadmap.QuizMetadata. Single-version like ResourceRepo.
type QuizRepo struct {
	store *Store
}

func NewQuizRepo(store *Store) *QuizRepo {
	return &QuizRepo{store: store}
}

func (r *QuizRepo) Save(ctx context.Context, m roadmap.QuizMetadata) error {
	data, err := json.Marshal(m.Questions)
	if err != nil {
		return fmt.Errorf("repository: marshal questions: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO quizzes (ref_id, roadmap_id, concept_id, questions, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(ref_id) DO UPDATE SET questions = excluded.questions, updated_at = excluded.updated_at`,
		m.ID, m.RoadmapID, m.ConceptID, string(data), m.CreatedAt, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: save quiz: %w", err)
	}
	return nil
}

func (r *QuizRepo) ForConcept(ctx context.Context, roadmapID, conceptID string) (roadmap.QuizMetadata, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT ref_id, roadmap_id, concept_id, questions, created_at
		FROM quizzes WHERE roadmap_id = ? AND concept_id = ?
		ORDER BY created_at DESC LIMIT 1`, roadmapID, conceptID)

	var m roadmap.QuizMetadata
	var data string
	err := row.Scan(&m.ID, &m.RoadmapID, &m.ConceptID, &data, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.QuizMetadata{}, ErrNotFound
	}
	if err != nil {
		return roadmap.QuizMetadata{}, fmt.Errorf("repository: scan quiz: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &m.Questions); err != nil {
		return roadmap.QuizMetadata{}, fmt.Errorf("repository: unmarshal questions: %w", err)
	}
	m.Status = roadmap.ContentCompleted
	return m, nil
}
