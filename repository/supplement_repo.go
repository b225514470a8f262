package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TechAssessmentRecord persists the Intent Analysis runner's skill-gap
// output as its own queryable entity, keyed by task_id, rather than only
// inside the opaque intent_analysis payload on RoadmapState.
type TechAssessmentRecord struct {
	TaskID            string    `json:"task_id"`
	KeyTechnologies   []string  `json:"key_technologies"`
	DifficultyProfile string    `json:"difficulty_profile"`
	SkillGaps         []string  `json:"skill_gaps"`
	CreatedAt         time.Time `json:"created_at"`
}

// TechAssessmentRepo persists TechAssessmentRecord rows.
type TechAssessmentRepo struct {
	store *Store
}

func NewTechAssessmentRepo(store *Store) *TechAssessmentRepo {
	return &TechAssessmentRepo{store: store}
}

func (r *TechAssessmentRepo) Save(ctx context.Context, rec TechAssessmentRecord) error {
	tech, err := json.Marshal(rec.KeyTechnologies)
	if err != nil {
		return fmt.Errorf("repository: marshal key technologies: %w", err)
	}
	gaps, err := json.Marshal(rec.SkillGaps)
	if err != nil {
		return fmt.Errorf("repository: marshal skill gaps: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO tech_assessments (task_id, key_technologies, difficulty_profile, skill_gaps, created_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(task_id) DO UPDATE SET
			key_technologies = excluded.key_technologies,
			difficulty_profile = excluded.difficulty_profile,
			skill_gaps = excluded.skill_gaps`,
		rec.TaskID, string(tech), rec.DifficultyProfile, string(gaps), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: save tech assessment: %w", err)
	}
	return nil
}

func (r *TechAssessmentRepo) Get(ctx context.Context, taskID string) (TechAssessmentRecord, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT task_id, key_technologies, difficulty_profile, skill_gaps, created_at
		FROM tech_assessments WHERE task_id = ?`, taskID)

	var rec TechAssessmentRecord
	var tech, gaps string
	err := row.Scan(&rec.TaskID, &tech, &rec.DifficultyProfile, &gaps, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return TechAssessmentRecord{}, ErrNotFound
	}
	if err != nil {
		return TechAssessmentRecord{}, fmt.Errorf("repository: scan tech assessment: %w", err)
	}
	if err := json.Unmarshal([]byte(tech), &rec.KeyTechnologies); err != nil {
		return TechAssessmentRecord{}, fmt.Errorf("repository: unmarshal key technologies: %w", err)
	}
	if err := json.Unmarshal([]byte(gaps), &rec.SkillGaps); err != nil {
		return TechAssessmentRecord{}, fmt.Errorf("repository: unmarshal skill gaps: %w", err)
	}
	return rec, nil
}

// ChatTurn is one free-form Q&A turn a user has with their roadmap.
type ChatTurn struct {
	ChatID    string    `json:"chat_id"`
	TaskID    string    `json:"task_id"`
	Role      string    `json:"role"` // user | assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRepo persists ChatTurn rows.
type ChatRepo struct {
	store *Store
}

func NewChatRepo(store *Store) *ChatRepo {
	return &ChatRepo{store: store}
}

func (r *ChatRepo) Append(ctx context.Context, turn ChatTurn) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, task_id, role, content, created_at) VALUES (?,?,?,?,?)`,
		turn.ChatID, turn.TaskID, turn.Role, turn.Content, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: append chat turn: %w", err)
	}
	return nil
}

func (r *ChatRepo) ForTask(ctx context.Context, taskID string) ([]ChatTurn, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT chat_id, task_id, role, content, created_at
		FROM chats WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("repository: list chat turns: %w", err)
	}
	defer rows.Close()

	var out []ChatTurn
	for rows.Next() {
		var t ChatTurn
		if err := rows.Scan(&t.ChatID, &t.TaskID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan chat turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Note is a user annotation pinned to a concept within a roadmap.
type Note struct {
	NoteID    string    `json:"note_id"`
	RoadmapID string    `json:"roadmap_id"`
	ConceptID string    `json:"concept_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteRepo persists Note rows.
type NoteRepo struct {
	store *Store
}

func NewNoteRepo(store *Store) *NoteRepo {
	return &NoteRepo{store: store}
}

func (r *NoteRepo) Add(ctx context.Context, n Note) error {
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO notes (note_id, roadmap_id, concept_id, body, created_at) VALUES (?,?,?,?,?)`,
		n.NoteID, n.RoadmapID, n.ConceptID, n.Body, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: add note: %w", err)
	}
	return nil
}

func (r *NoteRepo) ForConcept(ctx context.Context, roadmapID, conceptID string) ([]Note, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT note_id, roadmap_id, concept_id, body, created_at
		FROM notes WHERE roadmap_id = ? AND concept_id = ? ORDER BY created_at ASC`,
		roadmapID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("repository: list notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.NoteID, &n.RoadmapID, &n.ConceptID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
