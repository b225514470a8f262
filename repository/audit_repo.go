package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roadmapforge/orchestrator/roadmap"
)

// ValidationRecordRepo persists the append-only history of Structure
// Validation runs for a task, one row per round.
type ValidationRecordRepo struct {
	store *Store
}

func NewValidationRecordRepo(store *Store) *ValidationRecordRepo {
	return &ValidationRecordRepo{store: store}
}

func (r *ValidationRecordRepo) Save(ctx context.Context, rec roadmap.ValidationRecord) error {
	dims, err := json.Marshal(rec.DimensionScores)
	if err != nil {
		return fmt.Errorf("repository: marshal dimension scores: %w", err)
	}
	suggestions, err := json.Marshal(rec.Suggestions)
	if err != nil {
		return fmt.Errorf("repository: marshal suggestions: %w", err)
	}
	out, err := json.Marshal(struct {
		DimensionScores json.RawMessage `json:"dimension_scores"`
		Suggestions     json.RawMessage `json:"suggestions"`
		CriticalCount   int             `json:"critical_count"`
		WarningCount    int             `json:"warning_count"`
	}{dims, suggestions, rec.CriticalCount, rec.WarningCount})
	if err != nil {
		return fmt.Errorf("repository: marshal validation output: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO validation_records (record_id, task_id, roadmap_id, round, is_valid, overall_score, output, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		rec.ID, rec.TaskID, rec.RoadmapID, rec.Round,
		boolToInt(rec.IsValid), rec.OverallScore, string(out), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: insert validation record: %w", err)
	}
	return nil
}

func (r *ValidationRecordRepo) ForTask(ctx context.Context, taskID string) ([]roadmap.ValidationRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT record_id, task_id, roadmap_id, round, is_valid, overall_score, output, created_at
		FROM validation_records WHERE task_id = ? ORDER BY round ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("repository: list validation records: %w", err)
	}
	defer rows.Close()

	var out []roadmap.ValidationRecord
	for rows.Next() {
		var rec roadmap.ValidationRecord
		var isValid int
		var outputJSON string
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.RoadmapID, &rec.Round,
			&isValid, &rec.OverallScore, &outputJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan validation record: %w", err)
		}
		rec.IsValid = isValid != 0

		var decoded struct {
			DimensionScores []roadmap.DimensionScore `json:"dimension_scores"`
			Suggestions     []string                  `json:"suggestions"`
			CriticalCount   int                        `json:"critical_count"`
			WarningCount    int                        `json:"warning_count"`
		}
		if err := json.Unmarshal([]byte(outputJSON), &decoded); err != nil {
			return nil, fmt.Errorf("repository: unmarshal validation output: %w", err)
		}
		rec.DimensionScores = decoded.DimensionScores
		rec.Suggestions = decoded.Suggestions
		rec.CriticalCount = decoded.CriticalCount
		rec.WarningCount = decoded.WarningCount
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EditRecordRepo persists applied edits: the origin and modified framework
// plus the diffed set of changed concept IDs, per roadmap.DiffChangedConcepts.
type EditRecordRepo struct {
	store *Store
}

func NewEditRecordRepo(store *Store) *EditRecordRepo {
	return &EditRecordRepo{store: store}
}

func (r *EditRecordRepo) Save(ctx context.Context, rec roadmap.EditRecord) error {
	origin, err := json.Marshal(rec.OriginFramework)
	if err != nil {
		return fmt.Errorf("repository: marshal origin framework: %w", err)
	}
	modified, err := json.Marshal(rec.ModifiedFramework)
	if err != nil {
		return fmt.Errorf("repository: marshal modified framework: %w", err)
	}
	changed, err := json.Marshal(rec.ChangedConceptIDs)
	if err != nil {
		return fmt.Errorf("repository: marshal changed concepts: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO edit_records (
			record_id, task_id, roadmap_id, source, origin_framework,
			modified_framework, changed_concept_ids, summary, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.TaskID, rec.RoadmapID, "", // source not modeled on EditRecord itself
		string(origin), string(modified), string(changed), rec.Summary, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: insert edit record: %w", err)
	}
	return nil
}

func (r *EditRecordRepo) ForTask(ctx context.Context, taskID string) ([]roadmap.EditRecord, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT record_id, task_id, roadmap_id, origin_framework,
			modified_framework, changed_concept_ids, summary, created_at
		FROM edit_records WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("repository: list edit records: %w", err)
	}
	defer rows.Close()

	var out []roadmap.EditRecord
	for rows.Next() {
		var rec roadmap.EditRecord
		var origin, modified, changed string
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.RoadmapID,
			&origin, &modified, &changed, &rec.Summary, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan edit record: %w", err)
		}
		if err := json.Unmarshal([]byte(origin), &rec.OriginFramework); err != nil {
			return nil, fmt.Errorf("repository: unmarshal origin framework: %w", err)
		}
		if err := json.Unmarshal([]byte(modified), &rec.ModifiedFramework); err != nil {
			return nil, fmt.Errorf("repository: unmarshal modified framework: %w", err)
		}
		if err := json.Unmarshal([]byte(changed), &rec.ChangedConceptIDs); err != nil {
			return nil, fmt.Errorf("repository: unmarshal changed concepts: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EditPlanRecordRepo persists the decomposed EditPlan produced either by
// the Validation Edit Plan Analysis runner (source=validation_failed) or
// the human-feedback Edit Plan Analysis runner (source=human_review).
type EditPlanRecordRepo struct {
	store *Store
}

func NewEditPlanRecordRepo(store *Store) *EditPlanRecordRepo {
	return &EditPlanRecordRepo{store: store}
}

func (r *EditPlanRecordRepo) Save(ctx context.Context, rec roadmap.EditPlanRecord) error {
	plan, err := json.Marshal(rec.Plan)
	if err != nil {
		return fmt.Errorf("repository: marshal edit plan: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO edit_plan_records (record_id, task_id, roadmap_id, source, plan, created_at)
		VALUES (?,?,?,?,?,?)`,
		rec.ID, rec.TaskID, rec.RoadmapID, string(rec.Source), string(plan), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: insert edit plan record: %w", err)
	}
	return nil
}

func (r *EditPlanRecordRepo) Get(ctx context.Context, recordID string) (roadmap.EditPlanRecord, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT record_id, task_id, roadmap_id, source, plan, created_at
		FROM edit_plan_records WHERE record_id = ?`, recordID)

	var rec roadmap.EditPlanRecord
	var source, plan string
	err := row.Scan(&rec.ID, &rec.TaskID, &rec.RoadmapID, &source, &plan, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return roadmap.EditPlanRecord{}, ErrNotFound
	}
	if err != nil {
		return roadmap.EditPlanRecord{}, fmt.Errorf("repository: scan edit plan record: %w", err)
	}
	rec.Source = roadmap.EditSource(source)
	if err := json.Unmarshal([]byte(plan), &rec.Plan); err != nil {
		return roadmap.EditPlanRecord{}, fmt.Errorf("repository: unmarshal edit plan: %w", err)
	}
	return rec, nil
}

// HumanReviewFeedbackRepo persists each round of human review on a roadmap,
// including the framework snapshot the reviewer actually saw.
type HumanReviewFeedbackRepo struct {
	store *Store
}

func NewHumanReviewFeedbackRepo(store *Store) *HumanReviewFeedbackRepo {
	return &HumanReviewFeedbackRepo{store: store}
}

func (r *HumanReviewFeedbackRepo) Save(ctx context.Context, f roadmap.HumanReviewFeedback) error {
	snap, err := json.Marshal(f.FrameworkSnapshot)
	if err != nil {
		return fmt.Errorf("repository: marshal framework snapshot: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO human_review_feedback (
			feedback_id, task_id, roadmap_id, review_round, approved, feedback,
			framework_snapshot, created_at
		) VALUES (?,?,?,?,?,?,?,?)`,
		f.ID, f.TaskID, f.RoadmapID, f.ReviewRound,
		boolToInt(f.Approved), f.Feedback, string(snap), f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: insert review feedback: %w", err)
	}
	return nil
}

func (r *HumanReviewFeedbackRepo) ForTask(ctx context.Context, taskID string) ([]roadmap.HumanReviewFeedback, error) {
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT feedback_id, task_id, roadmap_id, review_round, approved,
			feedback, framework_snapshot, created_at
		FROM human_review_feedback WHERE task_id = ? ORDER BY review_round ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("repository: list review feedback: %w", err)
	}
	defer rows.Close()

	var out []roadmap.HumanReviewFeedback
	for rows.Next() {
		var f roadmap.HumanReviewFeedback
		var approved int
		var snap string
		if err := rows.Scan(&f.ID, &f.TaskID, &f.RoadmapID, &f.ReviewRound,
			&approved, &f.Feedback, &snap, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan review feedback: %w", err)
		}
		f.Approved = approved != 0
		if err := json.Unmarshal([]byte(snap), &f.FrameworkSnapshot); err != nil {
			return nil, fmt.Errorf("repository: unmarshal framework snapshot: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
