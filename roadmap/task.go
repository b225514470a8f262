// Package roadmap defines the domain model shared by every component of the
// workflow: the Task lifecycle, the three-level Framework tree, the content
// and audit records attached to a roadmap, and the channel-state record the
// graph engine folds node deltas into.
package roadmap

import "time"

// TaskType identifies why a workflow instance was started.
type TaskType string

const (
	TaskTypeCreation      TaskType = "creation"
	TaskTypeRetryTutorial TaskType = "retry_tutorial"
	TaskTypeRetryResource TaskType = "retry_resources"
	TaskTypeRetryQuiz     TaskType = "retry_quiz"
	TaskTypeRetryBatch    TaskType = "retry_batch"
)

// TaskStatus is a node in the Task state machine. Transitions are monotonic
// except human_review_pending -> processing on resume; completed,
// partial_failure, failed, and cancelled are terminal.
type TaskStatus string

const (
	TaskPending            TaskStatus = "pending"
	TaskProcessing         TaskStatus = "processing"
	TaskHumanReviewPending TaskStatus = "human_review_pending"
	TaskCompleted          TaskStatus = "completed"
	TaskPartialFailure     TaskStatus = "partial_failure"
	TaskFailed             TaskStatus = "failed"
	TaskCancelled          TaskStatus = "cancelled"
)

// Terminal reports whether status is one of the four terminal states.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskPartialFailure, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// FailureRecord describes why a single concept failed during content
// generation.
type FailureRecord struct {
	ConceptID string    `json:"concept_id"`
	Stage     string    `json:"stage"` // tutorial | resources | quiz
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

// ExecutionSummary holds counts of generated artifacts, attached to a Task on
// completion.
type ExecutionSummary struct {
	TutorialsGenerated int `json:"tutorials_generated"`
	ResourcesGenerated int `json:"resources_generated"`
	QuizzesGenerated   int `json:"quizzes_generated"`
	ConceptsAttempted  int `json:"concepts_attempted"`
	ConceptsFailed     int `json:"concepts_failed"`
}

// Task is the primary entity of a workflow instance; task_id also serves as
// the checkpoint store's thread_id.
type Task struct {
	TaskID           string           `json:"task_id"`
	UserID           string           `json:"user_id"`
	TaskType         TaskType         `json:"task_type"`
	Status           TaskStatus       `json:"status"`
	CurrentStep      string           `json:"current_step"`
	RoadmapID        string           `json:"roadmap_id,omitempty"`
	UserRequest      string           `json:"user_request"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	FailedConcepts   []FailureRecord  `json:"failed_concepts,omitempty"`
	ExecutionSummary ExecutionSummary `json:"execution_summary"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	CeleryTaskID     string           `json:"celery_task_id,omitempty"`
}
