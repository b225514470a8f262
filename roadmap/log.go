package roadmap

import "time"

// LogLevel is the severity of an ExecutionLog entry.
type LogLevel string

const (
	LogDebug   LogLevel = "debug"
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogCategory classifies the subsystem an ExecutionLog entry belongs to.
type LogCategory string

const (
	CategoryWorkflow LogCategory = "workflow"
	CategoryAgent    LogCategory = "agent"
	CategoryTool     LogCategory = "tool"
	CategoryDatabase LogCategory = "database"
)

// ExecutionLogEntry is one record in the append-only structured log stream
// keyed by task_id.
type ExecutionLogEntry struct {
	ID         string                 `json:"id"`
	TaskID     string                 `json:"task_id"`
	Level      LogLevel               `json:"level"`
	Category   LogCategory            `json:"category"`
	Step       string                 `json:"step,omitempty"`
	AgentName  string                 `json:"agent_name,omitempty"`
	ConceptID  string                 `json:"concept_id,omitempty"`
	RoadmapID  string                 `json:"roadmap_id,omitempty"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// LogSummary aggregates an ExecutionLog query: counts per level, counts per
// category, total duration, and the time range covered.
type LogSummary struct {
	CountByLevel    map[LogLevel]int
	CountByCategory map[LogCategory]int
	TotalDurationMs int64
	EarliestAt      time.Time
	LatestAt        time.Time
}

// EventType enumerates the Event Bus event kinds.
type EventType string

const (
	EventProgress                  EventType = "progress"
	EventHumanReviewRequired       EventType = "human_review_required"
	EventConceptStart              EventType = "concept_start"
	EventConceptComplete           EventType = "concept_complete"
	EventConceptFailed             EventType = "concept_failed"
	EventConceptAllContentComplete EventType = "concept_all_content_complete"
	EventBatchStart                EventType = "batch_start"
	EventBatchComplete             EventType = "batch_complete"
	EventCompleted                 EventType = "completed"
	EventFailed                    EventType = "failed"
	EventTaskRecovering            EventType = "task_recovering"
	EventRetryStarted              EventType = "retry_started"
	EventRetryCompleted            EventType = "retry_completed"
	EventTimeout                   EventType = "timeout"
)

// Terminal event types end a subscriber's event stream.
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed || t == EventTimeout
}

// Event is a transient payload published on the Event Bus. Durable history
// lives in ExecutionLog, not here.
type Event struct {
	Type      EventType              `json:"type"`
	TaskID    string                 `json:"task_id"`
	Status    string                 `json:"status,omitempty"`
	ConceptID string                 `json:"concept_id,omitempty"`
	RoadmapID string                 `json:"roadmap_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
