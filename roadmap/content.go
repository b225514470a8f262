package roadmap

import "time"

// RoadmapMetadata is keyed by roadmap_id; it holds the roadmap title,
// totals, the complete Framework, soft-delete markers, and ownership.
type RoadmapMetadata struct {
	RoadmapID   string     `json:"roadmap_id"`
	UserID      string     `json:"user_id"`
	TaskID      string     `json:"task_id"`
	Title       string     `json:"title"`
	StageCount  int        `json:"stage_count"`
	ModuleCount int        `json:"module_count"`
	ConceptCount int       `json:"concept_count"`
	Framework   Framework  `json:"framework"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	DeletedBy   string     `json:"deleted_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Totals recomputes StageCount/ModuleCount/ConceptCount from Framework.
func (m *RoadmapMetadata) Totals() (stages, modules, concepts int) {
	stages = len(m.Framework.Stages)
	for _, s := range m.Framework.Stages {
		modules += len(s.Modules)
		for _, mod := range s.Modules {
			concepts += len(mod.Concepts)
		}
	}
	return
}

// TutorialMetadata is keyed by its own ID and joined to (roadmap_id,
// concept_id). Supports versioning: for each (roadmap_id, concept_id) at
// most one row has IsLatest = true. The body lives in an external object
// store; BodyURL references it.
type TutorialMetadata struct {
	ID             string    `json:"id"`
	RoadmapID      string    `json:"roadmap_id"`
	ConceptID      string    `json:"concept_id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	Status         ContentStatus `json:"status"`
	ContentVersion int       `json:"content_version"`
	IsLatest       bool      `json:"is_latest"`
	BodyURL        string    `json:"body_url"`
	EstimatedTime  float64   `json:"estimated_time_minutes"`
	CreatedAt      time.Time `json:"created_at"`
}

// ObjectKey builds the caller-chosen key path the object store references:
// {roadmap_id}/concepts/{concept_id}/v{version}.md.
func (t TutorialMetadata) ObjectKey() string {
	return t.RoadmapID + "/concepts/" + t.ConceptID + "/v" +
		itoa(t.ContentVersion) + ".md"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ResourceRecommendationMetadata is single-version on read: lookups by
// (roadmap_id, concept_id) return only the newest row; older rows are kept.
type ResourceRecommendationMetadata struct {
	ID        string        `json:"id"`
	RoadmapID string        `json:"roadmap_id"`
	ConceptID string        `json:"concept_id"`
	Status    ContentStatus `json:"status"`
	Resources []Resource    `json:"resources"`
	CreatedAt time.Time     `json:"created_at"`
}

// Resource is a single recommended learning resource (article, video,
// documentation) for a concept.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"` // article | video | docs | course
}

// QuizMetadata is single-version like ResourceRecommendationMetadata.
type QuizMetadata struct {
	ID        string         `json:"id"`
	RoadmapID string         `json:"roadmap_id"`
	ConceptID string         `json:"concept_id"`
	Status    ContentStatus  `json:"status"`
	Questions []QuizQuestion `json:"questions"`
	CreatedAt time.Time      `json:"created_at"`
}

// QuizQuestion is one multiple-choice question in a generated quiz.
type QuizQuestion struct {
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	CorrectChoice int      `json:"correct_choice"`
	Explanation   string   `json:"explanation,omitempty"`
}
