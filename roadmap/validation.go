package roadmap

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Issue is a single structural or semantic problem found in a Framework,
// whether by the local structural checker or the validator agent.
type Issue struct {
	Severity         Severity `json:"severity"`
	Category         string   `json:"category"`
	Location         string   `json:"location"`
	Description      string   `json:"description"`
	AffectedConcepts []string `json:"affected_concepts,omitempty"`
}

// DimensionScore is one scored axis of a ValidationOutput (e.g.
// "coherence", "completeness", "progression", "accuracy", "pacing").
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`  // 0-100
	Weight    float64 `json:"weight"` // fixed distribution, sums to 1.0
}

// ValidationOutput is the validator agent's structured response plus the
// engine-computed OverallScore and IsValid.
type ValidationOutput struct {
	IsValid               bool             `json:"is_valid"`
	OverallScore          float64          `json:"overall_score"`
	Issues                []Issue          `json:"issues"`
	DimensionScores       []DimensionScore `json:"dimension_scores"`
	ImprovementSuggestions []string        `json:"improvement_suggestions,omitempty"`
	ValidationSummary     string           `json:"validation_summary"`
}

// CriticalCount returns the number of issues with SeverityCritical.
func (v ValidationOutput) CriticalCount() int {
	n := 0
	for _, i := range v.Issues {
		if i.Severity == SeverityCritical {
			n++
		}
	}
	return n
}

// WarningCount returns the number of issues with SeverityWarning.
func (v ValidationOutput) WarningCount() int {
	n := 0
	for _, i := range v.Issues {
		if i.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// ScoreValidation computes overall_score = Σ(dimension_score_i ×
// dimension_weight_i) − 10·critical_count − 5·warning_count, clamped to
// [0, 100], and sets IsValid true iff no critical issue is present.
func ScoreValidation(dimensions []DimensionScore, issues []Issue) (score float64, isValid bool) {
	var weighted float64
	for _, d := range dimensions {
		weighted += d.Score * d.Weight
	}

	critical, warning := 0, 0
	for _, i := range issues {
		switch i.Severity {
		case SeverityCritical:
			critical++
		case SeverityWarning:
			warning++
		}
	}

	weighted -= 10 * float64(critical)
	weighted -= 5 * float64(warning)
	if weighted < 0 {
		weighted = 0
	}
	if weighted > 100 {
		weighted = 100
	}

	return weighted, critical == 0
}

// DefaultDimensionWeights is the fixed distribution of validator dimensions
// used when the validator agent does not supply its own weights. Weights
// sum to 1.0.
var DefaultDimensionWeights = map[string]float64{
	"coherence":    0.25,
	"completeness": 0.25,
	"progression":  0.2,
	"accuracy":     0.2,
	"pacing":       0.1,
}

// ValidationRecord is the audit entity persisted for one validation round.
type ValidationRecord struct {
	ID              string           `json:"id"`
	RoadmapID       string           `json:"roadmap_id"`
	TaskID          string           `json:"task_id"`
	Round           int              `json:"round"`
	IsValid         bool             `json:"is_valid"`
	OverallScore    float64          `json:"overall_score"`
	CriticalCount   int              `json:"critical_count"`
	WarningCount    int              `json:"warning_count"`
	DimensionScores []DimensionScore `json:"dimension_scores"`
	Suggestions     []string         `json:"suggestions,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

// EditIntentType classifies a single intent within an EditPlan.
type EditIntentType string

const (
	EditAdd     EditIntentType = "add"
	EditRemove  EditIntentType = "remove"
	EditModify  EditIntentType = "modify"
	EditReorder EditIntentType = "reorder"
	EditSplit   EditIntentType = "split"
	EditMerge   EditIntentType = "merge"
)

// EditPriority ranks how strongly an EditIntent should be honored.
type EditPriority string

const (
	PriorityMust   EditPriority = "must"
	PriorityShould EditPriority = "should"
	PriorityCould  EditPriority = "could"
)

// EditIntent is a single structured modification request decomposed from
// free-text feedback.
type EditIntent struct {
	IntentType  EditIntentType `json:"intent_type"`
	TargetPath  string         `json:"target_path"` // e.g. "stages[2].modules[0]"
	Description string         `json:"description"`
	Priority    EditPriority   `json:"priority"`
}

// EditPlan decomposes free-text feedback (from validation failure or human
// rejection) into typed modification intents.
type EditPlan struct {
	FeedbackSummary          string       `json:"feedback_summary"`
	ScopeAnalysis            string       `json:"scope_analysis"`
	PreservationRequirements []string     `json:"preservation_requirements,omitempty"`
	Intents                  []EditIntent `json:"intents"`
	NeedsClarification       bool         `json:"needs_clarification"`
}

// PriorityCounts tallies intents by priority, used to build the editor
// agent's context string.
func (p EditPlan) PriorityCounts() map[EditPriority]int {
	counts := map[EditPriority]int{PriorityMust: 0, PriorityShould: 0, PriorityCould: 0}
	for _, intent := range p.Intents {
		counts[intent.Priority]++
	}
	return counts
}

// EditSource distinguishes which branch of the graph produced an EditPlan.
type EditSource string

const (
	EditSourceValidationFailed EditSource = "validation_failed"
	EditSourceHumanReview      EditSource = "human_review"
)

// EditPlanRecord is the audit entity for one edit-plan analysis.
type EditPlanRecord struct {
	ID        string     `json:"id"`
	RoadmapID string     `json:"roadmap_id"`
	TaskID    string     `json:"task_id"`
	Source    EditSource `json:"source"`
	Plan      EditPlan   `json:"plan"`
	CreatedAt string     `json:"created_at"`
}

// EditRecord is the audit entity for one roadmap-edit application: the
// framework snapshots before and after, and the computed diff.
type EditRecord struct {
	ID               string    `json:"id"`
	RoadmapID        string    `json:"roadmap_id"`
	TaskID           string    `json:"task_id"`
	Round            int       `json:"round"`
	OriginFramework  Framework `json:"origin_framework"`
	ModifiedFramework Framework `json:"modified_framework"`
	ChangedConceptIDs []string `json:"changed_concept_ids"`
	Summary          string    `json:"summary"`
	CreatedAt        string    `json:"created_at"`
}

// HumanReviewFeedback is the audit entity recording one round of human
// review.
type HumanReviewFeedback struct {
	ID               string    `json:"id"`
	RoadmapID        string    `json:"roadmap_id"`
	TaskID           string    `json:"task_id"`
	ReviewRound      int       `json:"review_round"`
	Approved         bool      `json:"approved"`
	Feedback         string    `json:"feedback,omitempty"`
	FrameworkSnapshot Framework `json:"framework_snapshot"`
	CreatedAt        string    `json:"created_at"`
}

// DiffChangedConcepts computes the set of concept_ids present in either
// framework whose serialized content differs between origin and modified.
func DiffChangedConcepts(origin, modified Framework) []string {
	originByID := make(map[string]Concept)
	origin.Walk(func(_ *Stage, _ *Module, c *Concept) { originByID[c.ConceptID] = *c })

	var changed []string
	modified.Walk(func(_ *Stage, _ *Module, c *Concept) {
		prior, ok := originByID[c.ConceptID]
		if !ok || !conceptsEqual(prior, *c) {
			changed = append(changed, c.ConceptID)
		}
		delete(originByID, c.ConceptID)
	})
	for removedID := range originByID {
		changed = append(changed, removedID)
	}
	return changed
}

func conceptsEqual(a, b Concept) bool {
	if a.Name != b.Name || a.Description != b.Description || a.Difficulty != b.Difficulty {
		return false
	}
	if len(a.Prerequisites) != len(b.Prerequisites) {
		return false
	}
	for i := range a.Prerequisites {
		if a.Prerequisites[i] != b.Prerequisites[i] {
			return false
		}
	}
	return true
}
