package roadmap

// IntentAnalysis is the intent agent's structured output: a roadmap_id
// candidate, key technologies, difficulty profile, time constraints,
// skill-gap analysis, language preferences, and recommended focus.
type IntentAnalysis struct {
	RoadmapIDCandidate string   `json:"roadmap_id_candidate"`
	KeyTechnologies    []string `json:"key_technologies"`
	DifficultyProfile  string   `json:"difficulty_profile"`
	TimeConstraints    string   `json:"time_constraints,omitempty"`
	SkillGaps          []string `json:"skill_gaps,omitempty"`
	LanguagePreference string   `json:"language_preference,omitempty"`
	RecommendedFocus   string   `json:"recommended_focus,omitempty"`
}

// ArtifactRef points at a generated content artifact (tutorial, resource
// bundle, or quiz) for one concept, keyed by concept_id in the corresponding
// merge channel.
type ArtifactRef struct {
	ConceptID string `json:"concept_id"`
	RefID     string `json:"ref_id"`
}

// HistoryEntry is one append-only entry in the execution_history channel,
// a lightweight trace of which node ran and when, distinct from the richer
// ExecutionLogEntry persisted by the Execution Logger.
type HistoryEntry struct {
	Step   string `json:"step"`
	Detail string `json:"detail,omitempty"`
}
