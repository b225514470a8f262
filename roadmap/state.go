package roadmap

// RoadmapState is the typed channel-state record the graph engine folds
// every node's Delta into via Reduce. Each field is one channel, combined
// by its own rule: scalar fields are last-write-wins, the three *_refs
// maps are merge/union (a node returns
// only its new entries), and FailedConcepts/ExecutionHistory are append-only
// (a node returns only its new items). A node must never rely on observing
// prior keys of a merge channel or prior items of an append channel — the
// Reduce function owns combining them with prior state.
type RoadmapState struct {
	// scalar channels (last-write-wins)
	UserRequest       string
	TaskID            string
	RoadmapID         string
	IntentAnalysis    *IntentAnalysis
	RoadmapFramework  *Framework
	ValidationResult  *ValidationOutput
	EditPlan          *EditPlan
	UserFeedback      string
	EditSource        EditSource
	ValidationRound   int
	ModificationCount int
	CurrentStep       string
	HumanApproved     *bool
	ReviewFeedbackID  string
	EditPlanRecordID  string

	// mapping channels (merge/union; later writes overwrite existing keys)
	TutorialRefs map[string]ArtifactRef
	ResourceRefs map[string]ArtifactRef
	QuizRefs     map[string]ArtifactRef

	// sequence channels (append)
	FailedConcepts  []FailureRecord
	ExecutionHistory []HistoryEntry
}

// Reduce is RoadmapState's Reducer, matching graph.Reducer[RoadmapState].
// Scalar fields in delta overwrite prev only when non-zero; merge-channel
// maps are unioned key-by-key; append-channel slices are concatenated.
func Reduce(prev, delta RoadmapState) RoadmapState {
	if delta.UserRequest != "" {
		prev.UserRequest = delta.UserRequest
	}
	if delta.TaskID != "" {
		prev.TaskID = delta.TaskID
	}
	if delta.RoadmapID != "" {
		prev.RoadmapID = delta.RoadmapID
	}
	if delta.IntentAnalysis != nil {
		prev.IntentAnalysis = delta.IntentAnalysis
	}
	if delta.RoadmapFramework != nil {
		prev.RoadmapFramework = delta.RoadmapFramework
	}
	if delta.ValidationResult != nil {
		prev.ValidationResult = delta.ValidationResult
	}
	if delta.EditPlan != nil {
		prev.EditPlan = delta.EditPlan
	}
	if delta.UserFeedback != "" {
		prev.UserFeedback = delta.UserFeedback
	}
	if delta.EditSource != "" {
		prev.EditSource = delta.EditSource
	}
	if delta.ValidationRound != 0 {
		prev.ValidationRound = delta.ValidationRound
	}
	if delta.ModificationCount != 0 {
		prev.ModificationCount = delta.ModificationCount
	}
	if delta.CurrentStep != "" {
		prev.CurrentStep = delta.CurrentStep
	}
	if delta.HumanApproved != nil {
		prev.HumanApproved = delta.HumanApproved
	}
	if delta.ReviewFeedbackID != "" {
		prev.ReviewFeedbackID = delta.ReviewFeedbackID
	}
	if delta.EditPlanRecordID != "" {
		prev.EditPlanRecordID = delta.EditPlanRecordID
	}

	prev.TutorialRefs = mergeArtifacts(prev.TutorialRefs, delta.TutorialRefs)
	prev.ResourceRefs = mergeArtifacts(prev.ResourceRefs, delta.ResourceRefs)
	prev.QuizRefs = mergeArtifacts(prev.QuizRefs, delta.QuizRefs)

	if len(delta.FailedConcepts) > 0 {
		prev.FailedConcepts = append(append([]FailureRecord{}, prev.FailedConcepts...), delta.FailedConcepts...)
	}
	if len(delta.ExecutionHistory) > 0 {
		prev.ExecutionHistory = append(append([]HistoryEntry{}, prev.ExecutionHistory...), delta.ExecutionHistory...)
	}

	return prev
}

func mergeArtifacts(prev, delta map[string]ArtifactRef) map[string]ArtifactRef {
	if len(delta) == 0 {
		return prev
	}
	merged := make(map[string]ArtifactRef, len(prev)+len(delta))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	return merged
}
