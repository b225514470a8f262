package roadmap

import "testing"

func TestReduce_ScalarLastWriteWins(t *testing.T) {
	prev := RoadmapState{CurrentStep: "intent_analysis", ModificationCount: 1}
	delta := RoadmapState{CurrentStep: "curriculum_design"}

	got := Reduce(prev, delta)

	if got.CurrentStep != "curriculum_design" {
		t.Errorf("expected CurrentStep = curriculum_design, got %q", got.CurrentStep)
	}
	if got.ModificationCount != 1 {
		t.Errorf("expected ModificationCount unchanged at 1, got %d", got.ModificationCount)
	}
}

func TestReduce_MergeChannelUnion(t *testing.T) {
	prev := RoadmapState{
		TutorialRefs: map[string]ArtifactRef{"c1": {ConceptID: "c1", RefID: "t1"}},
	}
	delta := RoadmapState{
		TutorialRefs: map[string]ArtifactRef{"c2": {ConceptID: "c2", RefID: "t2"}},
	}

	got := Reduce(prev, delta)

	if len(got.TutorialRefs) != 2 {
		t.Fatalf("expected 2 tutorial refs after merge, got %d", len(got.TutorialRefs))
	}
	if got.TutorialRefs["c1"].RefID != "t1" || got.TutorialRefs["c2"].RefID != "t2" {
		t.Errorf("merge did not preserve both keys: %#v", got.TutorialRefs)
	}
}

func TestReduce_MergeChannelOverwritesExistingKey(t *testing.T) {
	prev := RoadmapState{
		TutorialRefs: map[string]ArtifactRef{"c1": {ConceptID: "c1", RefID: "t1"}},
	}
	delta := RoadmapState{
		TutorialRefs: map[string]ArtifactRef{"c1": {ConceptID: "c1", RefID: "t1-retry"}},
	}

	got := Reduce(prev, delta)

	if got.TutorialRefs["c1"].RefID != "t1-retry" {
		t.Errorf("expected later write to overwrite key c1, got %q", got.TutorialRefs["c1"].RefID)
	}
}

func TestReduce_AppendChannelAccumulates(t *testing.T) {
	prev := RoadmapState{
		FailedConcepts: []FailureRecord{{ConceptID: "c1", Stage: "tutorial"}},
	}
	delta := RoadmapState{
		FailedConcepts: []FailureRecord{{ConceptID: "c2", Stage: "quiz"}},
	}

	got := Reduce(prev, delta)

	if len(got.FailedConcepts) != 2 {
		t.Fatalf("expected 2 failed concepts after append, got %d", len(got.FailedConcepts))
	}
	if got.FailedConcepts[0].ConceptID != "c1" || got.FailedConcepts[1].ConceptID != "c2" {
		t.Errorf("append did not preserve order: %#v", got.FailedConcepts)
	}
}

func TestReduce_AppendDoesNotMutatePriorSlice(t *testing.T) {
	original := []FailureRecord{{ConceptID: "c1"}}
	prev := RoadmapState{FailedConcepts: original}
	delta := RoadmapState{FailedConcepts: []FailureRecord{{ConceptID: "c2"}}}

	_ = Reduce(prev, delta)

	if len(original) != 1 {
		t.Fatalf("Reduce must not mutate the prior state's slice in place, len=%d", len(original))
	}
}

func TestReduce_PointerScalarOverwrite(t *testing.T) {
	approved := true
	prev := RoadmapState{}
	delta := RoadmapState{HumanApproved: &approved}

	got := Reduce(prev, delta)

	if got.HumanApproved == nil || !*got.HumanApproved {
		t.Errorf("expected HumanApproved = true")
	}
}
