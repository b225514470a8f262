package nodes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/nodes"
	"github.com/roadmapforge/orchestrator/roadmap"
)

type fakeScheduler struct {
	out nodes.FanOutResult
	err error
}

func (f *fakeScheduler) Run(ctx context.Context, taskID, roadmapID string, fw roadmap.Framework) (nodes.FanOutResult, error) {
	return f.out, f.err
}

func TestContentFanOut_Run_DelegatesAndStops(t *testing.T) {
	fw := sampleFramework("learn-go")
	scheduler := &fakeScheduler{out: nodes.FanOutResult{
		TutorialRefs: map[string]roadmap.ArtifactRef{"c1": {ConceptID: "c1", RefID: "tut/c1"}},
		ResourceRefs: map[string]roadmap.ArtifactRef{"c1": {ConceptID: "c1", RefID: "res/c1"}},
		QuizRefs:     map[string]roadmap.ArtifactRef{"c1": {ConceptID: "c1", RefID: "quiz/c1"}},
	}}

	n := nodes.ContentFanOut{Scheduler: scheduler}
	state := roadmap.RoadmapState{TaskID: "t1", RoadmapID: "learn-go", RoadmapFramework: &fw}
	result := n.Run(context.Background(), state)

	require.NoError(t, result.Err)
	assert.Equal(t, graph.Stop(), result.Route)
	assert.Len(t, result.Delta.TutorialRefs, 1)
	assert.Empty(t, result.Delta.FailedConcepts)
}

func TestContentFanOut_Run_PropagatesFailedConcepts(t *testing.T) {
	fw := sampleFramework("learn-go")
	scheduler := &fakeScheduler{out: nodes.FanOutResult{
		FailedConcepts: []roadmap.FailureRecord{{ConceptID: "c2", Reason: "tutorial agent timeout"}},
	}}

	n := nodes.ContentFanOut{Scheduler: scheduler}
	state := roadmap.RoadmapState{TaskID: "t1", RoadmapID: "learn-go", RoadmapFramework: &fw}
	result := n.Run(context.Background(), state)

	require.NoError(t, result.Err)
	require.Len(t, result.Delta.FailedConcepts, 1)
	assert.Equal(t, "c2", result.Delta.FailedConcepts[0].ConceptID)
}

func TestContentFanOut_Run_NoFrameworkIsError(t *testing.T) {
	n := nodes.ContentFanOut{Scheduler: &fakeScheduler{}}
	result := n.Run(context.Background(), roadmap.RoadmapState{TaskID: "t1", RoadmapID: "learn-go"})
	assert.ErrorIs(t, result.Err, nodes.ErrNoFramework)
}

func TestContentFanOut_Run_SchedulerErrorPropagates(t *testing.T) {
	n := nodes.ContentFanOut{Scheduler: &fakeScheduler{err: assert.AnError}}
	fw := sampleFramework("learn-go")
	result := n.Run(context.Background(), roadmap.RoadmapState{TaskID: "t1", RoadmapID: "learn-go", RoadmapFramework: &fw})
	assert.Error(t, result.Err)
}
