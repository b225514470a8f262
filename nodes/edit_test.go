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

func TestRoadmapEdit_Run_AppliesPlanAndIncrementsRound(t *testing.T) {
	b := newTestBrain(t)
	ctx := context.Background()
	seedTask(t, b, "t1")
	origin := sampleFramework("learn-go")
	require.NoError(t, b.SaveIntentAnalysis(ctx, "t1", "u1", "learn-go", roadmap.IntentAnalysis{}))
	require.NoError(t, b.SaveRoadmapFramework(ctx, "t1", "learn-go", origin))

	modified := origin
	modified.Stages[0].Modules[0].Concepts[0].Name = "Variables and Constants"

	plan := roadmap.EditPlan{Intents: []roadmap.EditIntent{{IntentType: roadmap.EditModify, Priority: roadmap.PriorityMust, TargetPath: "stages[0].modules[0].concepts[0]"}}}
	n := nodes.RoadmapEdit{
		Agent: &fakeEditorAgent{out: modified},
		Brain: b,
		Next:  nodes.NodeStructureValidation,
	}

	state := roadmap.RoadmapState{
		TaskID:           "t1",
		RoadmapID:        "learn-go",
		RoadmapFramework: &origin,
		EditPlan:         &plan,
		EditSource:       roadmap.EditSourceValidationFailed,
	}
	result := n.Run(ctx, state)

	require.NoError(t, result.Err)
	assert.Equal(t, graph.Goto(nodes.NodeStructureValidation), result.Route)
	assert.Equal(t, 1, result.Delta.ModificationCount)
	require.NotNil(t, result.Delta.RoadmapFramework)
	assert.Equal(t, "Variables and Constants", result.Delta.RoadmapFramework.Stages[0].Modules[0].Concepts[0].Name)
	assert.Equal(t, roadmap.EditSourceValidationFailed, result.Delta.EditSource)

	got, err := b.Roadmaps().Get(ctx, "learn-go")
	require.NoError(t, err)
	assert.Equal(t, "Variables and Constants", got.Framework.Stages[0].Modules[0].Concepts[0].Name)
}

func TestRoadmapEdit_Run_NoEditPlanIsError(t *testing.T) {
	b := newTestBrain(t)
	seedTask(t, b, "t1")
	fw := sampleFramework("learn-go")

	n := nodes.RoadmapEdit{Agent: &fakeEditorAgent{}, Brain: b, Next: nodes.NodeStructureValidation}
	result := n.Run(context.Background(), roadmap.RoadmapState{TaskID: "t1", RoadmapID: "learn-go", RoadmapFramework: &fw})
	assert.ErrorIs(t, result.Err, nodes.ErrNoEditPlan)
}

func TestRoadmapEdit_Run_NoFrameworkIsError(t *testing.T) {
	b := newTestBrain(t)
	seedTask(t, b, "t1")
	plan := roadmap.EditPlan{}

	n := nodes.RoadmapEdit{Agent: &fakeEditorAgent{}, Brain: b, Next: nodes.NodeStructureValidation}
	result := n.Run(context.Background(), roadmap.RoadmapState{TaskID: "t1", RoadmapID: "learn-go", EditPlan: &plan})
	assert.ErrorIs(t, result.Err, nodes.ErrNoFramework)
}
