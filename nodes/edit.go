package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// ErrNoEditPlan is returned when Roadmap Edit runs without a pending
// EditPlan in state.
var ErrNoEditPlan = fmt.Errorf("nodes: roadmap edit: no edit plan in state")

// RoadmapEdit applies a pending EditPlan to the framework, diffs origin vs
// modified to compute the changed concept set, and increments
// modification_count. Next is either structure_validation (the normal
// cycle) or curriculum_design when Structure Validation is skipped by
// config.
type RoadmapEdit struct {
	Agent agent.EditorAgent
	Brain *brain.Brain
	Next  string
}

func (n RoadmapEdit) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	return runNode(ctx, n.Brain, state.TaskID, NodeRoadmapEdit, func(ctx context.Context) (roadmap.RoadmapState, graph.Next, error) {
		if state.EditPlan == nil {
			return roadmap.RoadmapState{}, graph.Next{}, ErrNoEditPlan
		}
		if state.RoadmapFramework == nil {
			return roadmap.RoadmapState{}, graph.Next{}, ErrNoFramework
		}

		round := state.ModificationCount + 1
		counts := state.EditPlan.PriorityCounts()
		roundInfo := fmt.Sprintf("edit round %d of roadmap %s (must=%d should=%d could=%d)",
			round, state.RoadmapID, counts[roadmap.PriorityMust], counts[roadmap.PriorityShould], counts[roadmap.PriorityCould])

		origin := *state.RoadmapFramework
		modified, err := n.Agent.Apply(ctx, agent.EditorInput{
			Plan:      *state.EditPlan,
			Framework: origin,
			RoundInfo: roundInfo,
		})
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: roadmap edit: %w", err)
		}

		summary := fmt.Sprintf("applied %d edit intent(s) from %s", len(state.EditPlan.Intents), state.EditSource)
		changed, err := n.Brain.SaveEditResult(ctx, state.TaskID, state.RoadmapID, round, origin, modified, summary)
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: roadmap edit: %w", err)
		}

		delta := roadmap.RoadmapState{
			RoadmapFramework:  &modified,
			ModificationCount: round,
			EditSource:        state.EditSource,
			CurrentStep:       NodeRoadmapEdit,
			ExecutionHistory:  historyEntry(NodeRoadmapEdit, fmt.Sprintf("changed %d concept(s)", len(changed))),
		}
		return delta, graph.Goto(n.Next), nil
	})
}
