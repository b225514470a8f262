package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// ErrNoIntentAnalysis is returned when Curriculum Design runs before Intent
// Analysis has populated state.IntentAnalysis.
var ErrNoIntentAnalysis = fmt.Errorf("nodes: curriculum design: no intent analysis in state")

// CurriculumDesign calls the curriculum architect agent and persists the
// resulting three-level framework tree.
type CurriculumDesign struct {
	Agent agent.CurriculumAgent
	Brain *brain.Brain
	Next  string
}

func (n CurriculumDesign) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	return runNode(ctx, n.Brain, state.TaskID, NodeCurriculumDesign, func(ctx context.Context) (roadmap.RoadmapState, graph.Next, error) {
		if state.IntentAnalysis == nil {
			return roadmap.RoadmapState{}, graph.Next{}, ErrNoIntentAnalysis
		}

		fw, err := n.Agent.Design(ctx, agent.CurriculumInput{
			RoadmapID: state.RoadmapID,
			Intent:    *state.IntentAnalysis,
		})
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: curriculum design: %w", err)
		}

		if fw.RoadmapID != state.RoadmapID {
			n.Brain.Logger().Warning(state.TaskID,
				fmt.Sprintf("curriculum agent returned roadmap_id %q, overwriting with %q", fw.RoadmapID, state.RoadmapID),
				exlog.WithStep(NodeCurriculumDesign))
			fw.RoadmapID = state.RoadmapID
		}

		if err := n.Brain.SaveRoadmapFramework(ctx, state.TaskID, state.RoadmapID, fw); err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: curriculum design: %w", err)
		}

		delta := roadmap.RoadmapState{
			RoadmapFramework: &fw,
			CurrentStep:      NodeCurriculumDesign,
			ExecutionHistory: historyEntry(NodeCurriculumDesign, fw.Title),
		}
		return delta, graph.Goto(n.Next), nil
	})
}
