package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// IntentAnalysis is the graph's entry node: it turns the free-text user
// request into a structured IntentAnalysis and claims a unique roadmap_id
// for the run.
type IntentAnalysis struct {
	Agent agent.IntentAgent
	Brain *brain.Brain
	Next  string
}

func (n IntentAnalysis) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	return runNode(ctx, n.Brain, state.TaskID, NodeIntentAnalysis, func(ctx context.Context) (roadmap.RoadmapState, graph.Next, error) {
		analysis, err := n.Agent.Analyze(ctx, agent.IntentInput{UserRequest: state.UserRequest})
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: intent analysis: %w", err)
		}

		task, err := n.Brain.Tasks().Get(ctx, state.TaskID)
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: intent analysis: load task: %w", err)
		}

		roadmapID, err := n.Brain.EnsureUniqueRoadmapID(ctx, analysis.RoadmapIDCandidate)
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: intent analysis: %w", err)
		}
		analysis.RoadmapIDCandidate = roadmapID

		if err := n.Brain.SaveIntentAnalysis(ctx, state.TaskID, task.UserID, roadmapID, analysis); err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: intent analysis: %w", err)
		}

		delta := roadmap.RoadmapState{
			IntentAnalysis:   &analysis,
			RoadmapID:        roadmapID,
			CurrentStep:      NodeIntentAnalysis,
			ExecutionHistory: historyEntry(NodeIntentAnalysis, "roadmap_id="+roadmapID),
		}
		return delta, graph.Goto(n.Next), nil
	})
}
