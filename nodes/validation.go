package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// ErrNoFramework is returned when a node that requires state.RoadmapFramework
// runs before Curriculum Design (or Roadmap Edit) has populated it.
var ErrNoFramework = fmt.Errorf("nodes: no roadmap framework in state")

// StructureValidation runs the local structural checker (prerequisite
// resolution, cycle detection, empty-stage/module detection) and merges
// its findings with the validator agent's issues before scoring. A local
// finding, of any severity, takes precedence over an agent finding at the
// same location.
type StructureValidation struct {
	Agent    agent.ValidatorAgent
	Brain    *brain.Brain
	MaxRetry int

	// EditNode is the node to route to when validation fails and the retry
	// budget is not exhausted.
	EditNode string
	// OnPass decides the next node when validation passes, or when the
	// retry budget is exhausted despite failure: the next-present of
	// human_review, content_fan_out, or terminal.
	OnPass func(state roadmap.RoadmapState) graph.Next
}

func (n StructureValidation) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	return runNode(ctx, n.Brain, state.TaskID, NodeStructureValidation, func(ctx context.Context) (roadmap.RoadmapState, graph.Next, error) {
		if state.RoadmapFramework == nil {
			return roadmap.RoadmapState{}, graph.Next{}, ErrNoFramework
		}
		fw := state.RoadmapFramework

		agentOut, err := n.Agent.Validate(ctx, agent.ValidatorInput{Framework: *fw})
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: structure validation: %w", err)
		}

		localIssues := fw.ValidateStructure()
		issues := mergeIssues(localIssues, agentOut.Issues)
		score, isValid := roadmap.ScoreValidation(agentOut.DimensionScores, issues)

		out := roadmap.ValidationOutput{
			IsValid:                isValid,
			OverallScore:           score,
			Issues:                 issues,
			DimensionScores:        agentOut.DimensionScores,
			ImprovementSuggestions: agentOut.ImprovementSuggestions,
			ValidationSummary:      agentOut.ValidationSummary,
		}

		round := state.ValidationRound + 1
		if err := n.Brain.SaveValidationResult(ctx, state.TaskID, state.RoadmapID, round, out); err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: structure validation: %w", err)
		}

		delta := roadmap.RoadmapState{
			ValidationResult: &out,
			ValidationRound:  round,
			CurrentStep:      NodeStructureValidation,
			ExecutionHistory: historyEntry(NodeStructureValidation, fmt.Sprintf("round %d, score %.1f, valid=%v", round, score, isValid)),
		}

		if !isValid && state.ModificationCount < n.MaxRetry {
			return delta, graph.Goto(n.EditNode), nil
		}
		return delta, n.OnPass(state), nil
	})
}

// mergeIssues combines local structural findings with the validator
// agent's issues. A local finding at a location the agent also flagged
// wins; the agent's finding at that location is dropped.
func mergeIssues(local, agentIssues []roadmap.Issue) []roadmap.Issue {
	localLocations := make(map[string]bool, len(local))
	for _, i := range local {
		localLocations[i.Location] = true
	}

	merged := make([]roadmap.Issue, 0, len(local)+len(agentIssues))
	merged = append(merged, local...)
	for _, i := range agentIssues {
		if localLocations[i.Location] {
			continue
		}
		merged = append(merged, i)
	}
	return merged
}
