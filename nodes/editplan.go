package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/roadmapforge/orchestrator/agent"
	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// ErrNoValidationResult is returned when the validation-triggered
// EditPlanAnalysis runs without a validation result to derive feedback from.
var ErrNoValidationResult = fmt.Errorf("nodes: edit plan analysis: no validation result in state")

// EditPlanAnalysis decomposes feedback into a structured EditPlan. The same
// runner backs both graph positions that feed roadmap_edit — validation-
// triggered and human-feedback-triggered — distinguished only by Source
// and which feedback text it derives.
type EditPlanAnalysis struct {
	Agent  agent.EditPlanAgent
	Brain  *brain.Brain
	Source roadmap.EditSource
	NodeID string
	Next   string
}

func (n EditPlanAnalysis) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	return runNode(ctx, n.Brain, state.TaskID, n.NodeID, func(ctx context.Context) (roadmap.RoadmapState, graph.Next, error) {
		if state.RoadmapFramework == nil {
			return roadmap.RoadmapState{}, graph.Next{}, ErrNoFramework
		}

		var feedback string
		switch n.Source {
		case roadmap.EditSourceValidationFailed:
			if state.ValidationResult == nil {
				return roadmap.RoadmapState{}, graph.Next{}, ErrNoValidationResult
			}
			feedback = formatValidationFeedback(*state.ValidationResult)
		case roadmap.EditSourceHumanReview:
			feedback = state.UserFeedback
		default:
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: edit plan analysis: unknown source %q", n.Source)
		}

		plan, err := n.Agent.Plan(ctx, agent.EditPlanInput{Feedback: feedback, Framework: *state.RoadmapFramework})
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: edit plan analysis: %w", err)
		}

		if plan.NeedsClarification {
			n.Brain.Logger().Warning(state.TaskID,
				"edit plan needs clarification; proceeding with best-effort understanding rather than blocking")
		}

		recordID, err := n.Brain.SaveEditPlan(ctx, state.TaskID, state.RoadmapID, n.Source, plan)
		if err != nil {
			return roadmap.RoadmapState{}, graph.Next{}, fmt.Errorf("nodes: edit plan analysis: %w", err)
		}

		delta := roadmap.RoadmapState{
			EditPlan:         &plan,
			UserFeedback:     feedback,
			EditSource:       n.Source,
			EditPlanRecordID: recordID,
			CurrentStep:      n.NodeID,
			ExecutionHistory: historyEntry(n.NodeID, fmt.Sprintf("%d edit intent(s)", len(plan.Intents))),
		}
		return delta, graph.Goto(n.Next), nil
	})
}

// formatValidationFeedback renders a ValidationOutput's issues as the
// natural-language feedback string the edit-plan agent expects.
func formatValidationFeedback(out roadmap.ValidationOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Structure validation failed (score %.1f). %s\n", out.OverallScore, out.ValidationSummary)
	for _, issue := range out.Issues {
		fmt.Fprintf(&b, "- [%s] %s: %s", issue.Severity, issue.Location, issue.Description)
		if len(issue.AffectedConcepts) > 0 {
			fmt.Fprintf(&b, " (concepts: %s)", strings.Join(issue.AffectedConcepts, ", "))
		}
		b.WriteString("\n")
	}
	for _, s := range out.ImprovementSuggestions {
		fmt.Fprintf(&b, "Suggestion: %s\n", s)
	}
	return b.String()
}
