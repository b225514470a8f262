// Package nodes implements the graph.Node[roadmap.RoadmapState] runners for
// the roadmap workflow: intent analysis, curriculum design, structure
// validation, edit-plan analysis, roadmap edit, human review, and the
// content fan-out trigger. Every runner calls its external agent, persists
// the outcome through a brain.Brain save helper, and returns only the
// channel writes it produced — the reducer in roadmap.Reduce owns folding
// that into accumulated state.
package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// Node IDs, shared between the runners and the graph builder (package
// workflow) that wires them together.
const (
	NodeIntentAnalysis             = "intent_analysis"
	NodeCurriculumDesign           = "curriculum_design"
	NodeStructureValidation        = "structure_validation"
	NodeValidationEditPlanAnalysis = "validation_edit_plan_analysis"
	NodeHumanFeedbackEditPlan      = "edit_plan_analysis"
	NodeRoadmapEdit                = "roadmap_edit"
	NodeHumanReview                = "human_review"
	NodeContentFanOut              = "content_fan_out"
)

// stepFunc produces a node's state delta and routing decision. Returning a
// non-nil error fails the node; runNode folds that into FinishNode's
// failure path and the returned NodeResult.
type stepFunc func(ctx context.Context) (roadmap.RoadmapState, graph.Next, error)

// runNode wraps a node body in the Brain's node_execution envelope
// (EnterNode/FinishNode), translating the outcome into a graph.NodeResult.
// skipBefore is almost always false; only Human Review
// computes it dynamically (resume re-entry) and calls EnterNode/FinishNode
// itself rather than going through this helper.
func runNode(ctx context.Context, b *brain.Brain, taskID, nodeName string, fn stepFunc) graph.NodeResult[roadmap.RoadmapState] {
	nc, err := b.EnterNode(ctx, taskID, nodeName, false)
	if err != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: fmt.Errorf("nodes: %s: enter: %w", nodeName, err)}
	}

	delta, next, runErr := fn(ctx)
	if finishErr := b.FinishNode(ctx, taskID, nodeName, nc, runErr); finishErr != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: finishErr}
	}
	if runErr != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: runErr}
	}
	return graph.NodeResult[roadmap.RoadmapState]{Delta: delta, Route: next}
}

func historyEntry(step, detail string) []roadmap.HistoryEntry {
	return []roadmap.HistoryEntry{{Step: step, Detail: detail}}
}
