package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// FanOutResult is the content fan-out scheduler's outcome, folded into
// RoadmapState's merge/append channels by ContentFanOut.
type FanOutResult struct {
	TutorialRefs   map[string]roadmap.ArtifactRef
	ResourceRefs   map[string]roadmap.ArtifactRef
	QuizRefs       map[string]roadmap.ArtifactRef
	FailedConcepts []roadmap.FailureRecord
}

// ContentScheduler is the narrow interface ContentFanOut depends on,
// implemented by package fanout. Keeping the dependency as an interface
// here (rather than importing fanout directly) avoids a cycle: fanout
// depends on brain and agent, not on nodes.
type ContentScheduler interface {
	Run(ctx context.Context, taskID, roadmapID string, fw roadmap.Framework) (FanOutResult, error)
}

// ContentFanOut is a thin adapter onto the bounded-concurrency scheduler in
// package fanout. Unlike the other runners it does not go through runNode:
// the scheduler itself owns the Task's terminal transition (completed vs
// partial_failure) and terminal event, since "some content failed" is a
// valid non-error outcome the generic node_execution failure path must not
// turn into a hard workflow error.
type ContentFanOut struct {
	Scheduler ContentScheduler
}

func (n ContentFanOut) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	if state.RoadmapFramework == nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: ErrNoFramework}
	}

	result, err := n.Scheduler.Run(ctx, state.TaskID, state.RoadmapID, *state.RoadmapFramework)
	if err != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: fmt.Errorf("nodes: content fan-out: %w", err)}
	}

	delta := roadmap.RoadmapState{
		TutorialRefs:     result.TutorialRefs,
		ResourceRefs:     result.ResourceRefs,
		QuizRefs:         result.QuizRefs,
		FailedConcepts:   result.FailedConcepts,
		CurrentStep:      NodeContentFanOut,
		ExecutionHistory: historyEntry(NodeContentFanOut, fmt.Sprintf("%d concept(s) failed", len(result.FailedConcepts))),
	}
	return graph.NodeResult[roadmap.RoadmapState]{Delta: delta, Route: graph.Stop()}
}
