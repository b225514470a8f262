package nodes

import (
	"context"
	"fmt"

	"github.com/roadmapforge/orchestrator/brain"
	"github.com/roadmapforge/orchestrator/exlog"
	"github.com/roadmapforge/orchestrator/graph"
	"github.com/roadmapforge/orchestrator/roadmap"
)

// HumanReview is the suspendable node that pauses the workflow for user
// sign-off. First entry suspends the workflow pending a user decision; the
// Executor later resumes it with the decision folded into
// state.HumanApproved / state.UserFeedback. The node tells first entry
// from resume by probing Task.Status directly rather than trusting the
// checkpoint's interrupt flag.
type HumanReview struct {
	Brain *brain.Brain

	// ApprovedNext decides the next node when the user approves: the
	// next-present of content_fan_out or terminal.
	ApprovedNext func(state roadmap.RoadmapState) graph.Next
	// ModifyNext is the edit_plan_analysis (human-feedback variant) node to
	// route to when the user rejects with feedback.
	ModifyNext string
}

func (n HumanReview) Run(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	taskID := state.TaskID

	task, err := n.Brain.Tasks().Get(ctx, taskID)
	if err != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: fmt.Errorf("nodes: human review: load task: %w", err)}
	}
	resuming := task.Status == roadmap.TaskHumanReviewPending

	nc, err := n.Brain.EnterNode(ctx, taskID, NodeHumanReview, resuming)
	if err != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: fmt.Errorf("nodes: human review: enter: %w", err)}
	}

	if !resuming {
		return n.suspend(ctx, state)
	}
	return n.resume(ctx, state, nc)
}

// suspend handles the first entry: derive summary stats, move the task to
// human_review_pending, and raise the suspend route. No FinishNode call
// here — the node has not completed, it has paused, so the Brain's
// completion/failure path is skipped.
func (n HumanReview) suspend(ctx context.Context, state roadmap.RoadmapState) graph.NodeResult[roadmap.RoadmapState] {
	title := ""
	stages, concepts := 0, 0
	if state.RoadmapFramework != nil {
		title = state.RoadmapFramework.Title
		stages, concepts = frameworkTotals(state.RoadmapFramework)
	}

	if err := n.Brain.UpdateTaskToPendingReview(ctx, state.TaskID, state.RoadmapID, title, stages, concepts); err != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: fmt.Errorf("nodes: human review: %w", err)}
	}
	n.Brain.Logger().Info(state.TaskID, "review_waiting", exlog.WithStep(NodeHumanReview))

	delta := roadmap.RoadmapState{
		CurrentStep:      NodeHumanReview,
		ExecutionHistory: historyEntry(NodeHumanReview, "awaiting human review"),
	}
	return graph.NodeResult[roadmap.RoadmapState]{
		Delta: delta,
		Route: graph.SuspendAt(NodeHumanReview, "human_review_pending"),
	}
}

// resume handles re-entry after Executor.ResumeAfterHumanReview has folded
// the user's decision into state.HumanApproved/state.UserFeedback.
func (n HumanReview) resume(ctx context.Context, state roadmap.RoadmapState, nc *brain.NodeContext) graph.NodeResult[roadmap.RoadmapState] {
	approved := state.HumanApproved != nil && *state.HumanApproved

	var snapshot roadmap.Framework
	if state.RoadmapFramework != nil {
		snapshot = *state.RoadmapFramework
	}

	round, reviewErr := n.Brain.UpdateTaskAfterReview(ctx, state.TaskID, state.RoadmapID, approved, state.UserFeedback, snapshot)
	if reviewErr != nil {
		// Persisting the audit record failed, but the decision itself is
		// already captured in the resume value the caller supplied, so
		// the workflow continues rather than failing the node.
		n.Brain.Logger().Warning(state.TaskID, "failed to persist human review feedback: "+reviewErr.Error(), exlog.WithStep(NodeHumanReview))
	}

	if approved {
		n.Brain.Logger().Info(state.TaskID, fmt.Sprintf("human review round %d approved", round), exlog.WithStep(NodeHumanReview))
	} else {
		n.Brain.Logger().Info(state.TaskID, fmt.Sprintf("human review round %d rejected", round), exlog.WithStep(NodeHumanReview))
	}

	delta := roadmap.RoadmapState{
		HumanApproved:    state.HumanApproved,
		UserFeedback:     state.UserFeedback,
		CurrentStep:      NodeHumanReview,
		ExecutionHistory: historyEntry(NodeHumanReview, fmt.Sprintf("round %d, approved=%v", round, approved)),
	}

	var next graph.Next
	if approved {
		next = n.ApprovedNext(state)
	} else {
		delta.EditSource = roadmap.EditSourceHumanReview
		next = graph.Goto(n.ModifyNext)
	}

	if err := n.Brain.FinishNode(ctx, state.TaskID, NodeHumanReview, nc, nil); err != nil {
		return graph.NodeResult[roadmap.RoadmapState]{Err: err}
	}
	return graph.NodeResult[roadmap.RoadmapState]{Delta: delta, Route: next}
}

func frameworkTotals(fw *roadmap.Framework) (stages, concepts int) {
	stages = len(fw.Stages)
	fw.Walk(func(_ *roadmap.Stage, _ *roadmap.Module, _ *roadmap.Concept) { concepts++ })
	return stages, concepts
}
