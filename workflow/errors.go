// Package workflow assembles the node runners in package nodes into a
// graph.Engine[roadmap.RoadmapState], and wraps that engine with an
// Executor and a RecoveryManager for driving and rehydrating runs.
package workflow

import (
	"errors"
	"fmt"

	"github.com/roadmapforge/orchestrator/graph"
)

// ErrSuspended re-exports graph.ErrSuspended under the workflow package so
// callers of Executor don't need to import graph directly to recognize a
// suspend outcome.
var ErrSuspended = graph.ErrSuspended

// ErrNoEditPlan is a workflow-level sentinel for a missing edit plan. It is
// a distinct value from nodes.ErrNoEditPlan, and nothing in this package
// returns it: a run that reaches Roadmap Edit without a plan fails with
// nodes.ErrNoEditPlan inside a graph.NodeError.
var ErrNoEditPlan = fmt.Errorf("workflow: no edit plan available")

// ErrNoCheckpoint names the case of a processing task with no checkpoint to
// resume from. The Recovery Manager does not return it: it marks such a
// task failed with "no_checkpoint_available" and moves on.
var ErrNoCheckpoint = errors.New("workflow: no checkpoint available for task")
