// Package graph provides the core graph execution engine for the roadmap workflow.
package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// Checkpoint handles durable execution snapshots.

// ErrReplayMismatch is returned when a resumed run's idempotency key does not
// match the key recorded for the same (RunID, StepID) pair. This indicates
// the workflow's node sequence diverged from a previous attempt at that step.
var ErrReplayMismatch = errors.New("replay mismatch: recorded idempotency key does not match")

// ErrNoProgress is returned when the engine cannot determine the next node
// to run from a checkpoint: the checkpoint being resumed records no
// CurrentNode, so there is no node to re-enter at.
var ErrNoProgress = errors.New("no progress: no runnable node for checkpoint")

// ErrBackpressureTimeout signals that a bounded work queue stayed saturated
// past its configured timeout. Neither the Engine nor the content fan-out
// scheduler returns it.
var ErrBackpressureTimeout = errors.New("backpressure timeout: work queue full")

// ErrIdempotencyViolation is returned when attempting to commit a checkpoint
// with a duplicate idempotency key for a different (RunID, StepID) pair.
// Idempotency keys are computed from RunID, StepID, CurrentNode and State.
// If this error occurs, an equivalent checkpoint was already committed.
var ErrIdempotencyViolation = errors.New("idempotency violation: checkpoint already committed")

// ErrMaxAttemptsExceeded is returned when a node fails more times than
// allowed by its RetryPolicy.
var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

// Checkpoint represents a durable snapshot of execution state, enabling
// resumption (including human-in-the-loop suspend/resume) of a graph run.
//
// Checkpoints are written after every node completes and form a hash-linked
// chain via ParentID, so a run's full history can be walked back to its
// start. This mirrors the persistence contract required of a durable
// workflow store: put a new checkpoint, fetch the latest, or walk history —
// all keyed by RunID, the thread a run belongs to.
type Checkpoint[S any] struct {
	// RunID uniquely identifies the execution (thread) this checkpoint
	// belongs to.
	RunID string `json:"run_id"`

	// StepID is the execution step number at checkpoint time. Monotonically
	// increasing within a run.
	StepID int `json:"step_id"`

	// ParentID is the IdempotencyKey of the checkpoint this one was written
	// after, forming a hash-linked chain back to the run's first checkpoint.
	// Empty for the first checkpoint of a run.
	ParentID string `json:"parent_id,omitempty"`

	// State is the current accumulated state after applying all deltas up
	// to StepID. Must be JSON-serializable for persistence.
	State S `json:"state"`

	// CurrentNode is the node ID to execute next when resuming from this
	// checkpoint. Empty if the run terminated.
	CurrentNode string `json:"current_node,omitempty"`

	// Interrupt, when non-nil, marks this checkpoint as a suspend point: the
	// run stopped here awaiting external input (human review, an edit
	// decision) rather than because of an error or normal termination.
	// Engine.Resume continues such a run from its CurrentNode after merging
	// the supplied delta into the state.
	Interrupt *InterruptMarker `json:"interrupt,omitempty"`

	// RNGSeed is the seed for deterministic random number generation,
	// derived from RunID so retried nodes (e.g. backoff jitter) behave
	// consistently across process restarts.
	RNGSeed int64 `json:"rng_seed"`

	// IdempotencyKey is a hash of (RunID, StepID, CurrentNode, State) that
	// prevents duplicate checkpoint commits and serves as this checkpoint's
	// own identity for ParentID chaining. Format: "sha256:hex".
	IdempotencyKey string `json:"idempotency_key"`

	// Timestamp records when this checkpoint was created.
	Timestamp time.Time `json:"timestamp"`

	// Label is an optional user-defined name for this checkpoint, useful for
	// debugging or creating named save points (e.g. "before_validation").
	// Empty string for automatic checkpoints.
	Label string `json:"label,omitempty"`
}

// InterruptMarker records why and where a run suspended.
type InterruptMarker struct {
	// NodeID is the node that raised the suspend.
	NodeID string `json:"node_id"`

	// Reason is a short machine-readable code, e.g. "human_review_pending".
	Reason string `json:"reason"`

	// Payload carries whatever the suspending node wants surfaced to the
	// caller (e.g. the content awaiting approval).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// computeIdempotencyKey generates a deterministic hash identifying a
// checkpoint, used both to detect duplicate commits and as the ParentID
// linking the next checkpoint back to this one.
//
// The key is computed from RunID, StepID, CurrentNode, and a JSON encoding
// of State, so identical execution contexts produce identical keys across
// retries or crash recovery.
func computeIdempotencyKey[S any](runID string, stepID int, currentNode string, state S) (string, error) {
	h := sha256.New()
	h.Write([]byte(runID))
	h.Write([]byte{byte(stepID >> 24), byte(stepID >> 16), byte(stepID >> 8), byte(stepID)})
	h.Write([]byte(currentNode))

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	h.Write(stateJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
