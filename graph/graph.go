// Package graph provides the core graph execution engine for the roadmap
// workflow: a durable, sequential state machine over typed channel state,
// with checkpoint-based persistence and human-in-the-loop suspend/resume.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/roadmapforge/orchestrator/graph/emit"
	"github.com/roadmapforge/orchestrator/graph/store"
)

// ErrSuspended is returned by Run/Resume when a node raises SuspendAt.
// The InterruptMarker is stored on the checkpoint written at that step (its
// Interrupt field); call Resume once external input is available.
var ErrSuspended = errors.New("workflow suspended awaiting external input")

// ErrNodeNotFound is returned by StartAt and by routing when a node ID is
// referenced but was never registered.
var ErrNodeNotFound = errors.New("node not found")

// ErrNoStartNode is returned by Run when StartAt was never called.
var ErrNoStartNode = errors.New("no start node configured")

// Engine is a sequential graph executor: exactly one node runs at a time,
// its Delta is merged into the accumulated state via Reducer, a checkpoint
// is written, and the node's Route decides what runs next. Concurrency
// within a single workflow is the responsibility of individual nodes (see
// the content fan-out scheduler, which bounds its own internal concurrency
// and reports back to the graph as a single node).
type Engine[S any] struct {
	reducer   Reducer[S]
	store     store.Store[S]
	emitter   emit.Emitter
	nodes     map[string]Node[S]
	policies  map[string]*NodePolicy
	startNode string
	opts      Options
}

// New creates an Engine with the given reducer, persistence store, event
// emitter, and functional options.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, options ...Option) *Engine[S] {
	cfg := &graphConfig{}
	for _, opt := range options {
		_ = opt(cfg)
	}

	return &Engine[S]{
		reducer:  reducer,
		store:    st,
		emitter:  emitter,
		nodes:    make(map[string]Node[S]),
		policies: make(map[string]*NodePolicy),
		opts:     cfg.opts,
	}
}

// Add registers a node under the given ID.
func (e *Engine[S]) Add(id string, node Node[S]) error {
	if id == "" {
		return fmt.Errorf("node ID must not be empty")
	}
	e.nodes[id] = node
	return nil
}

// AddWithPolicy registers a node along with a NodePolicy controlling its
// timeout and retry behavior.
func (e *Engine[S]) AddWithPolicy(id string, node Node[S], policy *NodePolicy) error {
	if err := e.Add(id, node); err != nil {
		return err
	}
	e.policies[id] = policy
	return nil
}

// StartAt designates the node execution begins at for a fresh run.
func (e *Engine[S]) StartAt(id string) error {
	if _, ok := e.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	e.startNode = id
	return nil
}

// Run starts a new workflow run from initial state.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	if e.startNode == "" {
		var zero S
		return zero, ErrNoStartNode
	}

	return e.execute(ctx, runID, 0, "", initial, e.startNode)
}

// RunWithCheckpoint resumes a run from a checkpoint: State is the current
// accumulated state (already updated with whatever external input was
// pending), and CurrentNode (or the checkpoint's interrupt node, if set) is
// where execution re-enters.
func (e *Engine[S]) RunWithCheckpoint(ctx context.Context, checkpoint store.CheckpointV2[S]) (S, error) {
	nextNode := checkpoint.CurrentNode
	if nextNode == "" {
		var zero S
		return zero, fmt.Errorf("%w: checkpoint has no current_node to resume at", ErrNoProgress)
	}

	return e.execute(ctx, checkpoint.RunID, checkpoint.StepID, checkpoint.IdempotencyKey, checkpoint.State, nextNode)
}

// Resume loads the latest checkpoint for runID, merges delta into its
// state via the engine's reducer, and continues execution at the node the
// run suspended on. It is a thin convenience wrapper over LoadLatest +
// RunWithCheckpoint for the common human-in-the-loop case.
func (e *Engine[S]) Resume(ctx context.Context, runID string, delta S) (S, error) {
	state, step, err := e.store.LoadLatest(ctx, runID)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("loading latest state for resume: %w", err)
	}

	cp, err := e.store.LoadCheckpointV2(ctx, runID, step)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("loading checkpoint for resume: %w", err)
	}

	merged := e.reducer(state, delta)

	resumeNode := cp.CurrentNode
	if resumeNode == "" {
		var zero S
		return zero, fmt.Errorf("%w: checkpoint %s/%d has no resume node", ErrNoProgress, runID, step)
	}

	return e.execute(ctx, runID, step, cp.IdempotencyKey, merged, resumeNode)
}

// execute runs nodes sequentially starting at startNodeID until a node
// stops, suspends, or an error occurs, writing a checkpoint after every
// step.
func (e *Engine[S]) execute(ctx context.Context, runID string, step int, parentID string, state S, nextNodeID string) (S, error) {
	rng := rand.New(rand.NewSource(seedFromRunID(runID)))

	currentNode := nextNodeID
	for {
		if e.opts.MaxSteps > 0 && step >= e.opts.MaxSteps {
			return state, ErrMaxStepsExceeded
		}

		node, ok := e.nodes[currentNode]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, currentNode)
		}

		step++
		policy := e.policies[currentNode]

		start := time.Now()
		result, timeoutErr := e.runWithRetry(ctx, node, runID, currentNode, state, policy, rng)
		latency := time.Since(start)

		status := "success"
		if result.Err != nil || timeoutErr != nil {
			status = "error"
		}
		if e.opts.Metrics != nil {
			e.opts.Metrics.RecordStepLatency(runID, currentNode, latency, status)
		}

		e.emitter.Emit(emit.Event{
			RunID:  runID,
			Step:   step,
			NodeID: currentNode,
			Msg:    "node completed",
			Meta:   map[string]interface{}{"status": status},
		})

		merged := e.reducer(state, result.Delta)
		state = merged

		if timeoutErr != nil {
			return state, timeoutErr
		}
		if result.Err != nil {
			return state, &NodeError{Message: result.Err.Error(), NodeID: currentNode, Cause: result.Err}
		}

		idempKey, err := computeIdempotencyKey(runID, step, currentNode, state)
		if err != nil {
			return state, fmt.Errorf("computing idempotency key: %w", err)
		}

		cp := store.CheckpointV2[S]{
			RunID:          runID,
			StepID:         step,
			ParentID:       parentID,
			State:          state,
			RNGSeed:        rng.Int63(),
			IdempotencyKey: idempKey,
			Timestamp:      time.Now(),
		}

		route := result.Route
		switch {
		case route.Suspend:
			marker := &InterruptMarker{NodeID: currentNode, Reason: route.Reason}
			if payload, err := json.Marshal(state); err == nil {
				marker.Payload = payload
			}
			cp.CurrentNode = route.To
			cp.Interrupt = marker
			if err := e.saveCheckpoint(ctx, runID, step, currentNode, state, cp); err != nil {
				return state, err
			}
			return state, ErrSuspended

		case route.Terminal:
			cp.CurrentNode = ""
			if err := e.saveCheckpoint(ctx, runID, step, currentNode, state, cp); err != nil {
				return state, err
			}
			return state, nil

		case len(route.Many) > 0:
			// Fan-out to multiple nodes is the content fan-out scheduler's
			// job (its own bounded-concurrency component); the graph only
			// resumes at the first target, treating Many as a hint for
			// nodes that internally parallelize and report a single
			// continuation.
			cp.CurrentNode = route.Many[0]
			if err := e.saveCheckpoint(ctx, runID, step, currentNode, state, cp); err != nil {
				return state, err
			}
			currentNode = route.Many[0]

		case route.To != "":
			cp.CurrentNode = route.To
			if err := e.saveCheckpoint(ctx, runID, step, currentNode, state, cp); err != nil {
				return state, err
			}
			currentNode = route.To

		default:
			cp.CurrentNode = ""
			if err := e.saveCheckpoint(ctx, runID, step, currentNode, state, cp); err != nil {
				return state, err
			}
			return state, nil
		}

		parentID = idempKey
	}
}

func (e *Engine[S]) saveCheckpoint(ctx context.Context, runID string, step int, nodeID string, state S, cp store.CheckpointV2[S]) error {
	if err := e.store.SaveStep(ctx, runID, step, nodeID, state); err != nil {
		return fmt.Errorf("saving step: %w", err)
	}
	if err := e.store.SaveCheckpointV2(ctx, cp); err != nil {
		if errors.Is(err, ErrIdempotencyViolation) {
			return err
		}
		return fmt.Errorf("saving checkpoint: %w", err)
	}
	return nil
}

// runWithRetry executes a node, honoring its NodePolicy's timeout and, on
// failure, its RetryPolicy (exponential backoff with jitter).
func (e *Engine[S]) runWithRetry(ctx context.Context, node Node[S], runID, nodeID string, state S, policy *NodePolicy, rng *rand.Rand) (NodeResult[S], error) {
	defaultTimeout := e.opts.DefaultNodeTimeout

	attempt := 0
	maxAttempts := 1
	var retryPolicy *RetryPolicy
	if policy != nil && policy.RetryPolicy != nil {
		retryPolicy = policy.RetryPolicy
		maxAttempts = retryPolicy.MaxAttempts
	}

	var lastResult NodeResult[S]
	var lastTimeoutErr error

	for attempt < maxAttempts {
		result, timeoutErr := executeNodeWithTimeout(ctx, node, nodeID, state, policy, defaultTimeout)
		lastResult, lastTimeoutErr = result, timeoutErr

		failed := timeoutErr != nil || result.Err != nil
		if !failed {
			return result, nil
		}

		attempt++
		if attempt >= maxAttempts || retryPolicy == nil {
			break
		}

		var failureErr error
		if timeoutErr != nil {
			failureErr = timeoutErr
		} else {
			failureErr = result.Err
		}
		if retryPolicy.Retryable == nil || !retryPolicy.Retryable(failureErr) {
			break
		}

		if e.opts.Metrics != nil {
			e.opts.Metrics.IncrementRetries(runID, nodeID, "error")
		}

		delay := computeBackoff(attempt-1, retryPolicy.BaseDelay, retryPolicy.MaxDelay, rng)
		select {
		case <-ctx.Done():
			return lastResult, ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastResult, lastTimeoutErr
}

// seedFromRunID derives a deterministic RNG seed from a run ID so retry
// jitter is reproducible across process restarts for the same run.
func seedFromRunID(runID string) int64 {
	var seed int64
	for i, c := range runID {
		seed += int64(c) << uint(8*(i%8))
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}
