// Package graph provides the core graph execution engine for this module.
package graph

import "errors"

// ErrMaxStepsExceeded indicates that the graph execution reached the maximum.
// allowed step count without completing. This prevents infinite loops and.
// runaway executions.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrBackpressure indicates that downstream processing cannot keep up with.
// the current execution rate. This typically occurs when output buffers are.
// full or rate limits are exceeded. This is distinct from ErrBackpressureTimeout.
// which signals a bounded work queue staying saturated past its timeout.
var ErrBackpressure = errors.New("downstream backpressure exceeded threshold")

// ErrInvalidRetryPolicy indicates a RetryPolicy failed validation, e.g.
// MaxAttempts < 1 or MaxDelay < BaseDelay.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy configuration")

// EngineError carries a machine-readable Code alongside a human Message,
// for failures the engine itself raises (as opposed to NodeError, which
// wraps a node implementation's own failure).
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Note: The following errors are already defined in checkpoint.go:
// - ErrReplayMismatch: replay mismatch detection.
// - ErrNoProgress: deadlock/no runnable nodes detection.
// - ErrIdempotencyViolation: duplicate checkpoint prevention.
// - ErrMaxAttemptsExceeded: retry exhaustion.
// - ErrBackpressureTimeout: bounded work queue saturated past its timeout.
