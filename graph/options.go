// Package graph provides the core graph execution engine for the roadmap workflow.
package graph

import "time"

// Option is a functional option for configuring a Graph.
//
// Example:
//
//	g := graph.New(
//	    reducer, store, emitter,
//	    graph.WithMaxSteps(100),
//	    graph.WithDefaultNodeTimeout(30*time.Second),
//	)
type Option func(*graphConfig) error

// graphConfig collects options before they're applied to a Graph.
type graphConfig struct {
	opts Options
}

// Options holds Graph-wide configuration. Can be passed directly to New,
// or built up via functional Option values — the two compose, with
// functional options applied after (and overriding) the Options struct.
type Options struct {
	// MaxSteps bounds the number of node executions in a single Run/Resume
	// call, guarding against misconfigured cycles (e.g. a missing router
	// branch in the validation↔edit loop). Zero means unlimited.
	MaxSteps int

	// DefaultNodeTimeout is applied to every node lacking its own
	// NodePolicy.Timeout. Zero means unlimited.
	DefaultNodeTimeout time.Duration

	// Metrics, when set, receives step latency, error, and checkpoint
	// write observations. Nil disables metrics collection.
	Metrics *PrometheusMetrics
}

// WithMaxSteps limits workflow execution to prevent infinite loops.
//
// The validation↔edit cycle and the human-review modify branch are the
// graph's only cycles; both are bounded by domain logic (modification_count
// vs max_retry), but MaxSteps is a hard backstop against misconfiguration.
func WithMaxSteps(n int) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithDefaultNodeTimeout sets the maximum execution time for nodes without
// an explicit NodePolicy.Timeout. Individual agent calls may still run
// longer if a node chooses not to honor ctx — see NodePolicy for overrides.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.DefaultNodeTimeout = d
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection for node execution.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *graphConfig) error {
		cfg.opts.Metrics = metrics
		return nil
	}
}
