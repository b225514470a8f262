package config

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every problem found in one validate call, so
// an operator fixing a config file sees all of its mistakes at once instead
// of one compile-edit-rerun cycle per mistake.
type ValidationError struct {
	Issues []ValidationIssue
}

// ValidationIssue names one invalid field, what's wrong with it, and (when
// there's an obvious fix) a suggestion.
type ValidationIssue struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) add(field, message, suggestion string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: field, Message: message, Suggestion: suggestion})
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d config issue(s):", len(e.Issues))
	for _, issue := range e.Issues {
		fmt.Fprintf(&b, "\n  - %s: %s", issue.Field, issue.Message)
		if issue.Suggestion != "" {
			fmt.Fprintf(&b, " (%s)", issue.Suggestion)
		}
	}
	return b.String()
}

func validate(cfg *Config) error {
	verr := &ValidationError{}

	if cfg.Engine.MaxRetry < 0 {
		verr.add("engine.max_retry", "must be >= 0", "")
	}
	if cfg.Engine.MaxSteps <= 0 {
		verr.add("engine.max_steps", "must be > 0", "set engine.max_steps to a positive step budget")
	}
	if cfg.Engine.ParallelConceptLimit <= 0 {
		verr.add("engine.parallel_concept_limit", "must be > 0", "")
	}
	if cfg.Engine.DefaultNodeTimeout.Duration <= 0 {
		verr.add("engine.default_node_timeout", "must be a positive duration", `e.g. "120s"`)
	}
	if cfg.Engine.SkipStructureValidation && cfg.Engine.SkipHumanReview && cfg.Engine.SkipContentFanOut {
		verr.add("engine", "skip_structure_validation, skip_human_review and skip_content_fan_out cannot all be true", "leave at least one optional node wired in, or the graph has nothing to do after curriculum_design")
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.CheckpointSQLitePath == "" {
			verr.add("storage.checkpoint_sqlite_path", "required when storage.backend is \"sqlite\"", "")
		}
		if cfg.Storage.MetadataSQLitePath == "" {
			verr.add("storage.metadata_sqlite_path", "required when storage.backend is \"sqlite\"", "")
		}
	case "mysql":
		if cfg.Storage.CheckpointMySQLDSN == "" {
			verr.add("storage.checkpoint_mysql_dsn", "required when storage.backend is \"mysql\"", "set ROADMAPD_CHECKPOINT_DSN instead of writing a DSN into the file")
		}
		if cfg.Storage.MetadataMySQLDSN == "" {
			verr.add("storage.metadata_mysql_dsn", "required when storage.backend is \"mysql\"", "set ROADMAPD_METADATA_DSN instead of writing a DSN into the file")
		}
	default:
		verr.add("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend), `must be "sqlite" or "mysql"`)
	}

	if cfg.Redis.Addr == "" {
		verr.add("redis.addr", "required", "")
	}

	if cfg.Recovery.MaxAge.Duration < 0 {
		verr.add("recovery.max_age", "must be >= 0", "")
	}

	for name, p := range cfg.Providers {
		field := fmt.Sprintf("providers.%s", name)
		if p.Model == "" {
			verr.add(field+".model", "required", "")
		}
		if p.APIKeyEnv == "" {
			verr.add(field+".api_key_env", "required", "name the environment variable holding this provider's API key")
		}
	}

	if len(verr.Issues) > 0 {
		return verr
	}
	return nil
}
