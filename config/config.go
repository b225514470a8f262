// Package config loads the orchestrator's process-level configuration from
// a TOML file: engine tuning (retry/step/timeout limits, how many optional
// nodes are wired in), storage backend selection and DSNs, the Redis event
// bus, LLM provider credentials, and recovery/observability knobs.
//
// Secrets (DSNs, API keys) are never required in the file itself — each has
// an environment-variable override applied after decode, so a config file
// can be committed while the values that matter in production stay out of
// it.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the root of the decoded TOML document.
type Config struct {
	Engine        Engine              `toml:"engine"`
	Storage       Storage             `toml:"storage"`
	Redis         Redis               `toml:"redis"`
	Recovery      Recovery            `toml:"recovery"`
	Observability Observability       `toml:"observability"`
	Providers     map[string]Provider `toml:"providers"`
}

// Engine controls graph.Engine assembly: which optional nodes are present,
// and the bounds the workflow builder enforces.
type Engine struct {
	MaxRetry             int      `toml:"max_retry"`
	MaxSteps             int      `toml:"max_steps"`
	DefaultNodeTimeout   Duration `toml:"default_node_timeout"`
	ParallelConceptLimit int      `toml:"parallel_concept_limit"`

	SkipStructureValidation bool `toml:"skip_structure_validation"`
	SkipHumanReview         bool `toml:"skip_human_review"`
	SkipContentFanOut       bool `toml:"skip_content_fan_out"`
}

// Storage selects and configures the two persistence backends: the
// checkpoint store (graph/store) and the metadata store (repository).
// Both share a backend kind because a split SQLite/MySQL deployment has no
// operational benefit here, but each gets its own DSN/path so the two
// schemas can still live in separate databases.
type Storage struct {
	// Backend is "sqlite" or "mysql". Defaults to "sqlite".
	Backend string `toml:"backend"`

	CheckpointSQLitePath string `toml:"checkpoint_sqlite_path"`
	MetadataSQLitePath   string `toml:"metadata_sqlite_path"`

	// CheckpointMySQLDSN and MetadataMySQLDSN are only consulted when
	// Backend == "mysql". roadmapd always opens the metadata store as SQLite
	// at MetadataSQLitePath; MetadataMySQLDSN is not used to open a store.
	// Both are overridable by environment variables
	// (ROADMAPD_CHECKPOINT_DSN, ROADMAPD_METADATA_DSN) so a DSN carrying
	// credentials never has to live in the file on disk.
	CheckpointMySQLDSN string `toml:"checkpoint_mysql_dsn"`
	MetadataMySQLDSN   string `toml:"metadata_mysql_dsn"`
}

// Redis configures the eventbus.Bus backend.
type Redis struct {
	Addr string `toml:"addr"`
	DB   int    `toml:"db"`
	// Password is overridable by ROADMAPD_REDIS_PASSWORD; left out of the
	// file entirely in any deployment that takes secrets seriously.
	Password string `toml:"password"`
}

// Recovery configures workflow.RecoveryManager.
type Recovery struct {
	MaxAge Duration `toml:"max_age"`
}

// Observability toggles the ambient instrumentation layered over the
// engine. MetricsEnabled turns on the Prometheus counters/histograms.
// TracingEnabled is parsed but roadmapd does not read it: no OpenTelemetry
// emitter is wired in.
type Observability struct {
	MetricsEnabled bool `toml:"metrics_enabled"`
	TracingEnabled bool `toml:"tracing_enabled"`
	// EmitterLogJSON selects emit.NewLogEmitter's JSON mode over its plain
	// line-structured text mode.
	EmitterLogJSON bool `toml:"emitter_log_json"`
}

// Provider names one LLM backend wired into package llmagent. Name is the
// map key under [providers.<name>] (e.g. "anthropic", "openai", "google").
// APIKeyEnv names the environment variable carrying the key itself — the
// key never appears in the TOML file.
type Provider struct {
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
}

// Load reads and decodes the TOML file at path, applies defaults for any
// field the file left unset, expands `~` in path fields, applies
// environment-variable overrides for secrets, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	applyDefaults(&cfg, md)
	normalizePaths(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets secrets stay out of the file on disk. Each
// override only takes effect when the environment variable is actually
// set, so an empty file plus no environment still fails validation with a
// clear message instead of silently running against an empty DSN.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROADMAPD_CHECKPOINT_DSN"); v != "" {
		cfg.Storage.CheckpointMySQLDSN = v
	}
	if v := os.Getenv("ROADMAPD_METADATA_DSN"); v != "" {
		cfg.Storage.MetadataMySQLDSN = v
	}
	if v := os.Getenv("ROADMAPD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ROADMAPD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// Clone returns a deep copy, safe for a caller to mutate without affecting
// the original (or any other clone of it).
func (c *Config) Clone() *Config {
	out := *c
	if c.Providers != nil {
		out.Providers = make(map[string]Provider, len(c.Providers))
		for k, v := range c.Providers {
			out.Providers[k] = v
		}
	}
	return &out
}
