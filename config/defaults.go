package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultMaxRetry             = 3
	defaultMaxSteps             = 200
	defaultNodeTimeout          = 120 * time.Second
	defaultParallelConceptLimit = 4
	defaultRecoveryMaxAge       = 24 * time.Hour
	defaultCheckpointSQLitePath = "~/.roadmapd/checkpoints.db"
	defaultMetadataSQLitePath   = "~/.roadmapd/metadata.db"
	defaultRedisAddr            = "localhost:6379"
	defaultStorageBackend       = "sqlite"
)

// applyDefaults fills in every field the file left unset. md.IsDefined
// distinguishes "key absent from the file" from "key present and set to
// the zero value", so an operator who explicitly writes max_retry = 0 gets
// that, not defaultMaxRetry.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if !md.IsDefined("engine", "max_retry") {
		cfg.Engine.MaxRetry = defaultMaxRetry
	}
	if !md.IsDefined("engine", "max_steps") {
		cfg.Engine.MaxSteps = defaultMaxSteps
	}
	if !md.IsDefined("engine", "default_node_timeout") {
		cfg.Engine.DefaultNodeTimeout.Duration = defaultNodeTimeout
	}
	if !md.IsDefined("engine", "parallel_concept_limit") {
		cfg.Engine.ParallelConceptLimit = defaultParallelConceptLimit
	}

	if !md.IsDefined("storage", "backend") {
		cfg.Storage.Backend = defaultStorageBackend
	}
	if !md.IsDefined("storage", "checkpoint_sqlite_path") {
		cfg.Storage.CheckpointSQLitePath = defaultCheckpointSQLitePath
	}
	if !md.IsDefined("storage", "metadata_sqlite_path") {
		cfg.Storage.MetadataSQLitePath = defaultMetadataSQLitePath
	}

	if !md.IsDefined("redis", "addr") {
		cfg.Redis.Addr = defaultRedisAddr
	}

	if !md.IsDefined("recovery", "max_age") {
		cfg.Recovery.MaxAge.Duration = defaultRecoveryMaxAge
	}
}
