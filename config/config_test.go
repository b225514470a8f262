package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmapforge/orchestrator/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roadmapd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "sqlite"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.MaxRetry)
	assert.Equal(t, 200, cfg.Engine.MaxSteps)
	assert.Equal(t, 4, cfg.Engine.ParallelConceptLimit)
	assert.Greater(t, cfg.Engine.DefaultNodeTimeout.Duration.Seconds(), 0.0)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_ExplicitZeroIsNotOverwrittenByDefault(t *testing.T) {
	path := writeConfig(t, `
[engine]
max_retry = 0
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Engine.MaxRetry)
}

func TestLoad_ExpandsHomeInSQLitePaths(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "sqlite"
checkpoint_sqlite_path = "~/roadmapd/checkpoints.db"
metadata_sqlite_path = "~/roadmapd/metadata.db"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "roadmapd/checkpoints.db"), cfg.Storage.CheckpointSQLitePath)
	assert.Equal(t, filepath.Join(home, "roadmapd/metadata.db"), cfg.Storage.MetadataSQLitePath)
}

func TestLoad_MySQLBackendRequiresDSNs(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "mysql"
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.checkpoint_mysql_dsn")
	assert.Contains(t, err.Error(), "storage.metadata_mysql_dsn")
}

func TestLoad_MySQLDSNEnvOverrideSatisfiesValidation(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "mysql"
`)
	t.Setenv("ROADMAPD_CHECKPOINT_DSN", "user:pass@tcp(localhost:3306)/checkpoints")
	t.Setenv("ROADMAPD_METADATA_DSN", "user:pass@tcp(localhost:3306)/metadata")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/checkpoints", cfg.Storage.CheckpointMySQLDSN)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/metadata", cfg.Storage.MetadataMySQLDSN)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "postgres"
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestLoad_RejectsAllOptionalNodesSkipped(t *testing.T) {
	path := writeConfig(t, `
[engine]
skip_structure_validation = true
skip_human_review = true
skip_content_fan_out = true
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot all be true")
}

func TestLoad_ValidatesProviderFields(t *testing.T) {
	path := writeConfig(t, `
[providers.anthropic]
model = ""
api_key_env = ""
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "providers.anthropic.model")
	assert.Contains(t, err.Error(), "providers.anthropic.api_key_env")
}

func TestLoad_ProviderTableRoundTrips(t *testing.T) {
	path := writeConfig(t, `
[providers.anthropic]
model = "claude-sonnet-4"
api_key_env = "ANTHROPIC_API_KEY"

[providers.openai]
model = "gpt-5"
api_key_env = "OPENAI_API_KEY"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "claude-sonnet-4", cfg.Providers["anthropic"].Model)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Providers["anthropic"].APIKeyEnv)
}

func TestManager_ReloadSwapsInNewConfig(t *testing.T) {
	path := writeConfig(t, `
[engine]
max_retry = 3
`)
	mgr, err := config.LoadManager(path)
	require.NoError(t, err)
	assert.Equal(t, 3, mgr.Get().Engine.MaxRetry)

	require.NoError(t, os.WriteFile(path, []byte(`
[engine]
max_retry = 7
`), 0o600))
	require.NoError(t, mgr.Reload(path))
	assert.Equal(t, 7, mgr.Get().Engine.MaxRetry)
}

func TestManager_FailedReloadKeepsPreviousConfig(t *testing.T) {
	path := writeConfig(t, `
[engine]
max_retry = 3
`)
	mgr, err := config.LoadManager(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
backend = "postgres"
`), 0o600))
	require.Error(t, mgr.Reload(path))
	assert.Equal(t, 3, mgr.Get().Engine.MaxRetry)
}

func TestClone_IsIndependentOfOriginal(t *testing.T) {
	path := writeConfig(t, `
[providers.anthropic]
model = "claude-sonnet-4"
api_key_env = "ANTHROPIC_API_KEY"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Providers["anthropic"] = config.Provider{Model: "mutated", APIKeyEnv: "X"}

	assert.Equal(t, "claude-sonnet-4", cfg.Providers["anthropic"].Model)
}
