package config

import (
	"os"
	"path/filepath"
	"strings"
)

// normalizePaths expands a leading "~" in every path-typed field so the
// default config (which names paths under the user's home directory) works
// without requiring every deployment to override it.
func normalizePaths(cfg *Config) {
	cfg.Storage.CheckpointSQLitePath = ExpandHome(cfg.Storage.CheckpointSQLitePath)
	cfg.Storage.MetadataSQLitePath = ExpandHome(cfg.Storage.MetadataSQLitePath)
}

// ExpandHome replaces a leading "~" with the current user's home directory.
// Paths not starting with "~" (or "~/") are returned unchanged. Failure to
// resolve the home directory leaves the original path untouched rather than
// erroring, since the path may be usable as a literal relative path anyway.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
