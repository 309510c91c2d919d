package config

import (
	"os"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Database: DatabaseConfig{
			Path: ".taskhive/taskhive.db",
		},
		Snapshot: SnapshotConfig{
			Path:    ".taskhive/snapshot.jsonl",
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// WriteProjectDefault writes the default project configuration to a file.
func WriteProjectDefault(path string) error {
	content := `# TaskHive Project Configuration
version: "1"

# SQLite database
database:
  path: .taskhive/taskhive.db

# JSONL snapshot written after each change
snapshot:
  path: .taskhive/snapshot.jsonl
  enabled: true

# HTTP API server
server:
  addr: ":8080"
`
	return os.WriteFile(path, []byte(content), 0644)
}
