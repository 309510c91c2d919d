package config

// Config is the full TaskHive configuration.
type Config struct {
	Version string `yaml:"version" mapstructure:"version"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Snapshot configuration
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SnapshotConfig configures the JSONL snapshot written after each change.
type SnapshotConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}
