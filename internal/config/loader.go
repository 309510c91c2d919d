package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load merges configuration from global and project sources. Missing files
// fall back to defaults; the project config overrides the global one.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return cfg, nil
	}

	globalPath := filepath.Join(home, ".taskhive", "config.yaml")
	if err := loadFile(globalPath, cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	projectPath := filepath.Join(cwd, ".taskhive", "config.yaml")
	if err := loadFile(projectPath, cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(cfg)
}

// ProjectConfigPath returns the path to the project config file.
func ProjectConfigPath() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".taskhive", "config.yaml")
}

// ProjectDir returns the path to the project .taskhive directory.
func ProjectDir() string {
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".taskhive")
}
