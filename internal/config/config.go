// Package config provides configuration management for the ShotSweep CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigDir returns the default config directory (~/.shotsweep).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".shotsweep"), nil
}

// DefaultConfigPath returns the default config file path (~/.shotsweep/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// Config holds the CLI configuration.
type Config struct {
	ServerURL   string `yaml:"server_url,omitempty"`
	APIUser     string `yaml:"api_user,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	ProjectID   string `yaml:"project_id,omitempty"`
	SearchField string `yaml:"search_field,omitempty"`
	PageSize    int    `yaml:"page_size,omitempty"`
}

// Validate checks that the configuration has required fields for operation.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if c.APIUser == "" {
		return errors.New("api_user is required")
	}
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}
	return nil
}

// IsConfigured returns true if the CLI has been pointed at a server.
func (c *Config) IsConfigured() bool {
	return c.ServerURL != "" && c.APIUser != "" && c.APIKey != ""
}

// Load reads the configuration from the given path, then applies
// environment overrides. If the file does not exist, an empty config is
// returned so `shotsweep configure` can create it.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// fall through to env overrides
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// applyEnv lets environment variables override file values, matching the
// ftrack client convention.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FTRACK_SERVER"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("FTRACK_API_USER"); v != "" {
		cfg.APIUser = v
	}
	if v := os.Getenv("FTRACK_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SHOTSWEEP_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the configuration to the given path, creating directories as
// needed. The file holds an API key, so permissions are user-only.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// SaveDefault saves the configuration to the default path.
func (c *Config) SaveDefault() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.Save(path)
}
