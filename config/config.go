// Package config loads parley configuration from .parley.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds parley's runtime configuration.
type Config struct {
	// Model is the agent model identifier passed to the runtime.
	Model string `yaml:"model"`
	// DataDir is the base directory for conversations and artifacts
	// (default: ~/.parley).
	DataDir string `yaml:"data_dir"`
	// LogFile is where structured logs go; the TUI owns stdout.
	LogFile string `yaml:"log_file"`
	// AllowedTools restricts which tools the agent may invoke.
	AllowedTools []string `yaml:"allowed_tools"`
	// MaxTurns caps agent turns per run.
	MaxTurns int `yaml:"max_turns"`
	// ArtifactPath overrides the primary artifact location for step
	// completion checks.
	ArtifactPath string `yaml:"artifact_path"`
	// StallAfterSeconds is how long a run may be silent before the UI
	// offers retry-or-cancel. There is no automatic cancel.
	StallAfterSeconds int `yaml:"stall_after_seconds"`
}

// DefaultDataDir returns ~/.parley.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".parley"), nil
}

// Load reads .parley.yaml from dir, falling back to defaults when the
// file does not exist.
func Load(dir string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(filepath.Join(dir, ".parley.yaml"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "sonnet"
	}
	if c.DataDir == "" {
		if dir, err := DefaultDataDir(); err == nil {
			c.DataDir = dir
		}
	}
	if c.LogFile == "" && c.DataDir != "" {
		c.LogFile = filepath.Join(c.DataDir, "parley.log")
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = 30
	}
	if c.StallAfterSeconds == 0 {
		c.StallAfterSeconds = 90
	}
}

// ConversationsDir returns where conversation records live.
func (c *Config) ConversationsDir() string {
	return filepath.Join(c.DataDir, "conversations")
}

// ArtifactsDir returns where the durable artifact store lives.
func (c *Config) ArtifactsDir() string {
	return filepath.Join(c.DataDir, "artifacts")
}
