// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultOutputFormat  = "plain"
	DefaultClientTimeout = 10 * time.Second
)

// Config represents the callfocus CLI configuration.
type Config struct {
	Output    OutputConfig    `toml:"output"`
	Client    ClientConfig    `toml:"client"`
	Clipboard ClipboardConfig `toml:"clipboard"`
}

// OutputConfig holds default output options.
type OutputConfig struct {
	Format string `toml:"format"` // plain, json, yaml, waybar
}

// ClientConfig holds D-Bus client options.
type ClientConfig struct {
	Timeout Duration `toml:"timeout"` // How long to wait for a command result
}

// ClipboardConfig holds clipboard settings for the watch view.
type ClipboardConfig struct {
	Command string `toml:"command"` // Auto-detected when empty (wl-copy, xclip, xsel)
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Format: DefaultOutputFormat,
		},
		Client: ClientConfig{
			Timeout: Duration(DefaultClientTimeout),
		},
	}
}

// ConfigDir returns the callfocus configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "callfocus")
}

// ConfigPath returns the path to the CLI config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.Client.Timeout.Duration() <= 0 {
		return nil, fmt.Errorf("client timeout must be positive, got %s", cfg.Client.Timeout.Duration())
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
