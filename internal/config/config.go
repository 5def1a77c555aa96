// Package config loads the optional per-repository .pampa.yaml file.
// Everything has a working default; the file only overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the repo-level configuration file.
const FileName = ".pampa.yaml"

// Config is the per-repository configuration.
type Config struct {
	// Provider selects the embedding provider (openai, transformers,
	// ollama, cohere, auto).
	Provider string `yaml:"provider"`

	// Encrypt is "on", "off" or empty (auto: encrypt iff a key is set).
	Encrypt string `yaml:"encrypt"`

	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	// DebounceMs is the event coalescing window in milliseconds.
	DebounceMs int `yaml:"debounce_ms"`

	// Ignore lists extra directory names to skip.
	Ignore []string `yaml:"ignore"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Provider: "auto",
		Watch:    WatchConfig{DebounceMs: 500},
	}
}

// Load reads .pampa.yaml from the repo root, falling back to defaults
// when the file is absent.
func Load(repoPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(repoPath, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Encrypt {
	case "", "on", "off":
	default:
		return fmt.Errorf("%s: encrypt must be \"on\", \"off\" or unset", FileName)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("%s: watch.debounce_ms must be >= 0", FileName)
	}
	return nil
}

// Debounce returns the configured debounce as a duration.
func (c *Config) Debounce() time.Duration {
	if c.Watch.DebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}
