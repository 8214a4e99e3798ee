// Package config loads server configuration from an optional YAML
// file with environment-variable overrides; the environment always
// takes precedence over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SweepConfig enables the scheduled retention sweep. When Cron is
// empty the sweep never runs; the manual_delete_old_events message is
// always available regardless.
type SweepConfig struct {
	// Cron is a cron-style schedule string (e.g. "0 3 * * *").
	Cron string `yaml:"cron"`

	// KeepDays is the retention window: each run deletes events whose
	// end time is older than now minus this many days.
	KeepDays int `yaml:"keep_days"`
}

// Config is the top-level application configuration.
type Config struct {
	// Port is the HTTP listening port.
	Port int `yaml:"port"`

	// Database is the SQLite data source name.
	Database string `yaml:"database"`

	// StaticDir is the directory holding the prebuilt client bundle.
	StaticDir string `yaml:"static_dir"`

	// Sweep, if non-nil with a Cron expression, schedules automatic
	// deletion of stale events.
	Sweep *SweepConfig `yaml:"sweep,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:      3001,
		Database:  "file:calendar.db",
		StaticDir: "./public",
	}
}

// Load reads the YAML file at path, if it exists, and then applies
// environment overrides. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
		c.Port = p
	}
	if dsn := os.Getenv("CALENDAR_DB"); dsn != "" {
		c.Database = dsn
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		c.StaticDir = dir
	}
	return nil
}
