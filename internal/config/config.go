// Package config loads taskpilot's runtime configuration.
//
// Values are resolved in three layers: built-in defaults, then an optional
// YAML file, then TASKPILOT_* environment variables. The merged result is
// validated once and every problem is reported as a types.ConfigError.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/taskpilot/internal/deduplication"
	"github.com/steveyegge/taskpilot/internal/goals"
	"github.com/steveyegge/taskpilot/internal/maintenance"
	"github.com/steveyegge/taskpilot/internal/notify"
	"github.com/steveyegge/taskpilot/internal/storage"
	"github.com/steveyegge/taskpilot/internal/types"
)

// DefaultFileName is the config file looked up inside the data directory
const DefaultFileName = "config.yaml"

// Config is the fully resolved configuration
type Config struct {
	// DatabasePath is the SQLite file. Empty means discover it.
	DatabasePath string

	LogLevel  slog.Level
	LogFormat string
	// Location is the time zone focus windows and work hours are evaluated in
	Location *time.Location

	Preferences   types.Preferences
	Maintenance   maintenance.Config
	Goals         goals.Config
	Notifications notify.Config
	Dedup         deduplication.Config
	Writer        storage.WriterConfig
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      slog.LevelInfo,
		LogFormat:     "text",
		Location:      time.Local,
		Preferences:   types.DefaultPreferences(),
		Maintenance:   maintenance.DefaultConfig(),
		Goals:         goals.DefaultConfig(),
		Notifications: notify.DefaultConfig(),
		Dedup:         deduplication.DefaultConfig(),
		Writer:        storage.DefaultWriterConfig(),
	}
}

// Load resolves the configuration. An empty path skips the file layer; a
// path that does not exist is an error.
func Load(path string) (*Config, error) {
	f := DefaultFile()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	cfg, err := f.Resolve()
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables
//
// Environment variables:
//   - TASKPILOT_DB_PATH: Database file
//   - TASKPILOT_LOG_LEVEL: debug, info, warn or error
//   - TASKPILOT_LOG_FORMAT: text or json
//   - TASKPILOT_TIMEZONE: IANA zone name, e.g. Europe/Berlin
//   - TASKPILOT_MAINT_*: see maintenance.ApplyEnv
//   - TASKPILOT_DEDUP_*: see deduplication.ApplyEnv
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("TASKPILOT_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("TASKPILOT_LOG_LEVEL"); v != "" {
		level, err := parseLevel(v)
		if err != nil {
			return err
		}
		c.LogLevel = level
	}
	if v := os.Getenv("TASKPILOT_LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("TASKPILOT_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			return types.NewConfigError("timezone", err.Error())
		}
		c.Location = loc
	}

	maint, err := maintenance.ApplyEnv(c.Maintenance)
	if err != nil {
		return err
	}
	c.Maintenance = maint

	dedup, err := deduplication.ApplyEnv(c.Dedup)
	if err != nil {
		return types.NewConfigError("dedup", err.Error())
	}
	c.Dedup = dedup
	return nil
}

// Validate checks every section and returns the first problem found
func (c *Config) Validate() error {
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return types.NewConfigError("log_format", fmt.Sprintf("must be text or json (got %q)", c.LogFormat))
	}
	if c.Location == nil {
		return types.NewConfigError("timezone", "location is required")
	}
	if err := c.Preferences.Validate(); err != nil {
		return err
	}
	if err := c.Maintenance.Validate(); err != nil {
		return err
	}
	if err := c.Goals.Validate(); err != nil {
		return err
	}
	if err := c.Notifications.Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return types.NewConfigError("dedup", err.Error())
	}
	if c.Writer.WriteTimeout <= 0 {
		return types.NewConfigError("storage.write_timeout", fmt.Sprintf("must be positive (got %v)", c.Writer.WriteTimeout))
	}
	return nil
}

// NewLogger builds the slog logger described by the configuration
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, types.NewConfigError("log_level", fmt.Sprintf("unknown level %q", s))
	}
	return level, nil
}

// SaveDefault writes the default configuration to path as YAML
func SaveDefault(path string) error {
	data, err := yaml.Marshal(DefaultFile())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
