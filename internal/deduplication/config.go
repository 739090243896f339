package deduplication

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for notification deduplication
type Config struct {
	// Window is how long an emitted (kind, entity) pair suppresses repeats.
	// Too small = the same overdue task is reported every maintenance cycle
	// Too large = a condition that clears and recurs goes unreported
	// Default: 24 hours
	Window time.Duration

	// MaxEntries caps the number of remembered keys. When full, the oldest
	// entries are evicted first.
	// Default: 10000
	MaxEntries int
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		Window:     24 * time.Hour, // One day
		MaxEntries: 10000,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive (got %v)", c.Window)
	}
	if c.Window > 30*24*time.Hour {
		return fmt.Errorf("window too large (got %v, max 30 days)", c.Window)
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be positive (got %d)", c.MaxEntries)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{Window: %v, MaxEntries: %d}", c.Window, c.MaxEntries)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - TASKPILOT_DEDUP_WINDOW_HOURS: Suppression window in hours (default: 24)
//   - TASKPILOT_DEDUP_MAX_ENTRIES: Maximum remembered keys (default: 10000)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv overrides fields of cfg from environment variables and validates the result
func ApplyEnv(cfg Config) (Config, error) {
	if err := parseEnvDuration("TASKPILOT_DEDUP_WINDOW_HOURS", &cfg.Window, time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("TASKPILOT_DEDUP_MAX_ENTRIES", &cfg.MaxEntries); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a duration from an environment variable
// The multiplier is used to convert the numeric value to a duration
// (e.g., for hours: multiplier = time.Hour)
func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}
