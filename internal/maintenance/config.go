package maintenance

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Config holds the maintenance scheduler configuration
type Config struct {
	// Enabled controls whether Start runs the periodic loop.
	// RunCycle works regardless.
	// Default: true
	Enabled bool

	// Interval is the time between the end of one cycle and the start of the next
	// Default: 30 minutes
	Interval time.Duration

	// StuckThreshold is how long an in-progress task may go without an update
	// before it is reported as stuck
	// Default: 72 hours
	StuckThreshold time.Duration

	// CycleTimeout bounds a single cycle. A cycle that runs out of time is
	// abandoned and its notifications are dropped.
	// Default: 5 minutes
	CycleTimeout time.Duration

	// GracePeriod is how long Stop waits for an in-flight cycle before abandoning it
	// Default: 30 seconds
	GracePeriod time.Duration

	// ScoringConcurrency bounds the number of tasks rescored in parallel
	// Default: 8
	ScoringConcurrency int

	// HistorySize is the number of recent cycle reports kept in memory
	// Default: 100
	HistorySize int
}

// DefaultConfig returns the default maintenance configuration
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Interval:           30 * time.Minute,
		StuckThreshold:     72 * time.Hour,
		CycleTimeout:       5 * time.Minute,
		GracePeriod:        30 * time.Second,
		ScoringConcurrency: 8,
		HistorySize:        100,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return types.NewConfigError("maintenance.interval", fmt.Sprintf("must be positive (got %v)", c.Interval))
	}
	if c.StuckThreshold <= 0 {
		return types.NewConfigError("maintenance.stuck_threshold", fmt.Sprintf("must be positive (got %v)", c.StuckThreshold))
	}
	if c.CycleTimeout <= 0 {
		return types.NewConfigError("maintenance.cycle_timeout", fmt.Sprintf("must be positive (got %v)", c.CycleTimeout))
	}
	if c.GracePeriod < 0 {
		return types.NewConfigError("maintenance.grace_period", fmt.Sprintf("cannot be negative (got %v)", c.GracePeriod))
	}
	if c.ScoringConcurrency < 1 {
		return types.NewConfigError("maintenance.scoring_concurrency", fmt.Sprintf("must be at least 1 (got %d)", c.ScoringConcurrency))
	}
	if c.HistorySize < 1 {
		return types.NewConfigError("maintenance.history_size", fmt.Sprintf("must be at least 1 (got %d)", c.HistorySize))
	}
	return nil
}

// ApplyEnv overrides fields of cfg from environment variables and validates the result
//
// Environment variables:
//   - TASKPILOT_MAINT_ENABLED: "true" or "false"
//   - TASKPILOT_MAINT_INTERVAL_MINUTES: Minutes between cycles
//   - TASKPILOT_MAINT_STUCK_HOURS: Stuck threshold in hours
//   - TASKPILOT_MAINT_CONCURRENCY: Parallel rescoring limit
func ApplyEnv(cfg Config) (Config, error) {
	if v := os.Getenv("TASKPILOT_MAINT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid value for TASKPILOT_MAINT_ENABLED: %w", err)
		}
		cfg.Enabled = enabled
	}
	if err := parseEnvDuration("TASKPILOT_MAINT_INTERVAL_MINUTES", &cfg.Interval, time.Minute); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("TASKPILOT_MAINT_STUCK_HOURS", &cfg.StuckThreshold, time.Hour); err != nil {
		return cfg, err
	}
	if v := os.Getenv("TASKPILOT_MAINT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid value for TASKPILOT_MAINT_CONCURRENCY: %w", err)
		}
		cfg.ScoringConcurrency = n
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

func parseEnvDuration(key string, dest *time.Duration, unit time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(n) * unit
	return nil
}
