package maintenance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/taskpilot/internal/types"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero interval", func(c *Config) { c.Interval = 0 }, "maintenance.interval"},
		{"zero stuck threshold", func(c *Config) { c.StuckThreshold = 0 }, "maintenance.stuck_threshold"},
		{"zero cycle timeout", func(c *Config) { c.CycleTimeout = 0 }, "maintenance.cycle_timeout"},
		{"negative grace", func(c *Config) { c.GracePeriod = -time.Second }, "maintenance.grace_period"},
		{"zero grace is allowed", func(c *Config) { c.GracePeriod = 0 }, ""},
		{"zero concurrency", func(c *Config) { c.ScoringConcurrency = 0 }, "maintenance.scoring_concurrency"},
		{"zero history", func(c *Config) { c.HistorySize = 0 }, "maintenance.history_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *types.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func(*testing.T, Config)
		wantErr bool
	}{
		{
			name: "no overrides",
			env:  map[string]string{},
			want: func(t *testing.T, c Config) { assert.Equal(t, DefaultConfig(), c) },
		},
		{
			name: "all overrides",
			env: map[string]string{
				"TASKPILOT_MAINT_ENABLED":          "false",
				"TASKPILOT_MAINT_INTERVAL_MINUTES": "5",
				"TASKPILOT_MAINT_STUCK_HOURS":      "24",
				"TASKPILOT_MAINT_CONCURRENCY":      "2",
			},
			want: func(t *testing.T, c Config) {
				assert.False(t, c.Enabled)
				assert.Equal(t, 5*time.Minute, c.Interval)
				assert.Equal(t, 24*time.Hour, c.StuckThreshold)
				assert.Equal(t, 2, c.ScoringConcurrency)
			},
		},
		{
			name:    "malformed interval",
			env:     map[string]string{"TASKPILOT_MAINT_INTERVAL_MINUTES": "soon"},
			wantErr: true,
		},
		{
			name:    "malformed enabled",
			env:     map[string]string{"TASKPILOT_MAINT_ENABLED": "perhaps"},
			wantErr: true,
		},
		{
			name:    "invalid concurrency",
			env:     map[string]string{"TASKPILOT_MAINT_CONCURRENCY": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := ApplyEnv(DefaultConfig())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want(t, cfg)
		})
	}
}
