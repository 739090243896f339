package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/taskpilot/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Preferences, cfg.Preferences)
	assert.Equal(t, def.Maintenance, cfg.Maintenance)
	assert.Equal(t, def.Goals, cfg.Goals)
	assert.Equal(t, def.Notifications, cfg.Notifications)
	assert.Equal(t, def.Dedup, cfg.Dedup)
	assert.Equal(t, def.Writer, cfg.Writer)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/tasks.db
log_level: debug
log_format: json
timezone: Europe/Berlin
preferences:
  work_hours:
    start: "08:30"
    end: "16:30"
  focus_windows:
    - start: "09:00"
      end: "11:00"
      multiplier: 1.5
      weekdays: [mon, Tuesday]
    - start: "22:00"
      end: "01:00"
      multiplier: 0.8
maintenance:
  interval: 15m
  stuck_threshold: 2d
goals:
  projection_slope: 0.8
dedup:
  window: 1w
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/tasks.db", cfg.DatabasePath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())

	p := cfg.Preferences
	assert.Equal(t, types.NewTimeOfDay(8, 30), p.WorkHoursStart)
	assert.Equal(t, types.NewTimeOfDay(16, 30), p.WorkHoursEnd)
	require.Len(t, p.FocusWindows, 2)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday}, p.FocusWindows[0].Weekdays)
	assert.Equal(t, 1.5, p.FocusWindows[0].Multiplier)
	assert.Empty(t, p.FocusWindows[1].Weekdays)
	assert.Equal(t, types.DefaultWeights(), p.Weights, "weights not in the file keep their defaults")

	assert.Equal(t, 15*time.Minute, cfg.Maintenance.Interval)
	assert.Equal(t, 48*time.Hour, cfg.Maintenance.StuckThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Maintenance.CycleTimeout)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.Equal(t, 0.8, cfg.Goals.ProjectionSlope)
	assert.Equal(t, 0.5, cfg.Goals.AttentionFraction)
	assert.Equal(t, 7*24*time.Hour, cfg.Dedup.Window)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "weights not summing to one",
			yaml:  "preferences:\n  weights:\n    urgency: 0.3\n",
			field: "weights",
		},
		{
			name:  "negative weight",
			yaml:  "preferences:\n  weights:\n    urgency: 0.6\n    effort: -0.2\n",
			field: "weights.effort",
		},
		{
			name:  "bad work hours",
			yaml:  "preferences:\n  work_hours:\n    start: \"9am\"\n",
			field: "preferences.work_hours.start",
		},
		{
			name:  "bad weekday",
			yaml:  "preferences:\n  focus_windows:\n    - start: \"09:00\"\n      end: \"10:00\"\n      multiplier: 2\n      weekdays: [funday]\n",
			field: "preferences.focus_windows[0].weekdays",
		},
		{
			name:  "empty focus window",
			yaml:  "preferences:\n  focus_windows:\n    - start: \"09:00\"\n      end: \"09:00\"\n      multiplier: 2\n",
			field: "focus_windows[0]",
		},
		{
			name:  "bad duration",
			yaml:  "maintenance:\n  interval: often\n",
			field: "maintenance.interval",
		},
		{
			name:  "zero concurrency",
			yaml:  "maintenance:\n  scoring_concurrency: 0\n",
			field: "maintenance.scoring_concurrency",
		},
		{
			name:  "attention fraction out of range",
			yaml:  "goals:\n  attention_fraction: 1.5\n",
			field: "goals.attention_fraction",
		},
		{
			name:  "unknown log format",
			yaml:  "log_format: xml\n",
			field: "log_format",
		},
		{
			name:  "unknown log level",
			yaml:  "log_level: chatty\n",
			field: "log_level",
		},
		{
			name:  "unknown timezone",
			yaml:  "timezone: Mars/Olympus\n",
			field: "timezone",
		},
		{
			name:  "dedup window too large",
			yaml:  "dedup:\n  window: 60d\n",
			field: "dedup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfig)
			var cfgErr *types.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoad_MissingAndMalformedFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "preferences: [not, a, map]"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nmaintenance:\n  interval: 15m\n")
	t.Setenv("TASKPILOT_LOG_LEVEL", "warn")
	t.Setenv("TASKPILOT_MAINT_INTERVAL_MINUTES", "45")
	t.Setenv("TASKPILOT_DEDUP_WINDOW_HOURS", "6")
	t.Setenv("TASKPILOT_DB_PATH", "/srv/taskpilot.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 45*time.Minute, cfg.Maintenance.Interval)
	assert.Equal(t, 6*time.Hour, cfg.Dedup.Window)
	assert.Equal(t, "/srv/taskpilot.db", cfg.DatabasePath)
}

func TestSaveDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, SaveDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.Preferences, cfg.Preferences)
	assert.Equal(t, def.Maintenance, cfg.Maintenance)
	assert.Equal(t, def.Dedup, cfg.Dedup)
	assert.Equal(t, def.Writer, cfg.Writer)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30m", 30 * time.Minute, true},
		{"72h", 72 * time.Hour, true},
		{"3d", 72 * time.Hour, true},
		{"2w", 14 * 24 * time.Hour, true},
		{"1h30m", 90 * time.Minute, true},
		{"1d2h", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3d", formatDuration(72*time.Hour))
	assert.Equal(t, "1w", formatDuration(7*24*time.Hour))
	assert.Equal(t, "30m0s", formatDuration(30*time.Minute))
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	var buf bytes.Buffer
	cfg.NewLogger(&buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.LogFormat = "text"
	cfg.LogLevel = slog.LevelWarn
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
