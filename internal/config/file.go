package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// File is the YAML layout of the config file. Durations are strings in Go
// syntax, extended with days and weeks ("30m", "72h", "3d", "1w").
type File struct {
	Database  string `yaml:"database,omitempty"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Timezone is an IANA zone name. Empty means the system zone.
	Timezone string `yaml:"timezone,omitempty"`

	Preferences   PreferencesYAML   `yaml:"preferences"`
	Maintenance   MaintenanceYAML   `yaml:"maintenance"`
	Goals         GoalsYAML         `yaml:"goals"`
	Notifications NotificationsYAML `yaml:"notifications"`
	Dedup         DedupYAML         `yaml:"dedup"`
	Storage       StorageYAML       `yaml:"storage"`
}

// PreferencesYAML holds the scoring preferences
type PreferencesYAML struct {
	WorkHours    WorkHoursYAML     `yaml:"work_hours"`
	FocusWindows []FocusWindowYAML `yaml:"focus_windows,omitempty"`
	Weights      WeightsYAML       `yaml:"weights"`
}

// WorkHoursYAML is a work-hours interval in "HH:MM" form
type WorkHoursYAML struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// FocusWindowYAML is one focus window. Weekdays accepts names or
// three-letter abbreviations; an empty list means every day.
type FocusWindowYAML struct {
	Start      string   `yaml:"start"`
	End        string   `yaml:"end"`
	Multiplier float64  `yaml:"multiplier"`
	Weekdays   []string `yaml:"weekdays,omitempty"`
}

// WeightsYAML holds the five scoring weights, which must sum to 1.0
type WeightsYAML struct {
	Urgency    float64 `yaml:"urgency"`
	Effort     float64 `yaml:"effort"`
	Focus      float64 `yaml:"focus"`
	Dependency float64 `yaml:"dependency"`
	Goal       float64 `yaml:"goal"`
}

// MaintenanceYAML configures the maintenance scheduler
type MaintenanceYAML struct {
	Enabled            bool   `yaml:"enabled"`
	Interval           string `yaml:"interval"`
	StuckThreshold     string `yaml:"stuck_threshold"`
	CycleTimeout       string `yaml:"cycle_timeout"`
	GracePeriod        string `yaml:"grace_period"`
	ScoringConcurrency int    `yaml:"scoring_concurrency"`
	HistorySize        int    `yaml:"history_size"`
}

// GoalsYAML configures goal risk detection
type GoalsYAML struct {
	AttentionFraction float64 `yaml:"attention_fraction"`
	ProjectionSlope   float64 `yaml:"projection_slope"`
}

// NotificationsYAML configures the notification dispatcher
type NotificationsYAML struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	QueueSize     int     `yaml:"queue_size"`
}

// DedupYAML configures notification deduplication
type DedupYAML struct {
	Window     string `yaml:"window"`
	MaxEntries int    `yaml:"max_entries"`
}

// StorageYAML configures the write-behind writer
type StorageYAML struct {
	WriteTimeout string `yaml:"write_timeout"`
}

// DefaultFile returns the defaults in file form. Load decodes the YAML file
// over it, so keys missing from the file keep their default.
func DefaultFile() *File {
	d := DefaultConfig()
	w := d.Preferences.Weights
	return &File{
		LogLevel:  "info",
		LogFormat: d.LogFormat,
		Preferences: PreferencesYAML{
			WorkHours: WorkHoursYAML{
				Start: d.Preferences.WorkHoursStart.String(),
				End:   d.Preferences.WorkHoursEnd.String(),
			},
			Weights: WeightsYAML{
				Urgency:    w.Urgency,
				Effort:     w.Effort,
				Focus:      w.Focus,
				Dependency: w.Dependency,
				Goal:       w.Goal,
			},
		},
		Maintenance: MaintenanceYAML{
			Enabled:            d.Maintenance.Enabled,
			Interval:           formatDuration(d.Maintenance.Interval),
			StuckThreshold:     formatDuration(d.Maintenance.StuckThreshold),
			CycleTimeout:       formatDuration(d.Maintenance.CycleTimeout),
			GracePeriod:        formatDuration(d.Maintenance.GracePeriod),
			ScoringConcurrency: d.Maintenance.ScoringConcurrency,
			HistorySize:        d.Maintenance.HistorySize,
		},
		Goals: GoalsYAML{
			AttentionFraction: d.Goals.AttentionFraction,
			ProjectionSlope:   d.Goals.ProjectionSlope,
		},
		Notifications: NotificationsYAML{
			RatePerSecond: d.Notifications.RatePerSecond,
			Burst:         d.Notifications.Burst,
			QueueSize:     d.Notifications.QueueSize,
		},
		Dedup: DedupYAML{
			Window:     formatDuration(d.Dedup.Window),
			MaxEntries: d.Dedup.MaxEntries,
		},
		Storage: StorageYAML{
			WriteTimeout: formatDuration(d.Writer.WriteTimeout),
		},
	}
}

// Resolve converts the file form into a Config. It parses values but does
// not validate ranges; see Config.Validate.
func (f *File) Resolve() (*Config, error) {
	cfg := DefaultConfig()
	cfg.DatabasePath = f.Database

	level, err := parseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(f.LogFormat))

	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return nil, types.NewConfigError("timezone", err.Error())
		}
		cfg.Location = loc
	}

	prefs, err := f.Preferences.resolve()
	if err != nil {
		return nil, err
	}
	cfg.Preferences = prefs

	m := f.Maintenance
	cfg.Maintenance.Enabled = m.Enabled
	cfg.Maintenance.ScoringConcurrency = m.ScoringConcurrency
	cfg.Maintenance.HistorySize = m.HistorySize
	durations := []struct {
		field string
		value string
		dest  *time.Duration
	}{
		{"maintenance.interval", m.Interval, &cfg.Maintenance.Interval},
		{"maintenance.stuck_threshold", m.StuckThreshold, &cfg.Maintenance.StuckThreshold},
		{"maintenance.cycle_timeout", m.CycleTimeout, &cfg.Maintenance.CycleTimeout},
		{"maintenance.grace_period", m.GracePeriod, &cfg.Maintenance.GracePeriod},
		{"dedup.window", f.Dedup.Window, &cfg.Dedup.Window},
		{"storage.write_timeout", f.Storage.WriteTimeout, &cfg.Writer.WriteTimeout},
	}
	for _, d := range durations {
		parsed, err := ParseDuration(d.value)
		if err != nil {
			return nil, types.NewConfigError(d.field, fmt.Sprintf("invalid duration %q", d.value))
		}
		*d.dest = parsed
	}

	cfg.Goals.AttentionFraction = f.Goals.AttentionFraction
	cfg.Goals.ProjectionSlope = f.Goals.ProjectionSlope
	cfg.Notifications.RatePerSecond = f.Notifications.RatePerSecond
	cfg.Notifications.Burst = f.Notifications.Burst
	cfg.Notifications.QueueSize = f.Notifications.QueueSize
	cfg.Dedup.MaxEntries = f.Dedup.MaxEntries
	return cfg, nil
}

func (p PreferencesYAML) resolve() (types.Preferences, error) {
	var prefs types.Preferences
	var err error
	if prefs.WorkHoursStart, err = types.ParseTimeOfDay(p.WorkHours.Start); err != nil {
		return prefs, types.NewConfigError("preferences.work_hours.start", err.Error())
	}
	if prefs.WorkHoursEnd, err = types.ParseTimeOfDay(p.WorkHours.End); err != nil {
		return prefs, types.NewConfigError("preferences.work_hours.end", err.Error())
	}

	for i, w := range p.FocusWindows {
		field := fmt.Sprintf("preferences.focus_windows[%d]", i)
		window := types.FocusWindow{Multiplier: w.Multiplier}
		if window.Start, err = types.ParseTimeOfDay(w.Start); err != nil {
			return prefs, types.NewConfigError(field+".start", err.Error())
		}
		if window.End, err = types.ParseTimeOfDay(w.End); err != nil {
			return prefs, types.NewConfigError(field+".end", err.Error())
		}
		for _, name := range w.Weekdays {
			day, ok := ParseWeekday(name)
			if !ok {
				return prefs, types.NewConfigError(field+".weekdays", fmt.Sprintf("unknown weekday %q", name))
			}
			window.Weekdays = append(window.Weekdays, day)
		}
		prefs.FocusWindows = append(prefs.FocusWindows, window)
	}

	prefs.Weights = types.Weights{
		Urgency:    p.Weights.Urgency,
		Effort:     p.Weights.Effort,
		Focus:      p.Weights.Focus,
		Dependency: p.Weights.Dependency,
		Goal:       p.Weights.Goal,
	}
	return prefs, nil
}

// ParseWeekday accepts full English day names and three-letter abbreviations
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}

// ParseDuration extends time.ParseDuration to support days and weeks.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	// Handle days (e.g., "7d")
	var days int
	if n, err := fmt.Sscanf(s, "%dd", &days); err == nil && n == 1 && strings.HasSuffix(s, "d") {
		return time.Duration(days) * 24 * time.Hour, nil
	}

	// Handle weeks (e.g., "2w")
	var weeks int
	if n, err := fmt.Sscanf(s, "%dw", &weeks); err == nil && n == 1 && strings.HasSuffix(s, "w") {
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	// Fall back to standard time.ParseDuration (handles h, m, s, ms, etc.)
	return time.ParseDuration(s)
}

// formatDuration renders whole days as "Nd" and anything else in Go syntax
func formatDuration(d time.Duration) string {
	const day = 24 * time.Hour
	if d > 0 && d%day == 0 && d%(7*day) != 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	if d > 0 && d%(7*day) == 0 {
		return fmt.Sprintf("%dw", d/(7*day))
	}
	return d.String()
}
