package types

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// weightTolerance is the allowed floating point slack when checking that weights sum to 1.0
const weightTolerance = 1e-6

// TimeOfDay is a wall-clock time expressed as minutes since midnight
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" (24h clock)
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (expected HH:MM): %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

// TimeOfDayOf returns the wall-clock time of t in t's location
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// IsValid reports whether the value lies within a single day
func (t TimeOfDay) IsValid() bool {
	return t >= 0 && t < 24*60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// inRange reports whether t lies in [start, end]. Ranges where end < start cross midnight.
func (t TimeOfDay) inRange(start, end TimeOfDay) bool {
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}

// FocusWindow is a recurring time-of-day interval with a productivity multiplier.
// An empty Weekdays list means every day.
type FocusWindow struct {
	Start      TimeOfDay      `json:"start"`
	End        TimeOfDay      `json:"end"`
	Multiplier float64        `json:"multiplier"`
	Weekdays   []time.Weekday `json:"weekdays,omitempty"`
}

// Contains reports whether now falls inside the window
func (w FocusWindow) Contains(now time.Time) bool {
	if len(w.Weekdays) > 0 && !slices.Contains(w.Weekdays, now.Weekday()) {
		return false
	}
	return TimeOfDayOf(now).inRange(w.Start, w.End)
}

// IsPeak reports whether the window counts as a peak productivity window
func (w FocusWindow) IsPeak() bool {
	return w.Multiplier > PeakMultiplierThreshold
}

// PeakMultiplierThreshold is the multiplier above which a focus window is a peak window.
// It matches the work-hours factor, so only windows stronger than ordinary work hours count.
const PeakMultiplierThreshold = 1.2

// Weights are the five scoring component weights. They must sum to 1.0.
type Weights struct {
	Urgency    float64 `json:"urgency"`
	Effort     float64 `json:"effort"`
	Focus      float64 `json:"focus"`
	Dependency float64 `json:"dependency"`
	Goal       float64 `json:"goal"`
}

// DefaultWeights returns the standard weighting
func DefaultWeights() Weights {
	return Weights{
		Urgency:    0.4,
		Effort:     0.2,
		Focus:      0.2,
		Dependency: 0.1,
		Goal:       0.1,
	}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Urgency + w.Effort + w.Focus + w.Dependency + w.Goal
}

// Validate checks that every weight is non-negative and the total is 1.0
func (w Weights) Validate() error {
	named := []struct {
		name  string
		value float64
	}{
		{"urgency", w.Urgency},
		{"effort", w.Effort},
		{"focus", w.Focus},
		{"dependency", w.Dependency},
		{"goal", w.Goal},
	}
	for _, n := range named {
		if math.IsNaN(n.value) || n.value < 0 {
			return NewConfigError("weights."+n.name, fmt.Sprintf("weight must be non-negative (got %v)", n.value))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightTolerance {
		return NewConfigError("weights", fmt.Sprintf("weights must sum to 1.0 (got %.4f)", sum))
	}
	return nil
}

// Preferences drive the focus and weighting parts of scoring
type Preferences struct {
	FocusWindows   []FocusWindow `json:"focus_windows,omitempty"`
	WorkHoursStart TimeOfDay     `json:"work_hours_start"`
	WorkHoursEnd   TimeOfDay     `json:"work_hours_end"`
	Weights        Weights       `json:"weights"`
}

// DefaultPreferences returns 09:00-17:00 work hours, no focus windows, and default weights
func DefaultPreferences() Preferences {
	return Preferences{
		WorkHoursStart: NewTimeOfDay(9, 0),
		WorkHoursEnd:   NewTimeOfDay(17, 0),
		Weights:        DefaultWeights(),
	}
}

// Validate returns a ConfigError if the preferences cannot be used for scoring
func (p Preferences) Validate() error {
	if !p.WorkHoursStart.IsValid() || !p.WorkHoursEnd.IsValid() {
		return NewConfigError("work_hours", fmt.Sprintf("work hours out of range (%d-%d)", p.WorkHoursStart, p.WorkHoursEnd))
	}
	for i, w := range p.FocusWindows {
		if !w.Start.IsValid() || !w.End.IsValid() {
			return NewConfigError(fmt.Sprintf("focus_windows[%d]", i), "window bounds out of range")
		}
		if w.Start == w.End {
			return NewConfigError(fmt.Sprintf("focus_windows[%d]", i), "window must not be empty")
		}
		if math.IsNaN(w.Multiplier) || w.Multiplier <= 0 {
			return NewConfigError(fmt.Sprintf("focus_windows[%d]", i), fmt.Sprintf("multiplier must be positive (got %v)", w.Multiplier))
		}
		for _, d := range w.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return NewConfigError(fmt.Sprintf("focus_windows[%d]", i), fmt.Sprintf("invalid weekday %d", d))
			}
		}
	}
	return p.Weights.Validate()
}

// InWorkHours reports whether now falls within the work-hours interval
func (p Preferences) InWorkHours(now time.Time) bool {
	return TimeOfDayOf(now).inRange(p.WorkHoursStart, p.WorkHoursEnd)
}

// InPeakWindow reports whether now falls inside any peak focus window
func (p Preferences) InPeakWindow(now time.Time) bool {
	for _, w := range p.FocusWindows {
		if w.IsPeak() && w.Contains(now) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the preferences
func (p Preferences) Clone() Preferences {
	c := p
	c.FocusWindows = make([]FocusWindow, len(p.FocusWindows))
	for i, w := range p.FocusWindows {
		w.Weekdays = slices.Clone(w.Weekdays)
		c.FocusWindows[i] = w
	}
	return c
}
