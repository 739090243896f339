package types

import (
	"fmt"
	"time"
)

// Frequency is the closed set of recurrence cadences. It stays a string so a
// stored rule with an unknown cadence still loads; Validate rejects it when
// the series next respawns.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
	FrequencyCustom  Frequency = "custom"
)

// IsValid checks if the frequency is one of the known cadences
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly, FrequencyCustom:
		return true
	}
	return false
}

// RecurrenceRule governs how a completed task regenerates its next instance.
// Interval is only meaningful for FrequencyCustom. AnchorDay is the day of
// month monthly and yearly series return to after a short month; it is set
// from the first instance's due date when the series first respawns.
type RecurrenceRule struct {
	Frequency        Frequency     `json:"frequency"`
	Interval         time.Duration `json:"interval,omitempty"`
	Until            *time.Time    `json:"until,omitempty"`
	KeepDependencies bool          `json:"keep_dependencies,omitempty"`
	AnchorDay        int           `json:"anchor_day,omitempty"`
}

// Validate reports a ValidationError for rules that cannot produce a next date
func (r RecurrenceRule) Validate() error {
	if !r.Frequency.IsValid() {
		return NewValidationError("recurrence.frequency", fmt.Sprintf("unknown frequency %q", r.Frequency))
	}
	if r.Frequency == FrequencyCustom && r.Interval <= 0 {
		return NewValidationError("recurrence.interval", fmt.Sprintf("custom recurrence needs a positive interval (got %v)", r.Interval))
	}
	if r.AnchorDay < 0 || r.AnchorDay > 31 {
		return NewValidationError("recurrence.anchor_day", fmt.Sprintf("must be between 1 and 31 when set (got %d)", r.AnchorDay))
	}
	return nil
}

// Clone returns a deep copy of the rule
func (r RecurrenceRule) Clone() RecurrenceRule {
	c := r
	c.Until = cloneTime(r.Until)
	return c
}

// RecurrenceState tracks where a recurring task instance is in its lifecycle
type RecurrenceState string

const (
	RecurrenceActive    RecurrenceState = "active"
	RecurrenceRespawned RecurrenceState = "respawned"
	RecurrenceCancelled RecurrenceState = "cancelled"
	RecurrenceFailed    RecurrenceState = "failed"
)
