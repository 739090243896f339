package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/taskpilot/internal/config"
	"github.com/steveyegge/taskpilot/internal/types"
)

// parseWhen reads a point in time relative to now. Accepted forms:
//
//	today, tomorrow         end of that day
//	+3d, +2h30m, +1w        offset from now
//	2025-03-14              end of that day
//	2025-03-14 09:30        local time
//	2025-03-14T09:30:00Z    RFC 3339
//
// Dates without a zone are read in now's location.
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := now.Location()
	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc)
	}

	switch strings.ToLower(s) {
	case "":
		return time.Time{}, fmt.Errorf("empty date")
	case "today":
		return endOfDay(now), nil
	case "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), nil
	}

	if strings.HasPrefix(s, "+") {
		d, err := config.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid offset %q: %w", s, err)
		}
		return now.Add(d), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return endOfDay(t), nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (try 2006-01-02, \"2006-01-02 15:04\", +3d or tomorrow)", s)
}

// parseRecurrence builds a rule from the --recur, --every and --until flags.
// A bare duration given to --recur is shorthand for a custom cadence.
func parseRecurrence(freq, every, until string, now time.Time) (*types.RecurrenceRule, error) {
	freq = strings.ToLower(strings.TrimSpace(freq))
	if freq == "" {
		if every != "" || until != "" {
			return nil, fmt.Errorf("--every and --until need --recur")
		}
		return nil, nil
	}

	rule := &types.RecurrenceRule{Frequency: types.Frequency(freq)}
	if !rule.Frequency.IsValid() {
		d, err := config.ParseDuration(freq)
		if err != nil {
			return nil, fmt.Errorf("unknown recurrence %q (daily, weekly, monthly, yearly, custom or a duration)", freq)
		}
		rule.Frequency = types.FrequencyCustom
		rule.Interval = d
	}
	if every != "" {
		if rule.Frequency != types.FrequencyCustom {
			return nil, fmt.Errorf("--every only applies to custom recurrence")
		}
		d, err := config.ParseDuration(every)
		if err != nil {
			return nil, fmt.Errorf("invalid --every: %w", err)
		}
		rule.Interval = d
	}
	if until != "" {
		t, err := parseWhen(until, now)
		if err != nil {
			return nil, fmt.Errorf("invalid --until: %w", err)
		}
		rule.Until = &t
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func parseStatus(s string) (types.Status, error) {
	status := types.Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

func parsePriority(s string) (types.PriorityLevel, error) {
	p := types.PriorityLevel(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown priority %q (critical, high, medium or low)", s)
	}
	return p, nil
}

func parseGoalType(s string) (types.GoalType, error) {
	t := types.GoalType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown goal type %q", s)
	}
	return t, nil
}

// splitList splits a comma-separated flag value, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
