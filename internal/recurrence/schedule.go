package recurrence

import (
	"fmt"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// maxAdvance bounds how many periods NextDue steps past its estimate of the
// first future occurrence
const maxAdvance = 1_000

// NextDue returns the first occurrence of the rule after base that is
// strictly later than now. Occurrences that fell in the past are skipped, so
// a series that was idle for several periods yields a single next date.
//
// Monthly and yearly occurrences land on the rule's AnchorDay, clamped to the
// length of the target month; without an anchor, base's day is used.
func NextDue(rule types.RecurrenceRule, base, now time.Time) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return time.Time{}, err
	}

	if rule.Frequency == types.FrequencyCustom {
		k := int64(1)
		if gap := now.Sub(base); gap >= rule.Interval {
			k = int64(gap/rule.Interval) + 1
		}
		next := base.Add(time.Duration(k) * rule.Interval)
		for !next.After(now) {
			next = next.Add(rule.Interval)
		}
		return next, nil
	}

	anchor := rule.AnchorDay
	if anchor == 0 {
		anchor = base.Day()
	}
	start := firstPeriod(rule.Frequency, base, now)
	for k := start; k <= start+maxAdvance; k++ {
		next, ok := occurrence(rule.Frequency, base, k, anchor)
		if !ok {
			return time.Time{}, types.NewValidationError("recurrence.frequency", fmt.Sprintf("unknown frequency %q", rule.Frequency))
		}
		if next.After(now) {
			return next, nil
		}
	}
	return time.Time{}, types.NewValidationError("recurrence", fmt.Sprintf("no occurrence after %s", now.Format(time.RFC3339)))
}

// Anchor returns rule with AnchorDay fixed from base when the cadence is
// calendar-month based and no anchor is set yet. Successors carry the
// anchored rule so the series keeps its day across short months.
func Anchor(rule types.RecurrenceRule, base time.Time) types.RecurrenceRule {
	if rule.AnchorDay == 0 && (rule.Frequency == types.FrequencyMonthly || rule.Frequency == types.FrequencyYearly) {
		rule.AnchorDay = base.Day()
	}
	return rule
}

// firstPeriod estimates the smallest k whose occurrence could follow now.
// The estimate never overshoots, so stepping forward from it finds the
// answer in a few iterations however long the series was idle.
func firstPeriod(freq types.Frequency, base, now time.Time) int {
	if !now.After(base) {
		return 1
	}
	now = now.In(base.Location())
	var k int
	switch freq {
	case types.FrequencyDaily:
		// Wall-clock days drift from 24h by at most an hour across DST
		k = int(now.Sub(base)/(24*time.Hour)) - 1
	case types.FrequencyWeekly:
		k = int(now.Sub(base)/(7*24*time.Hour)) - 1
	case types.FrequencyMonthly:
		k = monthsBetween(base, now) - 1
	case types.FrequencyYearly:
		k = now.Year() - base.Year() - 1
	}
	return max(k, 1)
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// occurrence returns the k-th occurrence after base. Monthly and yearly
// occurrences are measured from base and placed on the anchor day, so a
// series anchored on the 31st goes Jan 31 -> Feb 28 -> Mar 31.
func occurrence(freq types.Frequency, base time.Time, k, anchor int) (time.Time, bool) {
	switch freq {
	case types.FrequencyDaily:
		return base.AddDate(0, 0, k), true
	case types.FrequencyWeekly:
		return base.AddDate(0, 0, 7*k), true
	case types.FrequencyMonthly:
		return addMonthsClamped(base, k, anchor), true
	case types.FrequencyYearly:
		return addMonthsClamped(base, 12*k, anchor), true
	}
	return time.Time{}, false
}

// addMonthsClamped adds n months and places the result on day, clamped to the
// target month's length instead of overflowing into the following month like
// time.AddDate does.
func addMonthsClamped(t time.Time, n, day int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
