package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/taskpilot/internal/types"
)

func date(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func recurringTask(freq types.Frequency, due time.Time) *types.Task {
	completed := due
	return &types.Task{
		ID:              "orig",
		Title:           "Water plants",
		Description:     "all of them",
		Status:          types.StatusCompleted,
		Priority:        types.PriorityLow,
		DueDate:         &due,
		EstimatedEffort: 15 * time.Minute,
		Dependencies:    []string{"dep"},
		GoalIDs:         []string{"g1"},
		Milestones:      []string{"front room", "balcony"},
		Progress:        1,
		CompletedAt:     &completed,
		Recurrence:      &types.RecurrenceRule{Frequency: freq},
	}
}

func newEngine() *Engine {
	e := NewEngine(nil)
	e.newID = func() string { return "next" }
	return e
}

func TestNextDue(t *testing.T) {
	tests := []struct {
		name string
		rule types.RecurrenceRule
		base time.Time
		now  time.Time
		want time.Time
	}{
		{"daily", types.RecurrenceRule{Frequency: types.FrequencyDaily}, date(2025, 3, 10, 9), date(2025, 3, 10, 10), date(2025, 3, 11, 9)},
		{"weekly", types.RecurrenceRule{Frequency: types.FrequencyWeekly}, date(2025, 3, 10, 9), date(2025, 3, 10, 10), date(2025, 3, 17, 9)},
		{"monthly clamps to month end", types.RecurrenceRule{Frequency: types.FrequencyMonthly}, date(2025, 1, 31, 9), date(2025, 1, 31, 10), date(2025, 2, 28, 9)},
		{"monthly keeps anchor day", types.RecurrenceRule{Frequency: types.FrequencyMonthly}, date(2025, 1, 31, 9), date(2025, 3, 1, 0), date(2025, 3, 31, 9)},
		{"yearly clamps leap day", types.RecurrenceRule{Frequency: types.FrequencyYearly}, date(2024, 2, 29, 9), date(2024, 3, 1, 0), date(2025, 2, 28, 9)},
		{"yearly returns to leap day", types.RecurrenceRule{Frequency: types.FrequencyYearly}, date(2024, 2, 29, 9), date(2027, 3, 1, 0), date(2028, 2, 29, 9)},
		{"custom", types.RecurrenceRule{Frequency: types.FrequencyCustom, Interval: 36 * time.Hour}, date(2025, 3, 10, 0), date(2025, 3, 10, 1), date(2025, 3, 11, 12)},
		{"custom catches up", types.RecurrenceRule{Frequency: types.FrequencyCustom, Interval: 36 * time.Hour}, date(2025, 3, 10, 0), date(2025, 3, 13, 0), date(2025, 3, 14, 12)},
		{"daily catches up", types.RecurrenceRule{Frequency: types.FrequencyDaily}, date(2025, 3, 1, 9), date(2025, 3, 10, 10), date(2025, 3, 11, 9)},
		{"monthly returns to anchor from clamped base", types.RecurrenceRule{Frequency: types.FrequencyMonthly, AnchorDay: 31}, date(2025, 2, 28, 9), date(2025, 2, 28, 10), date(2025, 3, 31, 9)},
		{"monthly catches up across years", types.RecurrenceRule{Frequency: types.FrequencyMonthly}, date(2019, 5, 31, 9), date(2025, 3, 10, 10), date(2025, 3, 31, 9)},
		{"daily catches up across centuries", types.RecurrenceRule{Frequency: types.FrequencyDaily}, date(1700, 1, 1, 9), date(2025, 3, 10, 10), date(2025, 3, 11, 9)},
		{"weekly catches up across centuries", types.RecurrenceRule{Frequency: types.FrequencyWeekly}, date(1725, 3, 10, 9), date(2025, 3, 10, 10), date(2025, 3, 15, 9)},
		{"next must be strictly after now", types.RecurrenceRule{Frequency: types.FrequencyDaily}, date(2025, 3, 9, 9), date(2025, 3, 10, 9), date(2025, 3, 11, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(tt.rule, tt.base, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDue_RejectsMalformedRule(t *testing.T) {
	_, err := NextDue(types.RecurrenceRule{Frequency: types.FrequencyCustom}, date(2025, 1, 1, 0), date(2025, 1, 1, 0))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = NextDue(types.RecurrenceRule{Frequency: "hourly"}, date(2025, 1, 1, 0), date(2025, 1, 1, 0))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = NextDue(types.RecurrenceRule{Frequency: types.FrequencyMonthly, AnchorDay: 32}, date(2025, 1, 1, 0), date(2025, 1, 1, 0))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, ok := occurrence("hourly", date(2025, 1, 1, 0), 1, 1)
	assert.False(t, ok)
}

func TestProcess_MonthlySeriesKeepsAnchorDay(t *testing.T) {
	e := newEngine()
	task := recurringTask(types.FrequencyMonthly, date(2025, 1, 31, 9))

	var dues []time.Time
	now := date(2025, 1, 31, 10)
	for i := 0; i < 4; i++ {
		out := e.Process(task, now)
		require.Equal(t, types.RecurrenceRespawned, out.State)
		assert.Equal(t, 31, out.Successor.Recurrence.AnchorDay)
		dues = append(dues, *out.Successor.DueDate)

		// Complete the successor an hour after it falls due
		task = out.Successor
		task.Status = types.StatusCompleted
		now = task.DueDate.Add(time.Hour)
	}

	assert.Equal(t, []time.Time{
		date(2025, 2, 28, 9),
		date(2025, 3, 31, 9),
		date(2025, 4, 30, 9),
		date(2025, 5, 31, 9),
	}, dues)
	assert.Zero(t, recurringTask(types.FrequencyMonthly, date(2025, 1, 31, 9)).Recurrence.AnchorDay, "the original rule is not modified")
}

func TestAnchor(t *testing.T) {
	base := date(2025, 1, 31, 9)
	assert.Equal(t, 31, Anchor(types.RecurrenceRule{Frequency: types.FrequencyMonthly}, base).AnchorDay)
	assert.Equal(t, 31, Anchor(types.RecurrenceRule{Frequency: types.FrequencyYearly}, base).AnchorDay)
	assert.Equal(t, 15, Anchor(types.RecurrenceRule{Frequency: types.FrequencyMonthly, AnchorDay: 15}, base).AnchorDay)
	assert.Zero(t, Anchor(types.RecurrenceRule{Frequency: types.FrequencyDaily}, base).AnchorDay)
}

func TestProcess_DailySuccessor(t *testing.T) {
	due := date(2025, 3, 10, 9)
	task := recurringTask(types.FrequencyDaily, due)
	now := date(2025, 3, 10, 10)

	out := newEngine().Process(task, now)
	require.NoError(t, out.Err)
	assert.Equal(t, types.RecurrenceRespawned, out.State)
	require.NotNil(t, out.Successor)

	s := out.Successor
	assert.Equal(t, "next", s.ID)
	assert.Equal(t, types.StatusPending, s.Status)
	assert.Equal(t, 0.0, s.Progress)
	assert.Nil(t, s.CompletedAt)
	assert.Equal(t, date(2025, 3, 11, 9), *s.DueDate)
	assert.Equal(t, task.Title, s.Title)
	assert.Equal(t, task.Description, s.Description)
	assert.Equal(t, task.EstimatedEffort, s.EstimatedEffort)
	assert.Equal(t, task.GoalIDs, s.GoalIDs)
	assert.Equal(t, task.Milestones, s.Milestones)
	assert.Empty(t, s.Dependencies, "dependencies are not inherited by default")
	assert.Equal(t, "orig", s.SeriesID)
	assert.Equal(t, types.RecurrenceActive, s.RecurrenceState)
	assert.Equal(t, now, s.CreatedAt)
	assert.NoError(t, s.Validate())

	// The successor owns its slices
	s.GoalIDs[0] = "changed"
	assert.Equal(t, "g1", task.GoalIDs[0])
}

func TestProcess_CatchUpEmitsOneSuccessor(t *testing.T) {
	task := recurringTask(types.FrequencyWeekly, date(2025, 1, 6, 9))
	now := date(2025, 3, 10, 12)

	out := newEngine().Process(task, now)
	require.Equal(t, types.RecurrenceRespawned, out.State)
	assert.Equal(t, date(2025, 3, 17, 9), *out.Successor.DueDate)
}

func TestProcess_KeepDependencies(t *testing.T) {
	task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
	task.Recurrence.KeepDependencies = true

	out := newEngine().Process(task, date(2025, 3, 10, 10))
	require.Equal(t, types.RecurrenceRespawned, out.State)
	assert.Equal(t, []string{"dep"}, out.Successor.Dependencies)
}

func TestProcess_SeriesIDCarriesOver(t *testing.T) {
	task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
	task.SeriesID = "series-1"

	out := newEngine().Process(task, date(2025, 3, 10, 10))
	assert.Equal(t, "series-1", out.Successor.SeriesID)
}

func TestProcess_NoDueDateUsesCompletion(t *testing.T) {
	task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
	task.DueDate = nil
	completed := date(2025, 3, 10, 15)
	task.CompletedAt = &completed

	out := newEngine().Process(task, completed)
	require.Equal(t, types.RecurrenceRespawned, out.State)
	assert.Equal(t, date(2025, 3, 11, 15), *out.Successor.DueDate)
}

func TestProcess_TerminalOutcomes(t *testing.T) {
	now := date(2025, 3, 10, 10)

	t.Run("cancelled task ends the series", func(t *testing.T) {
		task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
		task.Status = types.StatusCancelled
		out := newEngine().Process(task, now)
		assert.Equal(t, types.RecurrenceCancelled, out.State)
		assert.Nil(t, out.Successor)
	})

	t.Run("until date reached", func(t *testing.T) {
		task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
		until := date(2025, 3, 11, 0)
		task.Recurrence.Until = &until
		out := newEngine().Process(task, now)
		assert.Equal(t, types.RecurrenceCancelled, out.State)
		assert.Nil(t, out.Successor)
	})

	t.Run("malformed rule", func(t *testing.T) {
		task := recurringTask(types.FrequencyCustom, date(2025, 3, 10, 9))
		out := newEngine().Process(task, now)
		assert.Equal(t, types.RecurrenceFailed, out.State)
		assert.ErrorIs(t, out.Err, types.ErrValidation)
		assert.Nil(t, out.Successor)
	})

	t.Run("not recurring", func(t *testing.T) {
		task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
		task.Recurrence = nil
		assert.Equal(t, Outcome{}, newEngine().Process(task, now))
	})
}

func TestIsRecurring(t *testing.T) {
	task := recurringTask(types.FrequencyDaily, date(2025, 3, 10, 9))
	assert.True(t, IsRecurring(task))

	task.SuccessorID = "next"
	assert.False(t, IsRecurring(task))

	task.SuccessorID = ""
	task.RecurrenceState = types.RecurrenceFailed
	assert.False(t, IsRecurring(task))
}
