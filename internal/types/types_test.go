package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() *Task {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return &Task{
		ID:        "t-1",
		Title:     "Write report",
		Status:    StatusPending,
		Priority:  PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTaskValidate(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Task) {}},
		{name: "missing title", mutate: func(tk *Task) { tk.Title = "" }, wantErr: true},
		{name: "unknown status", mutate: func(tk *Task) { tk.Status = "open" }, wantErr: true},
		{name: "unknown priority", mutate: func(tk *Task) { tk.Priority = "urgent" }, wantErr: true},
		{name: "negative effort", mutate: func(tk *Task) { tk.EstimatedEffort = -time.Minute }, wantErr: true},
		{name: "progress above one", mutate: func(tk *Task) { tk.Progress = 1.5 }, wantErr: true},
		{
			name:    "completed without completed_at",
			mutate:  func(tk *Task) { tk.Status = StatusCompleted; tk.Progress = 1 },
			wantErr: true,
		},
		{
			name: "completed with partial progress",
			mutate: func(tk *Task) {
				tk.Status = StatusCompleted
				tk.CompletedAt = &now
				tk.Progress = 0.5
			},
			wantErr: true,
		},
		{
			name: "completed",
			mutate: func(tk *Task) {
				tk.Status = StatusCompleted
				tk.CompletedAt = &now
				tk.Progress = 1
			},
		},
		{
			name:    "custom recurrence without interval",
			mutate:  func(tk *Task) { tk.Recurrence = &RecurrenceRule{Frequency: FrequencyCustom} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(task)
			err := task.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation), "expected validation error, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTaskClone_IsDeep(t *testing.T) {
	due := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	task := validTask()
	task.DueDate = &due
	task.Dependencies = []string{"a"}
	task.Recurrence = &RecurrenceRule{Frequency: FrequencyDaily}

	clone := task.Clone()
	clone.Dependencies[0] = "b"
	*clone.DueDate = due.Add(time.Hour)
	clone.Recurrence.Frequency = FrequencyWeekly

	assert.Equal(t, "a", task.Dependencies[0])
	assert.Equal(t, due, *task.DueDate)
	assert.Equal(t, FrequencyDaily, task.Recurrence.Frequency)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	short := DefaultWeights()
	short.Goal = 0 // sum 0.9
	err := short.Validate()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "weights", cfgErr.Field)

	negative := Weights{Urgency: 1.2, Effort: -0.2}
	assert.ErrorIs(t, negative.Validate(), ErrConfig)
}

func TestPreferencesValidate(t *testing.T) {
	assert.NoError(t, DefaultPreferences().Validate())

	p := DefaultPreferences()
	p.FocusWindows = []FocusWindow{{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(9, 0), Multiplier: 2}}
	assert.ErrorIs(t, p.Validate(), ErrConfig)

	p.FocusWindows = []FocusWindow{{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(11, 0), Multiplier: 0}}
	assert.ErrorIs(t, p.Validate(), ErrConfig)
}

func TestFocusWindowContains(t *testing.T) {
	monday := time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC)
	w := FocusWindow{Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(11, 0), Multiplier: 2}

	assert.True(t, w.Contains(monday))
	assert.False(t, w.Contains(monday.Add(2*time.Hour)))

	w.Weekdays = []time.Weekday{time.Tuesday}
	assert.False(t, w.Contains(monday))

	overnight := FocusWindow{Start: NewTimeOfDay(22, 0), End: NewTimeOfDay(2, 0), Multiplier: 2}
	assert.True(t, overnight.Contains(time.Date(2025, 3, 10, 23, 15, 0, 0, time.UTC)))
	assert.True(t, overnight.Contains(time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)))
	assert.False(t, overnight.Contains(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(9, 30), tod)
	assert.Equal(t, "09:30", tod.String())

	_, err = ParseTimeOfDay("9am")
	assert.Error(t, err)
}

func TestCycleErrorMessage(t *testing.T) {
	err := &CycleError{TaskID: "b", DependsOnID: "a", Path: []string{"a", "b", "a"}}
	assert.Contains(t, err.Error(), "a → b → a")
	assert.ErrorIs(t, err, ErrCycle)
}
