// Package recurrence regenerates the next instance of a recurring task when
// the current instance is completed.
package recurrence

import (
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Outcome is the result of processing one completed recurring task
type Outcome struct {
	// State is the new recurrence state of the completed instance
	State types.RecurrenceState
	// Successor is the next instance, set only when State is RecurrenceRespawned
	Successor *types.Task
	// Err explains a RecurrenceFailed outcome
	Err error
}

// Engine builds successor tasks. It holds no task state of its own.
type Engine struct {
	newID  func() string
	logger *slog.Logger
}

// NewEngine creates a recurrence engine that assigns uuid ids to successors
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		newID:  func() string { return uuid.New().String() },
		logger: logger,
	}
}

// IsRecurring reports whether the task carries a rule and still awaits regeneration
func IsRecurring(task *types.Task) bool {
	return task.Recurrence != nil && task.SuccessorID == "" &&
		(task.RecurrenceState == "" || task.RecurrenceState == types.RecurrenceActive)
}

// Process decides what happens to a recurring task after it reaches a
// terminal status. The task itself is not modified.
//
// A cancelled task ends its series. A completed task yields exactly one
// successor whose due date is the first occurrence after now, unless the
// rule's until date has passed, which also ends the series. Malformed rules
// produce RecurrenceFailed with the validation error.
func (e *Engine) Process(task *types.Task, now time.Time) Outcome {
	if task.Recurrence == nil {
		return Outcome{}
	}
	if task.Status == types.StatusCancelled {
		return Outcome{State: types.RecurrenceCancelled}
	}

	rule := task.Recurrence
	if err := rule.Validate(); err != nil {
		e.logger.Warn("recurrence rule rejected", "task_id", task.ID, "error", err)
		return Outcome{State: types.RecurrenceFailed, Err: err}
	}

	base := now
	switch {
	case task.DueDate != nil:
		base = *task.DueDate
	case task.CompletedAt != nil:
		base = *task.CompletedAt
	}

	anchored := Anchor(*rule, base)
	next, err := NextDue(anchored, base, now)
	if err != nil {
		e.logger.Warn("failed to compute next occurrence", "task_id", task.ID, "error", err)
		return Outcome{State: types.RecurrenceFailed, Err: err}
	}
	if anchored.Until != nil && next.After(*anchored.Until) {
		e.logger.Debug("recurring series ended", "task_id", task.ID, "until", anchored.Until)
		return Outcome{State: types.RecurrenceCancelled}
	}

	successor := e.successor(task, anchored, next, now)
	e.logger.Debug("recurring task respawned", "task_id", task.ID, "successor_id", successor.ID, "due", next)
	return Outcome{State: types.RecurrenceRespawned, Successor: successor}
}

// successor clones the template fields of task into a fresh pending instance
func (e *Engine) successor(task *types.Task, rule types.RecurrenceRule, due, now time.Time) *types.Task {
	rule = rule.Clone()
	seriesID := task.SeriesID
	if seriesID == "" {
		seriesID = task.ID
	}

	next := &types.Task{
		ID:              e.newID(),
		Title:           task.Title,
		Description:     task.Description,
		Status:          types.StatusPending,
		Priority:        task.Priority,
		DueDate:         &due,
		EstimatedEffort: task.EstimatedEffort,
		GoalIDs:         slices.Clone(task.GoalIDs),
		Recurrence:      &rule,
		Milestones:      slices.Clone(task.Milestones),
		CreatedAt:       now,
		UpdatedAt:       now,
		SeriesID:        seriesID,
		RecurrenceState: types.RecurrenceActive,
	}
	if rule.KeepDependencies {
		next.Dependencies = slices.Clone(task.Dependencies)
	}
	return next
}
