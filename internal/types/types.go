package types

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Task represents a schedulable work item
type Task struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Status          Status          `json:"status"`
	Priority        PriorityLevel   `json:"priority"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	EstimatedEffort time.Duration   `json:"estimated_effort"`
	Dependencies    []string        `json:"dependencies,omitempty"`
	GoalIDs         []string        `json:"goal_ids,omitempty"`
	Recurrence      *RecurrenceRule `json:"recurrence,omitempty"`
	Milestones      []string        `json:"milestones,omitempty"`
	Progress        float64         `json:"progress"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	LastScoredAt    *time.Time      `json:"last_scored_at,omitempty"`

	// Recurrence bookkeeping. SeriesID is shared by every instance of a
	// recurring series; SuccessorID is set once the next instance exists.
	SeriesID        string          `json:"series_id,omitempty"`
	SuccessorID     string          `json:"successor_id,omitempty"`
	RecurrenceState RecurrenceState `json:"recurrence_state,omitempty"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if len(t.Title) == 0 {
		return NewValidationError("title", "title is required")
	}
	if len(t.Title) > 500 {
		return NewValidationError("title", fmt.Sprintf("title must be 500 characters or less (got %d)", len(t.Title)))
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("invalid status: %s", t.Status))
	}
	if !t.Priority.IsValid() {
		return NewValidationError("priority", fmt.Sprintf("invalid priority: %s", t.Priority))
	}
	if t.EstimatedEffort < 0 {
		return NewValidationError("estimated_effort", "estimated_effort cannot be negative")
	}
	if math.IsNaN(t.Progress) || t.Progress < 0 || t.Progress > 1 {
		return NewValidationError("progress", fmt.Sprintf("progress must be between 0 and 1 (got %v)", t.Progress))
	}
	if t.Status == StatusCompleted {
		if t.Progress != 1.0 {
			return NewValidationError("progress", "completed task must have progress 1.0")
		}
		if t.CompletedAt == nil {
			return NewValidationError("completed_at", "completed task must have completed_at")
		}
	}
	if t.Recurrence != nil {
		if err := t.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsTerminal reports whether the task can no longer change state
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsOverdue reports whether the task has a due date in the past and is not completed
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.IsTerminal()
}

// Clone returns a deep copy of the task
func (t *Task) Clone() *Task {
	c := *t
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.LastScoredAt = cloneTime(t.LastScoredAt)
	c.Dependencies = slices.Clone(t.Dependencies)
	c.GoalIDs = slices.Clone(t.GoalIDs)
	c.Milestones = slices.Clone(t.Milestones)
	if t.Recurrence != nil {
		r := t.Recurrence.Clone()
		c.Recurrence = &r
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Status represents the current state of a task
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusBlocked, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status is completed or cancelled
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PriorityLevel is the caller-declared importance of a task
type PriorityLevel string

const (
	PriorityCritical PriorityLevel = "critical"
	PriorityHigh     PriorityLevel = "high"
	PriorityMedium   PriorityLevel = "medium"
	PriorityLow      PriorityLevel = "low"
)

// IsValid checks if the priority level is valid
func (p PriorityLevel) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// TaskFilter narrows task listings and rankings. Zero values match everything.
type TaskFilter struct {
	Statuses        []Status
	Priority        *PriorityLevel
	GoalID          string
	DueBefore       *time.Time
	ReadyOnly       bool
	IncludeTerminal bool
	Limit           int
}

// Statistics provides aggregate task metrics
type Statistics struct {
	TotalTasks      int     `json:"total_tasks"`
	PendingTasks    int     `json:"pending_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	BlockedTasks    int     `json:"blocked_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	CancelledTasks  int     `json:"cancelled_tasks"`
	OverdueTasks    int     `json:"overdue_tasks"`
	ReadyTasks      int     `json:"ready_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
	ActiveGoals     int     `json:"active_goals"`
}
