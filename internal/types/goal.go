package types

import (
	"fmt"
	"slices"
	"time"
)

// Goal is a caller-declared objective that tasks contribute to.
// Progress is always derived from linked tasks and never stored here.
type Goal struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Type        GoalType   `json:"type"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	TaskIDs     []string   `json:"task_ids,omitempty"`
	Milestones  []string   `json:"milestones,omitempty"`
	Status      GoalStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks if the goal has valid field values
func (g *Goal) Validate() error {
	if len(g.Title) == 0 {
		return NewValidationError("title", "title is required")
	}
	if len(g.Title) > 500 {
		return NewValidationError("title", fmt.Sprintf("title must be 500 characters or less (got %d)", len(g.Title)))
	}
	if !g.Type.IsValid() {
		return NewValidationError("type", fmt.Sprintf("invalid goal type: %s", g.Type))
	}
	if !g.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("invalid goal status: %s", g.Status))
	}
	return nil
}

// HasTask reports whether the task is linked to the goal
func (g *Goal) HasTask(taskID string) bool {
	return slices.Contains(g.TaskIDs, taskID)
}

// Clone returns a deep copy of the goal
func (g *Goal) Clone() *Goal {
	c := *g
	c.TargetDate = cloneTime(g.TargetDate)
	c.TaskIDs = slices.Clone(g.TaskIDs)
	c.Milestones = slices.Clone(g.Milestones)
	return &c
}

// GoalType categorizes a goal
type GoalType string

const (
	GoalPersonal     GoalType = "personal"
	GoalProfessional GoalType = "professional"
	GoalLearning     GoalType = "learning"
	GoalHealth       GoalType = "health"
	GoalProject      GoalType = "project"
)

// AllGoalTypes lists every goal type in display order
var AllGoalTypes = []GoalType{GoalPersonal, GoalProfessional, GoalLearning, GoalHealth, GoalProject}

// IsValid checks if the goal type is valid
func (t GoalType) IsValid() bool {
	switch t {
	case GoalPersonal, GoalProfessional, GoalLearning, GoalHealth, GoalProject:
		return true
	}
	return false
}

// GoalStatus represents the lifecycle state of a goal
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalAchieved  GoalStatus = "achieved"
	GoalBehind    GoalStatus = "behind"
	GoalAbandoned GoalStatus = "abandoned"
)

// IsValid checks if the goal status is valid
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalActive, GoalAchieved, GoalBehind, GoalAbandoned:
		return true
	}
	return false
}
