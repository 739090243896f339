// Package priorities scores tasks and orders them for ranking.
//
// Scoring is a pure function of the task, the scoring preferences, a graph
// snapshot, the statuses of known goals, and the instant being scored. It holds
// no state, so identical inputs always yield identical scores.
package priorities

import (
	"math"
	"strings"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Component scales. Every component lies in [MinComponent, MaxComponent].
const (
	MinComponent = 0.0
	MaxComponent = 10.0

	focusBase          = 5.0
	peakMultiplier     = 2.0
	workHourMultiplier = 1.2

	dependencyBase       = 5.0
	dependencyBonusCap   = 5
	notReadyPenalty      = 3.0
	goalPointsPerLink    = 2.0
	reasoningDefaultText = "standard priority"
)

// DependencySnapshot is the read-only graph view the scorer needs
type DependencySnapshot interface {
	IsReady(taskID string) bool
	AwaitingDependents(taskID string) int
}

// GoalStatuses maps goal id to its current status
type GoalStatuses map[string]types.GoalStatus

// Compute scores a single task at instant now.
//
// Weights are taken from prefs as given. They are validated when preferences
// are configured (see NewScorer), never here.
func Compute(task *types.Task, prefs types.Preferences, snap DependencySnapshot, goals GoalStatuses, now time.Time) (types.PriorityScore, error) {
	if task == nil {
		return types.PriorityScore{}, types.NewValidationError("task", "task is nil")
	}
	if err := task.Validate(); err != nil {
		return types.PriorityScore{}, err
	}

	score := types.PriorityScore{
		TaskID:     task.ID,
		Urgency:    UrgencyScore(task.DueDate, now),
		Effort:     EffortScore(task.EstimatedEffort),
		Focus:      FocusScore(prefs, now),
		Dependency: DependencyScore(snap.AwaitingDependents(task.ID), snap.IsReady(task.ID)),
		Goal:       GoalScore(task.GoalIDs, goals),
		ComputedAt: now,
	}

	w := prefs.Weights
	score.Composite = score.Urgency*w.Urgency +
		score.Effort*w.Effort +
		score.Focus*w.Focus +
		score.Dependency*w.Dependency +
		score.Goal*w.Goal
	score.Reasoning = Reasoning(score)
	return score, nil
}

// UrgencyScore rates deadline proximity. Tasks without a due date score 1.
func UrgencyScore(due *time.Time, now time.Time) float64 {
	if due == nil {
		return 1
	}
	daysRemaining := due.Sub(now).Hours() / 24
	switch {
	case daysRemaining < 0:
		return 10
	case daysRemaining < 1:
		return 8
	case daysRemaining < 3:
		return 6
	case daysRemaining < 7:
		return 4
	case daysRemaining < 30:
		return 2
	default:
		return 1
	}
}

// EffortScore favors quick wins: the smaller the estimate, the higher the score
func EffortScore(effort time.Duration) float64 {
	switch {
	case effort <= 30*time.Minute:
		return 8
	case effort <= 2*time.Hour:
		return 6
	case effort <= 8*time.Hour:
		return 4
	case effort <= 24*time.Hour:
		return 2
	default:
		return 1
	}
}

// FocusScore rewards scoring during peak focus windows and, to a lesser
// degree, during work hours
func FocusScore(prefs types.Preferences, now time.Time) float64 {
	multiplier := 1.0
	switch {
	case prefs.InPeakWindow(now):
		multiplier = peakMultiplier
	case prefs.InWorkHours(now):
		multiplier = workHourMultiplier
	}
	return math.Min(MaxComponent, focusBase*multiplier)
}

// DependencyScore rewards tasks that unblock others and penalizes tasks that
// are still waiting on their own dependencies
func DependencyScore(awaitingDependents int, ready bool) float64 {
	score := dependencyBase + float64(min(awaitingDependents, dependencyBonusCap))
	if !ready {
		score -= notReadyPenalty
	}
	return math.Max(MinComponent, score)
}

// GoalScore counts distinct linked goals that are still active.
// Unknown goal ids contribute nothing.
func GoalScore(goalIDs []string, goals GoalStatuses) float64 {
	seen := make(map[string]bool, len(goalIDs))
	score := 0.0
	for _, id := range goalIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if goals[id] == types.GoalActive {
			score += goalPointsPerLink
		}
	}
	return math.Min(MaxComponent, score)
}

// Reasoning summarizes the notable components of a score in a short phrase
func Reasoning(s types.PriorityScore) string {
	var reasons []string

	if s.Urgency > 7 {
		reasons = append(reasons, "urgent deadline")
	} else if s.Urgency > 5 {
		reasons = append(reasons, "approaching deadline")
	}

	if s.Effort > 6 {
		reasons = append(reasons, "quick win")
	} else if s.Effort < 3 {
		reasons = append(reasons, "complex task")
	}

	if s.Focus > 6 {
		reasons = append(reasons, "peak focus time")
	}

	if s.Dependency > 7 {
		reasons = append(reasons, "blocks other tasks")
	} else if s.Dependency < 3 {
		reasons = append(reasons, "waiting on dependencies")
	}

	if s.Goal > 6 {
		reasons = append(reasons, "advances multiple goals")
	}

	if len(reasons) == 0 {
		return reasoningDefaultText
	}
	return strings.Join(reasons, ", ")
}
