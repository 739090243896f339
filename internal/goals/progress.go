package goals

import (
	"fmt"
	"math"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Config tunes when a goal is considered at risk
type Config struct {
	// AttentionFraction is the share of a goal's total span (creation to
	// target) below which the remaining time counts as running out.
	// Default: 0.5 (the second half of the span)
	AttentionFraction float64

	// ProjectionSlope scales the linear progress projection. 1.0 expects
	// progress to track elapsed time exactly; lower values are more lenient.
	// Default: 1.0
	ProjectionSlope float64
}

// DefaultConfig returns the default goal-risk configuration
func DefaultConfig() Config {
	return Config{
		AttentionFraction: 0.5,
		ProjectionSlope:   1.0,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if math.IsNaN(c.AttentionFraction) || c.AttentionFraction <= 0 || c.AttentionFraction > 1 {
		return types.NewConfigError("goals.attention_fraction", fmt.Sprintf("must be in (0, 1] (got %v)", c.AttentionFraction))
	}
	if math.IsNaN(c.ProjectionSlope) || c.ProjectionSlope <= 0 {
		return types.NewConfigError("goals.projection_slope", fmt.Sprintf("must be positive (got %v)", c.ProjectionSlope))
	}
	return nil
}

// TaskLookup resolves a task id to the task, reporting false when unknown
type TaskLookup func(id string) (*types.Task, bool)

// ComputeProgress derives goal progress from its linked tasks: completed
// tasks count fully, others contribute their own progress. Unknown task ids
// count as zero progress. A goal with no linked tasks has progress 0.
func ComputeProgress(goal *types.Goal, lookup TaskLookup) float64 {
	if len(goal.TaskIDs) == 0 {
		return 0
	}
	sum := 0.0
	for _, id := range goal.TaskIDs {
		task, ok := lookup(id)
		if !ok {
			continue
		}
		if task.Status == types.StatusCompleted {
			sum += 1.0
		} else {
			sum += task.Progress
		}
	}
	return sum / float64(len(goal.TaskIDs))
}

// NeedsAttention reports whether a goal with the given progress is falling
// behind at instant now. Goals without a target date never need attention.
func (c Config) NeedsAttention(goal *types.Goal, progress float64, now time.Time) bool {
	if goal.TargetDate == nil {
		return false
	}
	span := goal.TargetDate.Sub(goal.CreatedAt)
	if span <= 0 {
		return progress < 1
	}

	remaining := goal.TargetDate.Sub(now)
	if float64(remaining) >= c.AttentionFraction*float64(span) {
		return false
	}

	elapsed := now.Sub(goal.CreatedAt)
	expected := math.Min(1, c.ProjectionSlope*float64(elapsed)/float64(span))
	return progress < expected
}

// IsOverdue reports whether the goal's target date has passed without the
// goal being finished
func IsOverdue(goal *types.Goal, progress float64, now time.Time) bool {
	return goal.TargetDate != nil && goal.TargetDate.Before(now) && progress < 1
}
