package engine

import (
	"slices"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// GoalInput holds the caller-supplied fields of a new goal
type GoalInput struct {
	Title       string
	Description string
	Type        types.GoalType
	TargetDate  *time.Time
}

// CreateGoal adds a new active goal
func (e *Engine) CreateGoal(input GoalInput) (*types.Goal, error) {
	g, err := e.goals.Create(input.Title, input.Description, input.Type, input.TargetDate, e.clock.Now())
	if err != nil {
		return nil, err
	}
	e.saveGoal(g)
	return g, nil
}

// GetGoal returns a copy of the goal
func (e *Engine) GetGoal(id string) (*types.Goal, error) {
	return e.goals.Get(id)
}

// ListGoals returns copies of all goals, oldest first
func (e *Engine) ListGoals() []*types.Goal {
	return e.goals.List()
}

// GoalsByType returns the active goals of a type
func (e *Engine) GoalsByType(goalType types.GoalType) []*types.Goal {
	return e.goals.ByType(goalType)
}

// LinkTaskToGoal connects a task to a goal. Linking an already linked pair is a no-op.
func (e *Engine) LinkTaskToGoal(taskID, goalID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.taskLocked(taskID)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	linked, err := e.goals.Link(taskID, goalID, now)
	if err != nil {
		return err
	}
	if !linked {
		return nil
	}
	if !slices.Contains(t.GoalIDs, goalID) {
		t.GoalIDs = append(t.GoalIDs, goalID)
	}
	e.touchLocked(t, now)
	e.dedup.Forget(goalID)
	e.saveGoalByID(goalID)
	e.logger.Debug("task linked to goal", "task_id", taskID, "goal_id", goalID)
	return nil
}

// UnlinkTaskFromGoal removes a task from a goal. Unlinking a pair that is not
// linked is a no-op.
func (e *Engine) UnlinkTaskFromGoal(taskID, goalID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.taskLocked(taskID)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	unlinked, err := e.goals.Unlink(taskID, goalID, now)
	if err != nil {
		return err
	}
	if !unlinked {
		return nil
	}
	if i := slices.Index(t.GoalIDs, goalID); i >= 0 {
		t.GoalIDs = slices.Delete(t.GoalIDs, i, i+1)
	}
	e.touchLocked(t, now)
	e.dedup.Forget(goalID)
	e.saveGoalByID(goalID)
	e.logger.Debug("task unlinked from goal", "task_id", taskID, "goal_id", goalID)
	return nil
}

// GoalProgress returns the derived progress of a goal in [0, 1]
func (e *Engine) GoalProgress(goalID string) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.goals.Progress(goalID, e.lookupLocked)
}

// GoalsNeedingAttention returns active goals falling behind their projected progress
func (e *Engine) GoalsNeedingAttention() []*types.Goal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.goals.NeedingAttention(e.lookupLocked, e.clock.Now())
}

// OverdueGoals returns active goals whose target date has passed unfinished
func (e *Engine) OverdueGoals() []*types.Goal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.goals.Overdue(e.lookupLocked, e.clock.Now())
}

// GoalProgressByType averages active goal progress per goal type
func (e *Engine) GoalProgressByType() map[types.GoalType]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.goals.ProgressByType(e.lookupLocked)
}

// AbandonGoal deactivates a goal. Its linked tasks lose the goal's alignment bonus.
func (e *Engine) AbandonGoal(goalID string) (*types.Goal, error) {
	return e.SetGoalStatus(goalID, types.GoalAbandoned)
}

// SetGoalStatus changes a goal's lifecycle status and marks the scores of
// its linked tasks stale
func (e *Engine) SetGoalStatus(goalID string, status types.GoalStatus) (*types.Goal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.goals.SetStatus(goalID, status, e.clock.Now())
	if err != nil {
		return nil, err
	}
	e.markStaleLocked(g.TaskIDs...)
	e.dedup.Forget(goalID)
	e.saveGoal(g)
	e.logger.Debug("goal status set", "goal_id", goalID, "status", status)
	return g, nil
}

// AddGoalMilestone appends a milestone to a goal
func (e *Engine) AddGoalMilestone(goalID, milestone string) (*types.Goal, error) {
	g, err := e.goals.AddMilestone(goalID, milestone, e.clock.Now())
	if err != nil {
		return nil, err
	}
	e.saveGoal(g)
	return g, nil
}

func (e *Engine) saveGoalByID(goalID string) {
	if e.writer == nil {
		return
	}
	if g, err := e.goals.Get(goalID); err == nil {
		e.writer.SaveGoal(g)
	}
}
