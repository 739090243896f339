package engine

import (
	"fmt"
	"time"

	"github.com/steveyegge/taskpilot/internal/recurrence"
	"github.com/steveyegge/taskpilot/internal/types"
)

// applyRecurrenceLocked runs the recurrence engine for a terminal recurring
// task and commits the outcome: the state on t, and for a respawn the
// successor inserted into the graph and linked to t's goals. The caller saves t.
func (e *Engine) applyRecurrenceLocked(t *types.Task, now time.Time) recurrence.Outcome {
	out := e.recurrence.Process(t, now)
	if out.State == "" {
		return out
	}
	t.RecurrenceState = out.State
	if out.State != types.RecurrenceRespawned {
		return out
	}

	s := out.Successor
	var deps []string
	for _, dep := range s.Dependencies {
		if _, ok := e.tasks[dep]; ok {
			deps = append(deps, dep)
		}
	}
	var goalIDs []string
	for _, gid := range s.GoalIDs {
		if e.goals.Exists(gid) {
			goalIDs = append(goalIDs, gid)
		}
	}
	s.Dependencies, s.GoalIDs = nil, nil

	if err := e.insertLocked(s, deps, goalIDs, now); err != nil {
		e.logger.Error("failed to insert recurring successor", "task_id", t.ID, "error", err)
		t.RecurrenceState = types.RecurrenceFailed
		return recurrence.Outcome{State: types.RecurrenceFailed, Err: err}
	}
	t.SuccessorID = s.ID
	e.logger.Info("recurring task respawned", "task_id", t.ID, "successor_id", s.ID, "due", s.DueDate)
	return out
}

// recurrenceFailed builds the notification for a rule that could not be applied
func recurrenceFailed(t *types.Task, err error, now time.Time) types.Notification {
	return types.Notification{
		Kind:        types.NotifyRecurrenceFailed,
		EntityID:    t.ID,
		GeneratedAt: now,
		Message:     fmt.Sprintf("could not schedule the next %q: %v", t.Title, err),
	}
}

// ProcessPendingRecurrences regenerates queued recurring tasks that completed
// without being processed, such as completions restored from storage. It
// returns recurrence_failed notifications for the caller to publish.
func (e *Engine) ProcessPendingRecurrences() []types.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pendingRecurrence) == 0 {
		return nil
	}
	now := e.clock.Now()
	queue := e.pendingRecurrence
	e.pendingRecurrence = nil

	var notes []types.Notification
	for _, id := range queue {
		t, ok := e.tasks[id]
		if !ok || !t.IsTerminal() || !recurrence.IsRecurring(t) {
			continue
		}
		out := e.applyRecurrenceLocked(t, now)
		if out.State == types.RecurrenceFailed {
			notes = append(notes, recurrenceFailed(t, out.Err, now))
		}
		e.revisions[t.ID]++
		e.saveTaskLocked(t)
	}
	return notes
}

// PendingRecurrences returns the number of queued recurring completions
func (e *Engine) PendingRecurrences() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pendingRecurrence)
}
