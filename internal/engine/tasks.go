package engine

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/taskpilot/internal/recurrence"
	"github.com/steveyegge/taskpilot/internal/types"
)

// TaskInput holds the caller-supplied fields of a new task
type TaskInput struct {
	Title           string
	Description     string
	Priority        types.PriorityLevel
	DueDate         *time.Time
	EstimatedEffort time.Duration
	Dependencies    []string
	GoalIDs         []string
	Recurrence      *types.RecurrenceRule
	Milestones      []string
}

// TaskUpdate is a partial update; nil fields are left unchanged
type TaskUpdate struct {
	Title           *string
	Description     *string
	Status          *types.Status
	Priority        *types.PriorityLevel
	DueDate         *time.Time
	ClearDueDate    bool
	EstimatedEffort *time.Duration
	Progress        *float64
	Milestones      []string
	Recurrence      *types.RecurrenceRule
	ClearRecurrence bool
}

// CompletionResult describes the side effects of completing a task
type CompletionResult struct {
	Task *types.Task
	// Unblocked lists dependents that became ready, sorted by id
	Unblocked []string
	// Successor is the next instance of a recurring task, if one was created
	Successor *types.Task
	// RecurrenceErr is set when the task's recurrence rule could not be applied
	RecurrenceErr error
}

// CreateTask validates input and inserts a new task. Unknown dependency or goal
// ids fail the whole call. A task whose dependencies are not all completed
// starts blocked.
func (e *Engine) CreateTask(input TaskInput) (*types.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	priority := input.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	t := &types.Task{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		Status:          types.StatusPending,
		Priority:        priority,
		DueDate:         cloneTime(input.DueDate),
		EstimatedEffort: input.EstimatedEffort,
		Milestones:      slices.Clone(input.Milestones),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if input.Recurrence != nil {
		rule := input.Recurrence.Clone()
		t.Recurrence = &rule
		t.RecurrenceState = types.RecurrenceActive
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	deps := dedupeIDs(input.Dependencies)
	for _, dep := range deps {
		if _, ok := e.tasks[dep]; !ok {
			return nil, types.NewNotFoundError(types.EntityTask, dep)
		}
	}
	goalIDs := dedupeIDs(input.GoalIDs)
	for _, gid := range goalIDs {
		if !e.goals.Exists(gid) {
			return nil, types.NewNotFoundError(types.EntityGoal, gid)
		}
	}

	if err := e.insertLocked(t, deps, goalIDs, now); err != nil {
		return nil, err
	}
	e.logger.Debug("task created", "task_id", t.ID, "title", t.Title, "status", t.Status)
	return t.Clone(), nil
}

// insertLocked adds a validated task to the graph and goal mapper. The task
// is new, so no edge can close a cycle and every error here is unexpected.
func (e *Engine) insertLocked(t *types.Task, deps, goalIDs []string, now time.Time) error {
	e.graph.AddNode(t.ID, t.Status)
	for _, dep := range deps {
		if err := e.graph.AddDependency(t.ID, dep); err != nil {
			e.removeNodeLocked(t.ID, t.Dependencies)
			return fmt.Errorf("failed to add dependency %s: %w", dep, err)
		}
		t.Dependencies = append(t.Dependencies, dep)
	}
	if !e.graph.IsReady(t.ID) && t.Status == types.StatusPending {
		t.Status = types.StatusBlocked
		e.graph.SetStatus(t.ID, t.Status)
	}

	e.tasks[t.ID] = t
	for _, gid := range goalIDs {
		linked, err := e.goals.Link(t.ID, gid, now)
		if err != nil {
			e.logger.Warn("failed to link new task to goal", "task_id", t.ID, "goal_id", gid, "error", err)
			continue
		}
		t.GoalIDs = append(t.GoalIDs, gid)
		if linked {
			if g, err := e.goals.Get(gid); err == nil {
				e.saveGoal(g)
			}
		}
	}

	e.revisions[t.ID]++
	e.stale[t.ID] = struct{}{}
	e.markStaleLocked(t.Dependencies...)
	e.saveTaskLocked(t)
	return nil
}

// removeNodeLocked undoes a partially inserted task. The graph keeps the
// isolated node, which is harmless because no task refers to it.
func (e *Engine) removeNodeLocked(id string, deps []string) {
	for _, dep := range deps {
		e.graph.RemoveDependency(id, dep)
	}
	delete(e.tasks, id)
}

// UpdateTask applies a partial update. Terminal tasks cannot be updated.
// Setting the status to completed behaves exactly like CompleteTask.
func (e *Engine) UpdateTask(id string, update TaskUpdate) (*types.Task, error) {
	e.mu.Lock()
	t, err := e.taskLocked(id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if t.IsTerminal() {
		e.mu.Unlock()
		return nil, types.NewValidationError("status", fmt.Sprintf("task %s is %s and can no longer be updated", id, t.Status))
	}

	now := e.clock.Now()
	next := t.Clone()
	if err := applyUpdate(next, update); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	target := next.Status
	if target == types.StatusCompleted {
		// Field changes commit with the completion; the status is set there.
		next.Status = t.Status
	}
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if target == types.StatusBlocked && e.graph.IsReady(id) {
		e.mu.Unlock()
		return nil, types.NewValidationError("status", "a task can only be blocked while a dependency is unfinished")
	}

	*t = *next
	if target == types.StatusCompleted {
		result, notes := e.completeLocked(t, now)
		e.mu.Unlock()
		e.Notify(notes)
		return result.Task, nil
	}

	e.graph.SetStatus(id, t.Status)
	if t.Status == types.StatusCancelled {
		e.markStaleLocked(t.Dependencies...)
		e.markStaleLocked(e.graph.Dependents(id)...)
		if recurrence.IsRecurring(t) {
			e.applyRecurrenceLocked(t, now)
		}
		delete(e.scores, id)
	}
	e.touchLocked(t, now)
	if t.IsTerminal() {
		delete(e.stale, id)
	}
	result := t.Clone()
	e.mu.Unlock()

	e.logger.Debug("task updated", "task_id", id, "status", result.Status)
	return result, nil
}

// applyUpdate copies the set fields of update onto t
func applyUpdate(t *types.Task, u TaskUpdate) error {
	if u.Title != nil {
		t.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.ClearDueDate {
		t.DueDate = nil
	} else if u.DueDate != nil {
		t.DueDate = cloneTime(u.DueDate)
	}
	if u.EstimatedEffort != nil {
		t.EstimatedEffort = *u.EstimatedEffort
	}
	if u.Progress != nil {
		if math.IsNaN(*u.Progress) {
			return types.NewValidationError("progress", "progress must be a number")
		}
		t.Progress = *u.Progress
	}
	if u.Milestones != nil {
		t.Milestones = slices.Clone(u.Milestones)
	}
	if u.ClearRecurrence {
		t.Recurrence = nil
		t.RecurrenceState = ""
	} else if u.Recurrence != nil {
		rule := u.Recurrence.Clone()
		t.Recurrence = &rule
		if t.RecurrenceState == "" {
			t.RecurrenceState = types.RecurrenceActive
		}
	}
	return nil
}

// CompleteTask marks a task completed, unblocks dependents whose last
// unfinished dependency this was, and regenerates recurring tasks. Completing
// an already completed task returns it unchanged. A malformed recurrence rule
// does not fail the completion; it is reported in the result and as a
// recurrence_failed notification.
func (e *Engine) CompleteTask(id string) (*CompletionResult, error) {
	e.mu.Lock()
	t, err := e.taskLocked(id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	switch t.Status {
	case types.StatusCompleted:
		result := &CompletionResult{Task: t.Clone()}
		e.mu.Unlock()
		return result, nil
	case types.StatusCancelled:
		e.mu.Unlock()
		return nil, types.NewValidationError("status", fmt.Sprintf("task %s is cancelled", id))
	}

	result, notes := e.completeLocked(t, e.clock.Now())
	e.mu.Unlock()

	e.Notify(notes)
	e.logger.Debug("task completed", "task_id", id, "unblocked", len(result.Unblocked))
	return result, nil
}

// completeLocked performs the completion of a non-terminal task
func (e *Engine) completeLocked(t *types.Task, now time.Time) (*CompletionResult, []types.Notification) {
	completedAt := now
	t.Status = types.StatusCompleted
	t.Progress = 1.0
	t.CompletedAt = &completedAt

	ready, err := e.graph.OnTaskCompleted(t.ID)
	if err != nil {
		// The graph and the task map are maintained together under e.mu.
		e.logger.Error("task missing from dependency graph", "task_id", t.ID, "error", err)
	}

	result := &CompletionResult{Unblocked: ready}
	for _, depID := range ready {
		dep := e.tasks[depID]
		if dep != nil && dep.Status == types.StatusBlocked {
			dep.Status = types.StatusPending
			e.graph.SetStatus(depID, dep.Status)
			e.touchLocked(dep, now)
		}
	}
	e.markStaleLocked(e.graph.Dependents(t.ID)...)
	e.markStaleLocked(t.Dependencies...)

	var notes []types.Notification
	if recurrence.IsRecurring(t) {
		out := e.applyRecurrenceLocked(t, now)
		switch out.State {
		case types.RecurrenceRespawned:
			result.Successor = out.Successor.Clone()
		case types.RecurrenceFailed:
			result.RecurrenceErr = out.Err
			notes = append(notes, recurrenceFailed(t, out.Err, now))
		}
	}

	e.touchLocked(t, now)
	delete(e.scores, t.ID)
	delete(e.stale, t.ID)
	result.Task = t.Clone()
	return result, notes
}

// AddDependency records that taskID depends on dependsOnID. The cycle check
// and insertion happen under the engine lock as one unit. A pending task
// gaining an unfinished dependency becomes blocked.
func (e *Engine) AddDependency(taskID, dependsOnID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.taskLocked(taskID)
	if err != nil {
		return err
	}
	if _, err := e.taskLocked(dependsOnID); err != nil {
		return err
	}
	if t.IsTerminal() {
		return types.NewValidationError("task_id", fmt.Sprintf("task %s is %s", taskID, t.Status))
	}
	if slices.Contains(t.Dependencies, dependsOnID) {
		return nil
	}
	if err := e.graph.AddDependency(taskID, dependsOnID); err != nil {
		return err
	}

	t.Dependencies = append(t.Dependencies, dependsOnID)
	if t.Status == types.StatusPending && !e.graph.IsReady(taskID) {
		t.Status = types.StatusBlocked
		e.graph.SetStatus(taskID, t.Status)
	}
	e.touchLocked(t, e.clock.Now())
	e.markStaleLocked(dependsOnID)
	e.logger.Debug("dependency added", "task_id", taskID, "depends_on", dependsOnID)
	return nil
}

// RemoveDependency deletes the edge if present. A blocked task whose
// remaining dependencies are all completed becomes pending.
func (e *Engine) RemoveDependency(taskID, dependsOnID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.taskLocked(taskID)
	if err != nil {
		return err
	}
	if !e.graph.RemoveDependency(taskID, dependsOnID) {
		return nil
	}

	if i := slices.Index(t.Dependencies, dependsOnID); i >= 0 {
		t.Dependencies = slices.Delete(t.Dependencies, i, i+1)
	}
	if t.Status == types.StatusBlocked && e.graph.IsReady(taskID) {
		t.Status = types.StatusPending
		e.graph.SetStatus(taskID, t.Status)
	}
	e.touchLocked(t, e.clock.Now())
	e.markStaleLocked(dependsOnID)
	e.logger.Debug("dependency removed", "task_id", taskID, "depends_on", dependsOnID)
	return nil
}

// GetTask returns a copy of the task
func (e *Engine) GetTask(id string) (*types.Task, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.taskLocked(id)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// ListTasks returns copies of the tasks matching filter, oldest first
func (e *Engine) ListTasks(filter types.TaskFilter) []*types.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := e.filterLocked(filter)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]*types.Task, len(matched))
	for i, t := range matched {
		out[i] = t.Clone()
	}
	return out
}

// filterLocked returns the live tasks matching filter, oldest first
func (e *Engine) filterLocked(filter types.TaskFilter) []*types.Task {
	var matched []*types.Task
	for _, t := range e.tasks {
		if e.matchesLocked(t, filter) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

func (e *Engine) matchesLocked(t *types.Task, f types.TaskFilter) bool {
	if len(f.Statuses) > 0 {
		if !slices.Contains(f.Statuses, t.Status) {
			return false
		}
	} else if t.IsTerminal() && !f.IncludeTerminal {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.GoalID != "" && !slices.Contains(t.GoalIDs, f.GoalID) {
		return false
	}
	if f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)) {
		return false
	}
	if f.ReadyOnly && (t.IsTerminal() || !e.graph.IsReady(t.ID)) {
		return false
	}
	return true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// dedupeIDs drops empty and repeated ids, keeping first occurrences in order
func dedupeIDs(ids []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortedTaskIDs(tasks map[string]*types.Task) []string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sameIDs reports whether a and b hold the same ids regardless of order
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	sort.Strings(x)
	sort.Strings(y)
	return slices.Equal(x, y)
}
