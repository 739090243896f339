// Package goals owns goal entities and derives their progress from linked tasks.
//
// The Mapper never reads tasks on its own. Callers pass a TaskLookup, and the
// owner of the tasks is responsible for calling InvalidateTask whenever a
// linked task changes so cached progress values stay correct.
package goals

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Mapper is a concurrency-safe registry of goals with a progress cache
type Mapper struct {
	mu     sync.RWMutex
	cfg    Config
	logger *slog.Logger

	goals map[string]*types.Goal
	// byTask indexes task id -> goal ids the task is linked to
	byTask map[string]map[string]struct{}
	// progress caches derived progress per goal id
	progress map[string]float64
}

// NewMapper creates an empty mapper
func NewMapper(cfg Config, logger *slog.Logger) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		cfg:      cfg,
		logger:   logger,
		goals:    make(map[string]*types.Goal),
		byTask:   make(map[string]map[string]struct{}),
		progress: make(map[string]float64),
	}, nil
}

// Config returns the mapper's risk configuration
func (m *Mapper) Config() Config {
	return m.cfg
}

// Restore inserts a previously persisted goal
func (m *Mapper) Restore(goal *types.Goal) error {
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal %s: %w", goal.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	g := goal.Clone()
	m.goals[g.ID] = g
	for _, taskID := range g.TaskIDs {
		m.index(taskID, g.ID)
	}
	delete(m.progress, g.ID)
	return nil
}

// Create adds a new active goal with no linked tasks
func (m *Mapper) Create(title, description string, goalType types.GoalType, target *time.Time, now time.Time) (*types.Goal, error) {
	goal := &types.Goal{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Type:        goalType,
		Status:      types.GoalActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if target != nil {
		t := *target
		goal.TargetDate = &t
	}
	if err := goal.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[goal.ID] = goal
	m.logger.Debug("goal created", "goal_id", goal.ID, "type", goal.Type)
	return goal.Clone(), nil
}

// Get returns a copy of the goal
func (m *Mapper) Get(id string) (*types.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, types.NewNotFoundError(types.EntityGoal, id)
	}
	return g.Clone(), nil
}

// Exists reports whether the goal is known
func (m *Mapper) Exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.goals[id]
	return ok
}

// List returns copies of all goals ordered by creation time, then id
func (m *Mapper) List() []*types.Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(*types.Goal) bool { return true })
}

// ByType returns the active goals of a type
func (m *Mapper) ByType(goalType types.GoalType) []*types.Goal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(g *types.Goal) bool {
		return g.Type == goalType && g.Status == types.GoalActive
	})
}

// Statuses returns the status of every goal keyed by id
func (m *Mapper) Statuses() map[string]types.GoalStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.GoalStatus, len(m.goals))
	for id, g := range m.goals {
		out[id] = g.Status
	}
	return out
}

// GoalsForTask returns the ids of goals the task is linked to, sorted
func (m *Mapper) GoalsForTask(taskID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.byTask[taskID]))
	for id := range m.byTask[taskID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Link connects a task to a goal. It reports whether the link is new;
// linking an already linked pair changes nothing.
// The caller must have checked that the task exists.
func (m *Mapper) Link(taskID, goalID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return false, types.NewNotFoundError(types.EntityGoal, goalID)
	}
	if g.HasTask(taskID) {
		return false, nil
	}
	g.TaskIDs = append(g.TaskIDs, taskID)
	g.UpdatedAt = now
	m.index(taskID, goalID)
	delete(m.progress, goalID)
	return true, nil
}

// Unlink removes a task from a goal and reports whether it was linked
func (m *Mapper) Unlink(taskID, goalID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return false, types.NewNotFoundError(types.EntityGoal, goalID)
	}
	i := slices.Index(g.TaskIDs, taskID)
	if i < 0 {
		return false, nil
	}
	g.TaskIDs = slices.Delete(g.TaskIDs, i, i+1)
	g.UpdatedAt = now
	if goals := m.byTask[taskID]; goals != nil {
		delete(goals, goalID)
		if len(goals) == 0 {
			delete(m.byTask, taskID)
		}
	}
	delete(m.progress, goalID)
	return true, nil
}

// SetStatus changes the goal's lifecycle status
func (m *Mapper) SetStatus(goalID string, status types.GoalStatus, now time.Time) (*types.Goal, error) {
	if !status.IsValid() {
		return nil, types.NewValidationError("status", fmt.Sprintf("invalid goal status: %s", status))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return nil, types.NewNotFoundError(types.EntityGoal, goalID)
	}
	if g.Status != status {
		m.logger.Debug("goal status changed", "goal_id", goalID, "from", g.Status, "to", status)
		g.Status = status
		g.UpdatedAt = now
	}
	return g.Clone(), nil
}

// Abandon deactivates the goal. Abandoned goals stop contributing to scoring
// and are never flagged at risk.
func (m *Mapper) Abandon(goalID string, now time.Time) (*types.Goal, error) {
	return m.SetStatus(goalID, types.GoalAbandoned, now)
}

// AddMilestone appends a milestone description to the goal
func (m *Mapper) AddMilestone(goalID, milestone string, now time.Time) (*types.Goal, error) {
	milestone = strings.TrimSpace(milestone)
	if milestone == "" {
		return nil, types.NewValidationError("milestone", "milestone is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return nil, types.NewNotFoundError(types.EntityGoal, goalID)
	}
	g.Milestones = append(g.Milestones, milestone)
	g.UpdatedAt = now
	return g.Clone(), nil
}

// InvalidateTask drops cached progress for every goal the task is linked to.
// Call it on any mutation of a task.
func (m *Mapper) InvalidateTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for goalID := range m.byTask[taskID] {
		delete(m.progress, goalID)
	}
}

// Progress returns the goal's progress, computing and caching it on a miss
func (m *Mapper) Progress(goalID string, lookup TaskLookup) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return 0, types.NewNotFoundError(types.EntityGoal, goalID)
	}
	return m.progressLocked(g, lookup), nil
}

// NeedingAttention returns active goals that are behind their projection at now
func (m *Mapper) NeedingAttention(lookup TaskLookup, now time.Time) []*types.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.collect(func(g *types.Goal) bool {
		return g.Status == types.GoalActive && m.cfg.NeedsAttention(g, m.progressLocked(g, lookup), now)
	})
}

// Overdue returns active goals whose target date has passed while
// unfinished, earliest target first
func (m *Mapper) Overdue(lookup TaskLookup, now time.Time) []*types.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()

	overdue := m.collect(func(g *types.Goal) bool {
		return g.Status == types.GoalActive && IsOverdue(g, m.progressLocked(g, lookup), now)
	})
	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].TargetDate.Before(*overdue[j].TargetDate)
	})
	return overdue
}

// ProgressByType averages the progress of active goals per goal type.
// Types without active goals are omitted.
func (m *Mapper) ProgressByType(lookup TaskLookup) map[types.GoalType]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	sums := make(map[types.GoalType]float64)
	counts := make(map[types.GoalType]int)
	for _, g := range m.goals {
		if g.Status != types.GoalActive {
			continue
		}
		sums[g.Type] += m.progressLocked(g, lookup)
		counts[g.Type]++
	}
	out := make(map[types.GoalType]float64, len(sums))
	for t, sum := range sums {
		out[t] = sum / float64(counts[t])
	}
	return out
}

func (m *Mapper) progressLocked(g *types.Goal, lookup TaskLookup) float64 {
	if p, ok := m.progress[g.ID]; ok {
		return p
	}
	p := ComputeProgress(g, lookup)
	m.progress[g.ID] = p
	return p
}

func (m *Mapper) index(taskID, goalID string) {
	goals, ok := m.byTask[taskID]
	if !ok {
		goals = make(map[string]struct{})
		m.byTask[taskID] = goals
	}
	goals[goalID] = struct{}{}
}

// collect returns clones of matching goals ordered by creation time, then id.
// The caller must hold the lock.
func (m *Mapper) collect(match func(*types.Goal) bool) []*types.Goal {
	var out []*types.Goal
	for _, g := range m.goals {
		if match(g) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
