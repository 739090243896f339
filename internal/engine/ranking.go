package engine

import (
	"time"

	"github.com/steveyegge/taskpilot/internal/goals"
	"github.com/steveyegge/taskpilot/internal/graph"
	"github.com/steveyegge/taskpilot/internal/priorities"
	"github.com/steveyegge/taskpilot/internal/types"
)

// RankOptions narrows and configures a ranking
type RankOptions struct {
	Filter types.TaskFilter
	// Preferences overrides the configured preferences for this ranking only.
	// Scores computed with an override are not cached.
	Preferences *types.Preferences
}

// Snapshot is a consistent, deep-copied view of engine state taken under the
// engine lock. Nothing in it aliases live state.
type Snapshot struct {
	At    time.Time
	Tasks []*types.Task
	Goals []*types.Goal
	// Revisions holds each task's revision at snapshot time
	Revisions    map[string]uint64
	Graph        *graph.Snapshot
	GoalStatuses priorities.GoalStatuses
	Scorer       *priorities.Scorer
	GoalConfig   goals.Config
}

// Lookup resolves task ids against the snapshot's tasks
func (s *Snapshot) Lookup() goals.TaskLookup {
	byID := make(map[string]*types.Task, len(s.Tasks))
	for _, t := range s.Tasks {
		byID[t.ID] = t
	}
	return func(id string) (*types.Task, bool) {
		t, ok := byID[id]
		return t, ok
	}
}

// Snapshot captures all tasks and goals for background work
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked(types.TaskFilter{IncludeTerminal: true})
}

func (e *Engine) snapshotLocked(filter types.TaskFilter) *Snapshot {
	matched := e.filterLocked(filter)
	snap := &Snapshot{
		At:           e.clock.Now(),
		Tasks:        make([]*types.Task, len(matched)),
		Goals:        e.goals.List(),
		Revisions:    make(map[string]uint64, len(matched)),
		Graph:        e.graph.Snapshot(),
		GoalStatuses: e.goals.Statuses(),
		Scorer:       e.scorer,
		GoalConfig:   e.goals.Config(),
	}
	for i, t := range matched {
		snap.Tasks[i] = t.Clone()
		snap.Revisions[t.ID] = e.revisions[t.ID]
	}
	return snap
}

// RankTasks scores the matching tasks at the current instant and returns them
// in ranking order. By default only non-terminal tasks are ranked.
//
// Scoring runs outside the engine lock against a snapshot. Fresh scores are
// written back to the score cache unless the task changed in the meantime.
func (e *Engine) RankTasks(opts RankOptions) ([]types.RankedTask, error) {
	e.mu.RLock()
	filter := opts.Filter
	limit := filter.Limit
	filter.Limit = 0
	snap := e.snapshotLocked(filter)
	e.mu.RUnlock()

	scorer := snap.Scorer
	if opts.Preferences != nil {
		override, err := priorities.NewScorer(*opts.Preferences)
		if err != nil {
			return nil, err
		}
		scorer = override
	}

	ranked, err := scorer.Rank(snap.Tasks, snap.Graph, snap.GoalStatuses, snap.At)
	if err != nil {
		return nil, err
	}
	if opts.Preferences == nil {
		for _, r := range ranked {
			e.StoreScore(r.Score, snap.Revisions[r.Task.ID])
		}
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// StoreScore caches a score computed from a snapshot. The score is discarded,
// and false returned, when the task was mutated after the snapshot was taken
// or has become terminal.
func (e *Engine) StoreScore(score types.PriorityScore, revision uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.tasks[score.TaskID]
	if !ok || t.IsTerminal() || e.revisions[score.TaskID] != revision {
		return false
	}
	e.scores[score.TaskID] = score
	delete(e.stale, score.TaskID)
	scoredAt := score.ComputedAt
	t.LastScoredAt = &scoredAt
	return true
}

// Score returns the cached score of a task and whether it is current.
// A cached score is kept after a failed rescoring but reported as stale.
func (e *Engine) Score(taskID string) (score types.PriorityScore, fresh bool, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	score, ok = e.scores[taskID]
	if !ok {
		return types.PriorityScore{}, false, false
	}
	_, stale := e.stale[taskID]
	return score, !stale, true
}

// StaleScores returns the number of non-terminal tasks whose score needs recomputing
func (e *Engine) StaleScores() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.stale)
}

// Preferences returns the configured scoring preferences
func (e *Engine) Preferences() types.Preferences {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scorer.Preferences()
}

// SetPreferences validates and installs new scoring preferences. Every cached
// score becomes stale. Invalid preferences are a ConfigError and leave the
// current ones in place.
func (e *Engine) SetPreferences(prefs types.Preferences) error {
	scorer, err := priorities.NewScorer(prefs)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.scorer = scorer
	for id, t := range e.tasks {
		if !t.IsTerminal() {
			e.stale[id] = struct{}{}
		}
	}
	if e.writer != nil {
		e.writer.SavePreferences(prefs)
	}
	e.logger.Info("scoring preferences updated",
		"work_hours_start", prefs.WorkHoursStart.String(),
		"work_hours_end", prefs.WorkHoursEnd.String(),
		"focus_windows", len(prefs.FocusWindows))
	return nil
}

// Statistics returns aggregate task metrics
func (e *Engine) Statistics() types.Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.clock.Now()
	var s types.Statistics
	for id, t := range e.tasks {
		s.TotalTasks++
		switch t.Status {
		case types.StatusPending:
			s.PendingTasks++
		case types.StatusInProgress:
			s.InProgressTasks++
		case types.StatusBlocked:
			s.BlockedTasks++
		case types.StatusCompleted:
			s.CompletedTasks++
		case types.StatusCancelled:
			s.CancelledTasks++
		}
		if t.IsOverdue(now) {
			s.OverdueTasks++
		}
		if !t.IsTerminal() && e.graph.IsReady(id) {
			s.ReadyTasks++
		}
	}
	if s.TotalTasks > 0 {
		s.CompletionRate = float64(s.CompletedTasks) / float64(s.TotalTasks)
	}
	for _, status := range e.goals.Statuses() {
		if status == types.GoalActive {
			s.ActiveGoals++
		}
	}
	return s
}
