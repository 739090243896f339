package priorities

import (
	"fmt"
	"sort"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Scorer binds a validated set of preferences to the scoring functions
type Scorer struct {
	prefs types.Preferences
}

// NewScorer validates the preferences and returns a scorer that uses them.
// Weights that are negative or do not sum to 1.0 are a ConfigError.
func NewScorer(prefs types.Preferences) (*Scorer, error) {
	if err := prefs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring preferences: %w", err)
	}
	return &Scorer{prefs: prefs.Clone()}, nil
}

// Preferences returns a copy of the scorer's preferences
func (s *Scorer) Preferences() types.Preferences {
	return s.prefs.Clone()
}

// Score computes the score of one task
func (s *Scorer) Score(task *types.Task, snap DependencySnapshot, goals GoalStatuses, now time.Time) (types.PriorityScore, error) {
	return Compute(task, s.prefs, snap, goals, now)
}

// Rank scores every task and returns them in ranking order. The first task
// that fails to score aborts the ranking.
func (s *Scorer) Rank(tasks []*types.Task, snap DependencySnapshot, goals GoalStatuses, now time.Time) ([]types.RankedTask, error) {
	ranked := make([]types.RankedTask, 0, len(tasks))
	for _, task := range tasks {
		score, err := s.Score(task, snap, goals, now)
		if err != nil {
			return nil, fmt.Errorf("failed to score task %s: %w", task.ID, err)
		}
		ranked = append(ranked, types.RankedTask{Task: task, Score: score})
	}
	Sort(ranked)
	return ranked, nil
}

// Sort orders ranked tasks in place: highest composite first, then earliest
// due date (tasks without one last), then lowest estimated effort, then id.
func Sort(ranked []types.RankedTask) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
}

// Less reports whether a ranks ahead of b
func Less(a, b types.RankedTask) bool {
	if a.Score.Composite != b.Score.Composite {
		return a.Score.Composite > b.Score.Composite
	}

	ad, bd := a.Task.DueDate, b.Task.DueDate
	switch {
	case ad != nil && bd == nil:
		return true
	case ad == nil && bd != nil:
		return false
	case ad != nil && bd != nil && !ad.Equal(*bd):
		return ad.Before(*bd)
	}

	if a.Task.EstimatedEffort != b.Task.EstimatedEffort {
		return a.Task.EstimatedEffort < b.Task.EstimatedEffort
	}
	return a.Task.ID < b.Task.ID
}
