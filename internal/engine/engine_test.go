package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/taskpilot/internal/clock"
	"github.com/steveyegge/taskpilot/internal/types"
)

var now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu    sync.Mutex
	tasks []*types.Task
	goals []*types.Goal
	saved map[string]*types.Task
	prefs *types.Preferences
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: map[string]*types.Task{}}
}

func (s *fakeStore) LoadAll(context.Context) ([]*types.Task, []*types.Goal, error) {
	return s.tasks, s.goals, nil
}

func (s *fakeStore) SaveTask(_ context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[task.ID] = task
	return nil
}

func (s *fakeStore) SaveGoal(context.Context, *types.Goal) error { return nil }

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) LoadPreferences(context.Context) (*types.Preferences, error) {
	return s.prefs, nil
}

func (s *fakeStore) SavePreferences(_ context.Context, prefs types.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = &prefs
	return nil
}

func (s *fakeStore) savedTask(id string) *types.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[id]
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []types.Notification
}

func (p *recordingPublisher) Publish(batch []types.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, batch...)
}

func (p *recordingPublisher) kinds() []types.NotificationKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.NotificationKind
	for _, n := range p.sent {
		out = append(out, n.Kind)
	}
	return out
}

type fixture struct {
	engine    *Engine
	clock     *clock.Fake
	store     *fakeStore
	publisher *recordingPublisher
}

func newFixture(t *testing.T, store *fakeStore) *fixture {
	t.Helper()
	f := &fixture{clock: clock.NewFake(now), store: store, publisher: &recordingPublisher{}}
	opts := DefaultOptions()
	opts.Clock = f.clock
	opts.Publisher = f.publisher
	if store != nil {
		opts.Store = store
	}
	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	f.engine = e
	return f
}

func (f *fixture) task(t *testing.T, title string, deps ...string) *types.Task {
	t.Helper()
	task, err := f.engine.CreateTask(TaskInput{Title: title, Dependencies: deps})
	require.NoError(t, err)
	return task
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t, nil)
	due := now.Add(48 * time.Hour)

	task, err := f.engine.CreateTask(TaskInput{
		Title:           "  Write report  ",
		DueDate:         &due,
		EstimatedEffort: 90 * time.Minute,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, types.StatusPending, task.Status)
	assert.Equal(t, types.PriorityMedium, task.Priority)
	assert.Equal(t, now, task.CreatedAt)

	_, err = f.engine.CreateTask(TaskInput{Title: ""})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = f.engine.CreateTask(TaskInput{Title: "x", Dependencies: []string{"missing"}})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.engine.CreateTask(TaskInput{Title: "x", GoalIDs: []string{"missing"}})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.engine.CreateTask(TaskInput{Title: "x", Recurrence: &types.RecurrenceRule{Frequency: types.FrequencyCustom}})
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.Len(t, f.engine.ListTasks(types.TaskFilter{}), 1)
}

func TestDependencies_BlockAndUnblock(t *testing.T) {
	f := newFixture(t, nil)
	a := f.task(t, "A")
	b := f.task(t, "B", a.ID)
	assert.Equal(t, types.StatusBlocked, b.Status, "unfinished dependency blocks a new task")

	res, err := f.engine.CompleteTask(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, res.Unblocked)
	assert.Equal(t, types.StatusCompleted, res.Task.Status)
	assert.Equal(t, 1.0, res.Task.Progress)
	require.NotNil(t, res.Task.CompletedAt)

	got, err := f.engine.GetTask(b.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, got.Status)

	again, err := f.engine.CompleteTask(a.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Unblocked, "completing twice is a no-op")
}

func TestAddDependency(t *testing.T) {
	f := newFixture(t, nil)
	a := f.task(t, "A")
	b := f.task(t, "B")

	require.NoError(t, f.engine.AddDependency(a.ID, b.ID))
	got, _ := f.engine.GetTask(a.ID)
	assert.Equal(t, types.StatusBlocked, got.Status)
	assert.Equal(t, []string{b.ID}, got.Dependencies)

	err := f.engine.AddDependency(b.ID, a.ID)
	var cycle *types.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{b.ID, a.ID, b.ID}, cycle.Path)
	got, _ = f.engine.GetTask(b.ID)
	assert.Empty(t, got.Dependencies, "rejected edge leaves state unchanged")

	assert.ErrorIs(t, f.engine.AddDependency(a.ID, a.ID), types.ErrCycle)
	assert.ErrorIs(t, f.engine.AddDependency(a.ID, "missing"), types.ErrNotFound)
	require.NoError(t, f.engine.AddDependency(a.ID, b.ID), "duplicate edge is a no-op")

	require.NoError(t, f.engine.RemoveDependency(a.ID, b.ID))
	got, _ = f.engine.GetTask(a.ID)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Empty(t, got.Dependencies)
	require.NoError(t, f.engine.RemoveDependency(a.ID, b.ID))
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t, nil)
	task := f.task(t, "A")

	f.clock.Advance(time.Hour)
	status := types.StatusInProgress
	progress := 0.4
	title := "A, renamed"
	got, err := f.engine.UpdateTask(task.ID, TaskUpdate{Title: &title, Status: &status, Progress: &progress})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, types.StatusInProgress, got.Status)
	assert.Equal(t, 0.4, got.Progress)
	assert.Equal(t, now.Add(time.Hour), got.UpdatedAt)

	bad := 1.5
	_, err = f.engine.UpdateTask(task.ID, TaskUpdate{Progress: &bad})
	assert.ErrorIs(t, err, types.ErrValidation)

	blocked := types.StatusBlocked
	_, err = f.engine.UpdateTask(task.ID, TaskUpdate{Status: &blocked})
	assert.ErrorIs(t, err, types.ErrValidation, "a ready task cannot be blocked")

	completed := types.StatusCompleted
	got, err = f.engine.UpdateTask(task.ID, TaskUpdate{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, 1.0, got.Progress)

	_, err = f.engine.UpdateTask(task.ID, TaskUpdate{Title: &title})
	assert.ErrorIs(t, err, types.ErrValidation, "terminal tasks are immutable")

	_, err = f.engine.UpdateTask("missing", TaskUpdate{})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCompleteTask_Recurring(t *testing.T) {
	f := newFixture(t, nil)
	g, err := f.engine.CreateGoal(GoalInput{Title: "Health", Type: types.GoalHealth})
	require.NoError(t, err)

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	task, err := f.engine.CreateTask(TaskInput{
		Title:      "Stretch",
		DueDate:    &due,
		GoalIDs:    []string{g.ID},
		Recurrence: &types.RecurrenceRule{Frequency: types.FrequencyDaily},
	})
	require.NoError(t, err)

	res, err := f.engine.CompleteTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Successor)
	assert.NoError(t, res.RecurrenceErr)

	s := res.Successor
	assert.NotEqual(t, task.ID, s.ID)
	assert.Equal(t, types.StatusPending, s.Status)
	assert.Equal(t, 0.0, s.Progress)
	assert.Equal(t, due.AddDate(0, 0, 1), *s.DueDate)
	assert.Equal(t, task.ID, s.SeriesID)
	assert.Equal(t, []string{g.ID}, s.GoalIDs)
	assert.Equal(t, types.RecurrenceRespawned, res.Task.RecurrenceState)
	assert.Equal(t, s.ID, res.Task.SuccessorID)

	linked, err := f.engine.GetGoal(g.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{task.ID, s.ID}, linked.TaskIDs)

	progress, err := f.engine.GoalProgress(g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, progress)
}

func TestCompleteTask_MonthlySeriesKeepsAnchorDay(t *testing.T) {
	f := newFixture(t, nil)
	f.clock.Set(time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC))

	due := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	task, err := f.engine.CreateTask(TaskInput{
		Title:      "Pay rent",
		DueDate:    &due,
		Recurrence: &types.RecurrenceRule{Frequency: types.FrequencyMonthly},
	})
	require.NoError(t, err)

	f.clock.Set(time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC))
	first, err := f.engine.CompleteTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Successor)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), *first.Successor.DueDate)

	f.clock.Set(time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC))
	second, err := f.engine.CompleteTask(first.Successor.ID)
	require.NoError(t, err)
	require.NotNil(t, second.Successor)
	assert.Equal(t, time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC), *second.Successor.DueDate)
	assert.Equal(t, task.ID, second.Successor.SeriesID)
}

func TestCancelRecurringTask_EndsSeries(t *testing.T) {
	f := newFixture(t, nil)
	task, err := f.engine.CreateTask(TaskInput{Title: "Water plants", Recurrence: &types.RecurrenceRule{Frequency: types.FrequencyWeekly}})
	require.NoError(t, err)

	cancelled := types.StatusCancelled
	got, err := f.engine.UpdateTask(task.ID, TaskUpdate{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, types.RecurrenceCancelled, got.RecurrenceState)
	assert.Empty(t, got.SuccessorID)
	assert.Len(t, f.engine.ListTasks(types.TaskFilter{IncludeTerminal: true}), 1)
}

func TestCompleteTask_MalformedStoredRule(t *testing.T) {
	store := newFakeStore()
	store.tasks = []*types.Task{{
		ID: "t1", Title: "Backup", Status: types.StatusInProgress, Priority: types.PriorityHigh,
		Recurrence:      &types.RecurrenceRule{Frequency: "hourly"},
		RecurrenceState: types.RecurrenceActive,
		CreatedAt:       now, UpdatedAt: now,
	}}
	f := newFixture(t, store)

	res, err := f.engine.CompleteTask("t1")
	require.NoError(t, err, "completion commits even when regeneration fails")
	assert.Equal(t, types.StatusCompleted, res.Task.Status)
	assert.Error(t, res.RecurrenceErr)
	assert.Nil(t, res.Successor)
	assert.Equal(t, types.RecurrenceFailed, res.Task.RecurrenceState)
	assert.Equal(t, []types.NotificationKind{types.NotifyRecurrenceFailed}, f.publisher.kinds())
}

func TestLoad_RepairsStoredState(t *testing.T) {
	completedAt := now.Add(-time.Hour)
	due := now.Add(-2 * time.Hour)
	store := newFakeStore()
	store.tasks = []*types.Task{
		{ID: "a", Title: "A", Status: types.StatusCompleted, Priority: types.PriorityLow, Progress: 1, CompletedAt: &completedAt},
		{ID: "b", Title: "B", Status: types.StatusBlocked, Priority: types.PriorityLow, Dependencies: []string{"a"}},
		{ID: "c", Title: "C", Status: types.StatusPending, Priority: types.PriorityLow, Dependencies: []string{"gone"}, GoalIDs: []string{"g1"}},
		{
			ID: "d", Title: "D", Status: types.StatusCompleted, Priority: types.PriorityLow, Progress: 1,
			CompletedAt: &completedAt, DueDate: &due,
			Recurrence: &types.RecurrenceRule{Frequency: types.FrequencyDaily}, RecurrenceState: types.RecurrenceActive,
		},
		{ID: "bad", Title: "", Status: types.StatusPending, Priority: types.PriorityLow},
	}
	store.goals = []*types.Goal{{ID: "g1", Title: "G", Type: types.GoalProject, Status: types.GoalActive}}

	f := newFixture(t, store)

	b, err := f.engine.GetTask("b")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, b.Status, "blocked task with finished dependencies is unblocked")

	c, err := f.engine.GetTask("c")
	require.NoError(t, err)
	assert.Empty(t, c.Dependencies, "dangling dependency dropped")
	assert.Equal(t, []string{"g1"}, c.GoalIDs)
	g, err := f.engine.GetGoal("g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, g.TaskIDs, "task-side goal link restored on the goal")

	_, err = f.engine.GetTask("bad")
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NotNil(t, store.savedTask("b"))
	require.NotNil(t, store.savedTask("c"))

	assert.Equal(t, 1, f.engine.PendingRecurrences())
	assert.Empty(t, f.engine.ProcessPendingRecurrences())
	assert.Zero(t, f.engine.PendingRecurrences())

	d, err := f.engine.GetTask("d")
	require.NoError(t, err)
	require.NotEmpty(t, d.SuccessorID)
	successor, err := f.engine.GetTask(d.SuccessorID)
	require.NoError(t, err)
	assert.True(t, successor.DueDate.After(now))
}

func TestGoals(t *testing.T) {
	f := newFixture(t, nil)
	target := now.Add(10 * 24 * time.Hour)
	g, err := f.engine.CreateGoal(GoalInput{Title: "Launch", Type: types.GoalProject, TargetDate: &target})
	require.NoError(t, err)

	progress, err := f.engine.GoalProgress(g.ID)
	require.NoError(t, err)
	assert.Zero(t, progress, "goal without tasks has no progress")

	a := f.task(t, "A")
	b := f.task(t, "B")
	require.NoError(t, f.engine.LinkTaskToGoal(a.ID, g.ID))
	require.NoError(t, f.engine.LinkTaskToGoal(a.ID, g.ID))
	require.NoError(t, f.engine.LinkTaskToGoal(b.ID, g.ID))
	assert.ErrorIs(t, f.engine.LinkTaskToGoal("missing", g.ID), types.ErrNotFound)
	assert.ErrorIs(t, f.engine.LinkTaskToGoal(a.ID, "missing"), types.ErrNotFound)

	got, _ := f.engine.GetTask(a.ID)
	assert.Equal(t, []string{g.ID}, got.GoalIDs)

	_, err = f.engine.CompleteTask(a.ID)
	require.NoError(t, err)
	progress, err = f.engine.GoalProgress(g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, progress)

	_, err = f.engine.CompleteTask(b.ID)
	require.NoError(t, err)
	progress, err = f.engine.GoalProgress(g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, progress)

	require.NoError(t, f.engine.UnlinkTaskFromGoal(b.ID, g.ID))
	require.NoError(t, f.engine.UnlinkTaskFromGoal(b.ID, g.ID))
	got, _ = f.engine.GetTask(b.ID)
	assert.Empty(t, got.GoalIDs)

	abandoned, err := f.engine.AbandonGoal(g.ID)
	require.NoError(t, err)
	assert.Equal(t, types.GoalAbandoned, abandoned.Status)

	_, err = f.engine.AddGoalMilestone(g.ID, "beta shipped")
	require.NoError(t, err)
	assert.Len(t, f.engine.ListGoals(), 1)
}

func TestGoalsNeedingAttention(t *testing.T) {
	f := newFixture(t, nil)
	target := now.Add(2 * 24 * time.Hour)
	f.clock.Set(now.Add(-8 * 24 * time.Hour))
	g, err := f.engine.CreateGoal(GoalInput{Title: "Exam", Type: types.GoalLearning, TargetDate: &target})
	require.NoError(t, err)
	task := f.task(t, "Study")
	require.NoError(t, f.engine.LinkTaskToGoal(task.ID, g.ID))

	f.clock.Set(now)
	behind := f.engine.GoalsNeedingAttention()
	require.Len(t, behind, 1)
	assert.Equal(t, g.ID, behind[0].ID)

	_, err = f.engine.CompleteTask(task.ID)
	require.NoError(t, err)
	assert.Empty(t, f.engine.GoalsNeedingAttention())
}

func TestRankTasks(t *testing.T) {
	f := newFixture(t, nil)
	soon := now.Add(2 * time.Hour)
	later := now.Add(20 * 24 * time.Hour)

	urgent, err := f.engine.CreateTask(TaskInput{Title: "urgent", DueDate: &soon, EstimatedEffort: 20 * time.Minute})
	require.NoError(t, err)
	relaxed, err := f.engine.CreateTask(TaskInput{Title: "relaxed", DueDate: &later, EstimatedEffort: 10 * time.Hour})
	require.NoError(t, err)
	blocked := f.task(t, "blocked", relaxed.ID)

	ranked, err := f.engine.RankTasks(RankOptions{})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, urgent.ID, ranked[0].Task.ID)

	again, err := f.engine.RankTasks(RankOptions{})
	require.NoError(t, err)
	for i := range ranked {
		assert.Equal(t, ranked[i].Task.ID, again[i].Task.ID, "ranking is deterministic")
	}

	ready, err := f.engine.RankTasks(RankOptions{Filter: types.TaskFilter{ReadyOnly: true}})
	require.NoError(t, err)
	assert.Len(t, ready, 2)
	for _, r := range ready {
		assert.NotEqual(t, blocked.ID, r.Task.ID)
	}

	limited, err := f.engine.RankTasks(RankOptions{Filter: types.TaskFilter{Limit: 1}})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, urgent.ID, limited[0].Task.ID)

	score, fresh, ok := f.engine.Score(urgent.ID)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, ranked[0].Score.Composite, score.Composite)

	bad := types.DefaultPreferences()
	bad.Weights.Urgency = 0.3
	_, err = f.engine.RankTasks(RankOptions{Preferences: &bad})
	assert.ErrorIs(t, err, types.ErrConfig)
}

func TestStoreScore_DiscardsOutdatedRevision(t *testing.T) {
	f := newFixture(t, nil)
	task := f.task(t, "A")

	snap := f.engine.Snapshot()
	rev := snap.Revisions[task.ID]
	score, err := snap.Scorer.Score(snap.Tasks[0], snap.Graph, snap.GoalStatuses, snap.At)
	require.NoError(t, err)

	title := "changed"
	_, err = f.engine.UpdateTask(task.ID, TaskUpdate{Title: &title})
	require.NoError(t, err)

	assert.False(t, f.engine.StoreScore(score, rev))
	_, _, ok := f.engine.Score(task.ID)
	assert.False(t, ok)

	assert.True(t, f.engine.StoreScore(score, rev+1))
	assert.Zero(t, f.engine.StaleScores())
}

func TestSetPreferences(t *testing.T) {
	store := newFakeStore()
	f := newFixture(t, store)
	f.task(t, "A")

	bad := types.DefaultPreferences()
	bad.Weights = types.Weights{Urgency: 0.3, Effort: 0.2, Focus: 0.2, Dependency: 0.1, Goal: 0.1}
	err := f.engine.SetPreferences(bad)
	var cfgErr *types.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "weights", cfgErr.Field)
	assert.Equal(t, types.DefaultWeights(), f.engine.Preferences().Weights)

	prefs := types.DefaultPreferences()
	prefs.WorkHoursStart = types.NewTimeOfDay(7, 30)
	require.NoError(t, f.engine.SetPreferences(prefs))
	assert.Equal(t, types.NewTimeOfDay(7, 30), f.engine.Preferences().WorkHoursStart)
	assert.Equal(t, 1, f.engine.StaleScores())

	require.NoError(t, f.engine.Flush(context.Background()))
	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotNil(t, store.prefs)
	assert.Equal(t, types.NewTimeOfDay(7, 30), store.prefs.WorkHoursStart)
}

func TestNotify_DedupeClearedByMutation(t *testing.T) {
	f := newFixture(t, nil)
	task := f.task(t, "A")
	overdue := types.Notification{Kind: types.NotifyOverdue, EntityID: task.ID, GeneratedAt: now}

	assert.Len(t, f.engine.Notify([]types.Notification{overdue}), 1)
	assert.Empty(t, f.engine.Notify([]types.Notification{overdue}))

	progress := 0.2
	_, err := f.engine.UpdateTask(task.ID, TaskUpdate{Progress: &progress})
	require.NoError(t, err)
	assert.Len(t, f.engine.Notify([]types.Notification{overdue}), 1)
	assert.Len(t, f.publisher.kinds(), 2)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t, nil)
	past := now.Add(-time.Hour)
	overdue, err := f.engine.CreateTask(TaskInput{Title: "late", DueDate: &past})
	require.NoError(t, err)
	done := f.task(t, "done")
	f.task(t, "waiting", overdue.ID)
	_, err = f.engine.CompleteTask(done.ID)
	require.NoError(t, err)
	_, err = f.engine.CreateGoal(GoalInput{Title: "G", Type: types.GoalPersonal})
	require.NoError(t, err)

	s := f.engine.Statistics()
	assert.Equal(t, 3, s.TotalTasks)
	assert.Equal(t, 1, s.PendingTasks)
	assert.Equal(t, 1, s.BlockedTasks)
	assert.Equal(t, 1, s.CompletedTasks)
	assert.Equal(t, 1, s.OverdueTasks)
	assert.Equal(t, 1, s.ReadyTasks)
	assert.InDelta(t, 1.0/3.0, s.CompletionRate, 1e-9)
	assert.Equal(t, 1, s.ActiveGoals)
}

func TestPersistenceIsWriteBehind(t *testing.T) {
	store := newFakeStore()
	f := newFixture(t, store)
	task := f.task(t, "A")

	require.NoError(t, f.engine.Flush(context.Background()))
	saved := store.savedTask(task.ID)
	require.NotNil(t, saved)
	assert.Equal(t, "A", saved.Title)
}
