// Package engine is the single owner of tasks, the dependency graph and the
// goal mapper. Every mutation goes through an Engine, which keeps the three in
// agreement, invalidates derived state, and hands persistence and
// notifications to asynchronous collaborators.
//
// Lock ordering: Engine.mu is always acquired before the graph or goal mapper
// locks. The graph and mapper never call back into the engine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/steveyegge/taskpilot/internal/clock"
	"github.com/steveyegge/taskpilot/internal/deduplication"
	"github.com/steveyegge/taskpilot/internal/goals"
	"github.com/steveyegge/taskpilot/internal/graph"
	"github.com/steveyegge/taskpilot/internal/priorities"
	"github.com/steveyegge/taskpilot/internal/recurrence"
	"github.com/steveyegge/taskpilot/internal/storage"
	"github.com/steveyegge/taskpilot/internal/types"
)

// Publisher receives notifications that survived deduplication.
// *notify.Dispatcher implements it.
type Publisher interface {
	Publish(batch []types.Notification)
}

// Options configures a new Engine. Only Preferences must be valid; every
// collaborator is optional.
type Options struct {
	// Store is loaded once at startup and then written through a write-behind Writer.
	// Nil keeps everything in memory.
	Store  storage.Store
	Writer storage.WriterConfig

	// Publisher receives deduplicated notifications. Nil drops them.
	Publisher Publisher

	Clock  clock.Clock
	Logger *slog.Logger

	Preferences types.Preferences
	Goals       goals.Config
	Dedup       deduplication.Config
}

// DefaultOptions returns in-memory options with default preferences
func DefaultOptions() Options {
	return Options{
		Writer:      storage.DefaultWriterConfig(),
		Preferences: types.DefaultPreferences(),
		Goals:       goals.DefaultConfig(),
		Dedup:       deduplication.DefaultConfig(),
	}
}

// Engine owns all task and goal state
type Engine struct {
	mu sync.RWMutex

	clock  clock.Clock
	logger *slog.Logger

	tasks map[string]*types.Task
	// revisions increments on every mutation of a task; maintenance uses it
	// to discard results computed from an outdated snapshot
	revisions map[string]uint64
	scores    map[string]types.PriorityScore
	// stale marks tasks whose cached score no longer reflects their inputs
	stale map[string]struct{}
	// pendingRecurrence holds completed recurring tasks awaiting regeneration
	pendingRecurrence []string

	graph      *graph.Graph
	goals      *goals.Mapper
	scorer     *priorities.Scorer
	recurrence *recurrence.Engine
	dedup      *deduplication.Deduplicator

	store     storage.Store
	writer    *storage.Writer
	publisher Publisher
}

// New creates an engine and loads everything the store holds. Invalid stored
// records are skipped with a warning rather than failing startup.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	scorer, err := priorities.NewScorer(opts.Preferences)
	if err != nil {
		return nil, err
	}
	mapper, err := goals.NewMapper(opts.Goals, opts.Logger)
	if err != nil {
		return nil, err
	}
	dedup, err := deduplication.New(opts.Dedup)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		clock:      opts.Clock,
		logger:     opts.Logger,
		tasks:      make(map[string]*types.Task),
		revisions:  make(map[string]uint64),
		scores:     make(map[string]types.PriorityScore),
		stale:      make(map[string]struct{}),
		graph:      graph.New(),
		goals:      mapper,
		scorer:     scorer,
		recurrence: recurrence.NewEngine(opts.Logger),
		dedup:      dedup,
		store:      opts.Store,
		publisher:  opts.Publisher,
	}

	if opts.Store != nil {
		if err := e.load(ctx, opts.Store); err != nil {
			return nil, err
		}
		e.writer = storage.NewWriter(opts.Store, opts.Writer, opts.Logger)
	}
	return e, nil
}

// load restores persisted state and repairs anything that violates the
// engine's invariants. The writer does not exist yet, so repaired tasks are
// saved directly.
func (e *Engine) load(ctx context.Context, store storage.Store) error {
	tasks, goalList, err := store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	if ps, ok := store.(storage.PreferencesStore); ok {
		prefs, err := ps.LoadPreferences(ctx)
		if err != nil {
			return fmt.Errorf("failed to load preferences: %w", err)
		}
		if prefs != nil {
			scorer, err := priorities.NewScorer(*prefs)
			if err != nil {
				e.logger.Warn("ignoring stored preferences", "error", err)
			} else {
				e.scorer = scorer
			}
		}
	}

	for _, t := range tasks {
		if err := validateStored(t); err != nil {
			e.logger.Warn("skipping invalid stored task", "task_id", t.ID, "error", err)
			continue
		}
		e.tasks[t.ID] = t
		e.graph.AddNode(t.ID, t.Status)
	}
	for _, g := range goalList {
		if err := e.goals.Restore(g); err != nil {
			e.logger.Warn("skipping invalid stored goal", "goal_id", g.ID, "error", err)
		}
	}

	now := e.clock.Now()
	repaired := make(map[string]struct{})
	for _, id := range sortedTaskIDs(e.tasks) {
		t := e.tasks[id]

		kept := t.Dependencies[:0]
		for _, dep := range t.Dependencies {
			if err := e.graph.AddDependency(t.ID, dep); err != nil {
				e.logger.Warn("dropping stored dependency", "task_id", t.ID, "depends_on", dep, "error", err)
				repaired[t.ID] = struct{}{}
				continue
			}
			kept = append(kept, dep)
		}
		t.Dependencies = kept

		for _, gid := range t.GoalIDs {
			if !e.goals.Exists(gid) {
				continue
			}
			if _, err := e.goals.Link(t.ID, gid, now); err != nil {
				e.logger.Warn("failed to restore goal link", "task_id", t.ID, "goal_id", gid, "error", err)
			}
		}
		if linked := e.goals.GoalsForTask(t.ID); !sameIDs(linked, t.GoalIDs) {
			t.GoalIDs = linked
			repaired[t.ID] = struct{}{}
		}
	}

	for _, id := range sortedTaskIDs(e.tasks) {
		t := e.tasks[id]
		if t.Status == types.StatusBlocked && e.graph.IsReady(id) {
			t.Status = types.StatusPending
			e.graph.SetStatus(id, t.Status)
			repaired[id] = struct{}{}
		}
		if t.IsTerminal() && recurrence.IsRecurring(t) {
			e.pendingRecurrence = append(e.pendingRecurrence, id)
		}
		if !t.IsTerminal() {
			e.stale[id] = struct{}{}
		}
	}

	if cycle := e.graph.DetectCycles(); cycle != nil {
		e.logger.Error("dependency cycle found after load", "path", cycle)
	}

	for id := range repaired {
		if err := store.SaveTask(ctx, e.tasks[id]); err != nil {
			return fmt.Errorf("failed to save repaired task %s: %w", id, err)
		}
	}

	e.logger.Info("engine state loaded",
		"tasks", len(e.tasks),
		"goals", len(goalList),
		"repaired", len(repaired),
		"pending_recurrences", len(e.pendingRecurrence))
	return nil
}

// validateStored checks a task read from storage. A malformed recurrence rule
// is tolerated so the task stays usable; completing it reports the rule.
func validateStored(t *types.Task) error {
	if t.Recurrence == nil || t.Recurrence.Validate() == nil {
		return t.Validate()
	}
	check := *t
	check.Recurrence = nil
	return check.Validate()
}

// Flush waits until every queued write has reached the store
func (e *Engine) Flush(ctx context.Context) error {
	if e.writer == nil {
		return nil
	}
	return e.writer.Flush(ctx)
}

// Close flushes pending writes and closes the store
func (e *Engine) Close(ctx context.Context) error {
	if e.writer == nil {
		return nil
	}
	if err := e.writer.Close(ctx); err != nil {
		return fmt.Errorf("failed to flush writes: %w", err)
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

// Now returns the engine clock's current time
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Logger returns the engine's logger
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Notify deduplicates batch against the rolling window and publishes what
// remains. It returns the admitted notifications.
func (e *Engine) Notify(batch []types.Notification) []types.Notification {
	if len(batch) == 0 {
		return nil
	}
	admitted, stats := e.dedup.Admit(batch, e.clock.Now())
	if stats.Suppressed > 0 || stats.Evicted > 0 {
		e.logger.Debug("notifications deduplicated",
			"admitted", stats.Admitted, "suppressed", stats.Suppressed, "evicted", stats.Evicted)
	}
	if len(admitted) > 0 && e.publisher != nil {
		e.publisher.Publish(admitted)
	}
	return admitted
}

// touchLocked records a mutation of task: it bumps the revision, marks the
// score stale, invalidates goal progress, clears dedupe entries and queues
// the task for saving. The caller must hold e.mu.
func (e *Engine) touchLocked(t *types.Task, now time.Time) {
	t.UpdatedAt = now
	e.revisions[t.ID]++
	e.stale[t.ID] = struct{}{}
	e.goals.InvalidateTask(t.ID)
	e.dedup.Forget(t.ID)
	e.saveTaskLocked(t)
}

// markStaleLocked flags scores whose inputs changed without the task itself changing
func (e *Engine) markStaleLocked(ids ...string) {
	for _, id := range ids {
		if t, ok := e.tasks[id]; ok && !t.IsTerminal() {
			e.stale[id] = struct{}{}
		}
	}
}

func (e *Engine) saveTaskLocked(t *types.Task) {
	if e.writer != nil {
		e.writer.SaveTask(t)
	}
}

func (e *Engine) saveGoal(g *types.Goal) {
	if e.writer != nil {
		e.writer.SaveGoal(g)
	}
}

// lookupLocked adapts the task map to goals.TaskLookup. The caller must hold e.mu.
func (e *Engine) lookupLocked(id string) (*types.Task, bool) {
	t, ok := e.tasks[id]
	return t, ok
}

func (e *Engine) taskLocked(id string) (*types.Task, error) {
	t, ok := e.tasks[id]
	if !ok {
		return nil, types.NewNotFoundError(types.EntityTask, id)
	}
	return t, nil
}
