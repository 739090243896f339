package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// ErrWriterClosed is returned by Flush after Close
var ErrWriterClosed = errors.New("writer closed")

// WriterConfig tunes the write-behind queue
type WriterConfig struct {
	// WriteTimeout bounds a single SaveTask or SaveGoal call
	// Default: 10 seconds
	WriteTimeout time.Duration
}

// DefaultWriterConfig returns the default writer configuration
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{WriteTimeout: 10 * time.Second}
}

// WriterStats counts write-behind activity
type WriterStats struct {
	Written   uint64
	Failed    uint64
	Coalesced uint64
}

// Writer persists entities asynchronously. Saves are queued per entity id and
// coalesced, so only the latest version of a rapidly changing task is written.
// Callers never block on storage I/O.
type Writer struct {
	store  Store
	cfg    WriterConfig
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*types.Task
	goals   map[string]*types.Goal
	prefs   *types.Preferences
	waiters []chan struct{}
	closed  bool

	wake chan struct{}
	done chan struct{}

	written   atomic.Uint64
	failed    atomic.Uint64
	coalesced atomic.Uint64
}

// NewWriter starts a write-behind writer over store
func NewWriter(store Store, cfg WriterConfig, logger *slog.Logger) *Writer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriterConfig().WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		store:  store,
		cfg:    cfg,
		logger: logger,
		tasks:  make(map[string]*types.Task),
		goals:  make(map[string]*types.Goal),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// SaveTask queues a copy of the task for persistence
func (w *Writer) SaveTask(task *types.Task) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("task save after writer closed", "task_id", task.ID)
		return
	}
	if _, ok := w.tasks[task.ID]; ok {
		w.coalesced.Add(1)
	}
	w.tasks[task.ID] = task.Clone()
	w.signalLocked()
	w.mu.Unlock()
}

// SaveGoal queues a copy of the goal for persistence
func (w *Writer) SaveGoal(goal *types.Goal) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("goal save after writer closed", "goal_id", goal.ID)
		return
	}
	if _, ok := w.goals[goal.ID]; ok {
		w.coalesced.Add(1)
	}
	w.goals[goal.ID] = goal.Clone()
	w.signalLocked()
	w.mu.Unlock()
}

// SavePreferences queues the scoring preferences when the store can hold them.
// Stores without preference support silently ignore the call.
func (w *Writer) SavePreferences(prefs types.Preferences) {
	if _, ok := w.store.(PreferencesStore); !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.prefs != nil {
		w.coalesced.Add(1)
	}
	p := prefs.Clone()
	w.prefs = &p
	w.signalLocked()
}

// Flush blocks until everything queued before the call has been written or
// ctx expires
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	ack := make(chan struct{})
	w.waiters = append(w.waiters, ack)
	w.signalLocked()
	w.mu.Unlock()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes what is still queued and stops the writer
func (w *Writer) Close(ctx context.Context) error {
	if err := w.Flush(ctx); err != nil && !errors.Is(err, ErrWriterClosed) {
		return err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.wake)
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns writer counters
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Written:   w.written.Load(),
		Failed:    w.failed.Load(),
		Coalesced: w.coalesced.Load(),
	}
}

// signalLocked wakes the worker. The caller must hold w.mu, which orders
// the send before Close closes the channel.
func (w *Writer) signalLocked() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for range w.wake {
		w.drain()
	}
	w.drain()
}

// drain writes batches until the queue is empty, then releases flush waiters
func (w *Writer) drain() {
	for {
		w.mu.Lock()
		tasks, goals, prefs := w.tasks, w.goals, w.prefs
		if len(tasks) == 0 && len(goals) == 0 && prefs == nil {
			waiters := w.waiters
			w.waiters = nil
			w.mu.Unlock()
			for _, ack := range waiters {
				close(ack)
			}
			return
		}
		w.tasks = make(map[string]*types.Task)
		w.goals = make(map[string]*types.Goal)
		w.prefs = nil
		w.mu.Unlock()

		if prefs != nil {
			ps := w.store.(PreferencesStore)
			w.write("preferences", "", func(ctx context.Context) error { return ps.SavePreferences(ctx, *prefs) })
		}
		for _, g := range goals {
			w.write("goal", g.ID, func(ctx context.Context) error { return w.store.SaveGoal(ctx, g) })
		}
		for _, t := range tasks {
			w.write("task", t.ID, func(ctx context.Context) error { return w.store.SaveTask(ctx, t) })
		}
	}
}

func (w *Writer) write(kind, id string, save func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()
	if err := save(ctx); err != nil {
		w.failed.Add(1)
		w.logger.Error("failed to persist entity", "kind", kind, "id", id, "error", err)
		return
	}
	w.written.Add(1)
}
