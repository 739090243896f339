// Package maintenance runs the periodic background cycle that keeps scores,
// goal risk and recurring tasks current and emits notifications.
//
// A cycle works on a snapshot taken from the engine and never holds the
// engine lock while it runs. Results are written back per task, and the
// engine discards any result for a task mutated after the snapshot.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/taskpilot/internal/engine"
	"github.com/steveyegge/taskpilot/internal/goals"
	"github.com/steveyegge/taskpilot/internal/types"
)

// ErrCycleInProgress is returned when a cycle is requested while one is running
var ErrCycleInProgress = errors.New("maintenance cycle already in progress")

// Engine is the part of *engine.Engine the scheduler drives
type Engine interface {
	Now() time.Time
	Snapshot() *engine.Snapshot
	StoreScore(score types.PriorityScore, revision uint64) bool
	PendingRecurrences() int
	ProcessPendingRecurrences() []types.Notification
	Notify(batch []types.Notification) []types.Notification
}

// scoreFunc computes one task's score from a snapshot
type scoreFunc func(snap *engine.Snapshot, task *types.Task) (types.PriorityScore, error)

func snapshotScore(snap *engine.Snapshot, task *types.Task) (types.PriorityScore, error) {
	return snap.Scorer.Score(task, snap.Graph, snap.GoalStatuses, snap.At)
}

// Stats counts scheduler activity since creation
type Stats struct {
	Cycles    uint64
	Skipped   uint64
	Abandoned uint64
}

// Scheduler runs maintenance cycles on a timer and on demand
type Scheduler struct {
	mu sync.Mutex

	engine  Engine
	cfg     Config
	logger  *slog.Logger
	history *History
	score   scoreFunc

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	abandon context.CancelFunc
	cycles  context.Context
	trigger chan struct{}
	wg      sync.WaitGroup

	// State
	running  bool
	inFlight atomic.Bool

	completed atomic.Uint64
	skipped   atomic.Uint64
	abandoned atomic.Uint64
}

// NewScheduler creates a scheduler for eng
func NewScheduler(eng Engine, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:  eng,
		cfg:     cfg,
		logger:  logger,
		history: NewHistory(cfg.HistorySize),
		score:   snapshotScore,
		trigger: make(chan struct{}, 1),
	}, nil
}

// History returns the recent cycle reports
func (s *Scheduler) History() *History {
	return s.history
}

// Stats returns scheduler counters
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:    s.completed.Load(),
		Skipped:   s.skipped.Load(),
		Abandoned: s.abandoned.Load(),
	}
}

// Start begins the periodic loop. The first cycle runs after one interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("maintenance scheduler already running")
	}
	if !s.cfg.Enabled {
		s.logger.Info("maintenance disabled by configuration, not starting")
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	// Cycles outlive the loop context so Stop can grant a grace period.
	s.cycles, s.abandon = context.WithCancel(context.WithoutCancel(ctx))
	s.running = true

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("maintenance scheduler started",
		"interval", s.cfg.Interval, "stuck_threshold", s.cfg.StuckThreshold)
	return nil
}

// Stop ends the loop. An in-flight cycle may finish within the grace period;
// after that it is abandoned.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	abandon := s.abandon
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.GracePeriod)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn("grace period expired, abandoning maintenance cycle", "grace_period", s.cfg.GracePeriod)
		abandon()
		<-done
	}
	abandon()
	s.logger.Info("maintenance scheduler stopped")
}

// TriggerNow asks the running loop for an immediate cycle. Requests made
// while a cycle is queued are collapsed.
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	// A timer rather than a ticker, so the interval counts from the end of a cycle.
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		cycleCtx, cancel := context.WithTimeout(s.cycles, s.cfg.CycleTimeout)
		if _, err := s.RunCycle(cycleCtx); err != nil {
			s.logger.Warn("maintenance cycle skipped", "error", err)
		}
		cancel()

		timer.Reset(s.cfg.Interval)
	}
}

// RunCycle runs one cycle synchronously and records its report. Calls that
// overlap a running cycle return ErrCycleInProgress without doing any work.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return nil, ErrCycleInProgress
	}
	defer s.inFlight.Store(false)

	report := s.cycle(ctx)
	s.history.Record(report)
	if report.Abandoned {
		s.abandoned.Add(1)
	} else {
		s.completed.Add(1)
	}
	return report, nil
}

// cycle runs the maintenance steps in order: rescoring, overdue tasks, stuck
// tasks, goal risk, then queued recurrences. Notifications are collected into
// one batch and deduplicated only once the cycle has finished in time; an
// abandoned cycle emits only the recurrence notifications.
func (s *Scheduler) cycle(ctx context.Context) *CycleReport {
	snap := s.engine.Snapshot()
	report := &CycleReport{StartedAt: snap.At}

	s.rescore(ctx, snap, report)

	var batch []types.Notification
	overdue := s.overdue(snap)
	report.Overdue = len(overdue)
	batch = append(batch, overdue...)

	stuck := s.stuck(snap)
	report.Stuck = len(stuck)
	batch = append(batch, stuck...)

	atRisk := s.goalsAtRisk(snap)
	report.GoalsAtRisk = len(atRisk)
	batch = append(batch, atRisk...)

	// Recurrence outcomes are committed as they are processed, so their
	// notifications go out even if the cycle is abandoned afterwards.
	var recurring []types.Notification
	if ctx.Err() == nil {
		report.Recurrences = s.engine.PendingRecurrences()
		recurring = s.engine.ProcessPendingRecurrences()
	}

	report.FinishedAt = s.engine.Now()
	if ctx.Err() != nil {
		report.Abandoned = true
		s.notify(report, recurring)
		s.logger.Warn("maintenance cycle abandoned", "error", ctx.Err(),
			"discarded_notifications", len(batch), "recurrence_notifications", len(recurring))
		return report
	}

	s.notify(report, append(batch, recurring...))

	s.logger.Info("maintenance cycle complete",
		"rescored", report.Rescored,
		"score_failures", report.ScoreFailures,
		"discarded", report.Discarded,
		"overdue", report.Overdue,
		"stuck", report.Stuck,
		"goals_at_risk", report.GoalsAtRisk,
		"notified", report.Notified,
		"duration", report.Duration())
	return report
}

// notify passes batch through dedupe to the publisher and counts the outcome
func (s *Scheduler) notify(report *CycleReport, batch []types.Notification) {
	if len(batch) == 0 {
		return
	}
	admitted := s.engine.Notify(batch)
	report.Notified += len(admitted)
	report.Suppressed += len(batch) - len(admitted)
}

// rescore recomputes every non-terminal task's score with bounded
// parallelism. A failure on one task never affects the others.
func (s *Scheduler) rescore(ctx context.Context, snap *engine.Snapshot, report *CycleReport) {
	var rescored, discarded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ScoringConcurrency)
	for _, task := range snap.Tasks {
		if task.IsTerminal() {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			score, err := s.scoreSafely(snap, task)
			if err != nil {
				failed.Add(1)
				s.logger.Warn("failed to rescore task", "task_id", task.ID, "error", err)
				return nil
			}
			if s.engine.StoreScore(score, snap.Revisions[task.ID]) {
				rescored.Add(1)
			} else {
				discarded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Rescored = int(rescored.Load())
	report.Discarded = int(discarded.Load())
	report.ScoreFailures = int(failed.Load())
}

// scoreSafely converts a panic while scoring into an error
func (s *Scheduler) scoreSafely(snap *engine.Snapshot, task *types.Task) (score types.PriorityScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scoring: %v", r)
		}
	}()
	return s.score(snap, task)
}

func (s *Scheduler) overdue(snap *engine.Snapshot) []types.Notification {
	var out []types.Notification
	for _, t := range snap.Tasks {
		if !t.IsOverdue(snap.At) {
			continue
		}
		out = append(out, types.Notification{
			Kind:        types.NotifyOverdue,
			EntityID:    t.ID,
			GeneratedAt: snap.At,
			Message:     fmt.Sprintf("%q was due %s", t.Title, t.DueDate.Format("2006-01-02 15:04")),
		})
	}
	return out
}

func (s *Scheduler) stuck(snap *engine.Snapshot) []types.Notification {
	var out []types.Notification
	for _, t := range snap.Tasks {
		if t.Status != types.StatusInProgress {
			continue
		}
		idle := snap.At.Sub(t.UpdatedAt)
		if idle < s.cfg.StuckThreshold {
			continue
		}
		out = append(out, types.Notification{
			Kind:        types.NotifyStuck,
			EntityID:    t.ID,
			GeneratedAt: snap.At,
			Message:     fmt.Sprintf("%q has been in progress without an update for %s", t.Title, idle.Round(time.Hour)),
		})
	}
	return out
}

// goalsAtRisk derives progress from the snapshot rather than the mapper's
// cache, which may be invalidated concurrently.
func (s *Scheduler) goalsAtRisk(snap *engine.Snapshot) []types.Notification {
	lookup := snap.Lookup()
	var out []types.Notification
	for _, g := range snap.Goals {
		if g.Status != types.GoalActive {
			continue
		}
		progress := goals.ComputeProgress(g, lookup)
		if !snap.GoalConfig.NeedsAttention(g, progress, snap.At) {
			continue
		}
		out = append(out, types.Notification{
			Kind:        types.NotifyGoalAtRisk,
			EntityID:    g.ID,
			GeneratedAt: snap.At,
			Message:     fmt.Sprintf("goal %q is at %.0f%% with its target on %s", g.Title, progress*100, g.TargetDate.Format("2006-01-02")),
		})
	}
	return out
}
