// Package notify delivers maintenance notifications to external sinks.
//
// Delivery is fire-and-forget: the Dispatcher queues notifications and a
// single background goroutine hands them to the sink at a bounded rate.
// Failed deliveries are logged and dropped, never retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/steveyegge/taskpilot/internal/types"
)

// Sink receives notifications
type Sink interface {
	Deliver(ctx context.Context, n types.Notification) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, n types.Notification) error

// Deliver calls f(ctx, n)
func (f SinkFunc) Deliver(ctx context.Context, n types.Notification) error {
	return f(ctx, n)
}

// ErrQueueFull is returned by Enqueue when the dispatcher cannot accept more work
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned by Enqueue after Close
var ErrClosed = errors.New("dispatcher closed")

// defaultAbandonWait bounds how long Close waits for an in-flight delivery after
// cancelling it. A sink that ignores cancellation is left running.
const defaultAbandonWait = time.Second

// Config controls dispatcher pacing
type Config struct {
	// RatePerSecond is the sustained delivery rate. Zero means unlimited.
	RatePerSecond float64
	// Burst is the number of deliveries allowed back to back
	Burst int
	// QueueSize bounds the number of pending notifications
	QueueSize int
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		RatePerSecond: 5,
		Burst:         10,
		QueueSize:     256,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.RatePerSecond < 0 {
		return types.NewConfigError("notifications.rate", fmt.Sprintf("must not be negative (got %v)", c.RatePerSecond))
	}
	if c.Burst <= 0 {
		return types.NewConfigError("notifications.burst", fmt.Sprintf("must be positive (got %d)", c.Burst))
	}
	if c.QueueSize <= 0 {
		return types.NewConfigError("notifications.queue_size", fmt.Sprintf("must be positive (got %d)", c.QueueSize))
	}
	return nil
}

// Stats counts dispatcher activity
type Stats struct {
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

// Dispatcher queues notifications and delivers them asynchronously
type Dispatcher struct {
	sink    Sink
	limiter *rate.Limiter
	logger  *slog.Logger

	queue  chan types.Notification
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	abandonWait time.Duration

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts a dispatcher delivering to sink
func NewDispatcher(sink Sink, cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sink:    sink,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
		queue:   make(chan types.Notification, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,

		abandonWait: defaultAbandonWait,
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

// Enqueue schedules a notification for delivery without blocking
func (d *Dispatcher) Enqueue(n types.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification dropped", "kind", n.Kind, "entity_id", n.EntityID, "error", ErrQueueFull)
		return ErrQueueFull
	}
}

// Publish enqueues every notification, dropping those that do not fit
func (d *Dispatcher) Publish(batch []types.Notification) {
	for _, n := range batch {
		_ = d.Enqueue(n) // Enqueue already logs drops
	}
}

// Stats returns delivery counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// Close stops accepting notifications and drains the queue. If ctx expires
// first, remaining notifications are abandoned and the in-flight delivery is
// cancelled. Close returns at most defaultAbandonWait after ctx expires, even when
// the sink does not honor cancellation.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		timer := time.NewTimer(d.abandonWait)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
			d.logger.Warn("notification sink ignored cancellation, abandoning delivery", "waited", d.abandonWait)
		}
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		if d.ctx.Err() != nil {
			d.dropped.Add(1)
			continue
		}
		if err := d.limiter.Wait(d.ctx); err != nil {
			d.dropped.Add(1)
			continue
		}
		if err := d.sink.Deliver(d.ctx, n); err != nil {
			d.failed.Add(1)
			d.logger.Warn("notification delivery failed", "kind", n.Kind, "entity_id", n.EntityID, "error", err)
			continue
		}
		d.delivered.Add(1)
	}
}
