package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"

	"github.com/steveyegge/taskpilot/internal/types"
)

// ConsoleSink prints notifications as colored lines
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink creates a sink writing to out
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out: out}
}

// Deliver writes one line for the notification
func (s *ConsoleSink) Deliver(_ context.Context, n types.Notification) error {
	label := kindColor(n.Kind).Sprintf("%-17s", n.Kind)
	gray := color.New(color.FgHiBlack).SprintFunc()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%s %s %s %s\n",
		gray(n.GeneratedAt.Format("2006-01-02 15:04")), label, n.EntityID, n.Message)
	return err
}

func kindColor(kind types.NotificationKind) *color.Color {
	switch kind {
	case types.NotifyOverdue:
		return color.New(color.FgRed, color.Bold)
	case types.NotifyStuck:
		return color.New(color.FgYellow)
	case types.NotifyGoalAtRisk:
		return color.New(color.FgMagenta)
	case types.NotifyRecurrenceFailed:
		return color.New(color.FgRed)
	}
	return color.New(color.FgWhite)
}

// LogSink records notifications as structured log entries
type LogSink struct {
	Logger *slog.Logger
}

// Deliver logs the notification at warn level
func (s LogSink) Deliver(ctx context.Context, n types.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, "notification",
		"kind", n.Kind,
		"entity_id", n.EntityID,
		"generated_at", n.GeneratedAt,
		"message", n.Message,
	)
	return nil
}

// MultiSink fans a notification out to several sinks and returns the first error
type MultiSink []Sink

// Deliver delivers to every sink even if an earlier one fails
func (m MultiSink) Deliver(ctx context.Context, n types.Notification) error {
	var firstErr error
	for _, s := range m {
		if err := s.Deliver(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
