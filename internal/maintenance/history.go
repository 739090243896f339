package maintenance

import (
	"sync"
	"time"
)

// CycleReport summarizes one maintenance cycle
type CycleReport struct {
	StartedAt  time.Time
	FinishedAt time.Time

	// Rescored counts scores written back to the engine
	Rescored int
	// Discarded counts scores dropped because the task changed mid-cycle
	Discarded int
	// ScoreFailures counts tasks whose rescoring failed or panicked;
	// their last known score is kept
	ScoreFailures int

	Overdue     int
	Stuck       int
	GoalsAtRisk int
	Recurrences int

	// Notified and Suppressed split the cycle's notifications by the dedupe outcome
	Notified   int
	Suppressed int

	// Abandoned is set when the cycle ran out of time or was cancelled.
	// An abandoned cycle drops its overdue, stuck and goal notifications and
	// leaves their dedupe state untouched. Recurrence failures it already
	// committed are still emitted.
	Abandoned bool
}

// Duration returns how long the cycle ran
func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// History keeps a sliding window of recent cycle reports
type History struct {
	mu sync.RWMutex

	// reports is bounded by windowSize, oldest first
	reports    []*CycleReport
	windowSize int
}

// NewHistory creates a history holding at most windowSize reports
func NewHistory(windowSize int) *History {
	if windowSize <= 0 {
		windowSize = DefaultConfig().HistorySize
	}
	return &History{
		reports:    make([]*CycleReport, 0, windowSize),
		windowSize: windowSize,
	}
}

// Record appends a report, dropping the oldest when the window is full
func (h *History) Record(r *CycleReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reports = append(h.reports, r)
	if len(h.reports) > h.windowSize {
		h.reports = h.reports[len(h.reports)-h.windowSize:]
	}
}

// Recent returns up to n reports, most recent first. n <= 0 returns all.
func (h *History) Recent(n int) []*CycleReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.reports) {
		n = len(h.reports)
	}
	out := make([]*CycleReport, 0, n)
	for i := len(h.reports) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.reports[i])
	}
	return out
}

// Last returns the most recent report, or nil if none was recorded
func (h *History) Last() *CycleReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.reports) == 0 {
		return nil
	}
	return h.reports[len(h.reports)-1]
}

// Len returns the number of reports in the window
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.reports)
}
