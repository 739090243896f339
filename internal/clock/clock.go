// Package clock provides the injected time source used by the engine.
// Nothing in the core calls time.Now directly.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// Real reads the system clock, optionally converted to a fixed location
type Real struct {
	Location *time.Location
}

// Now returns the current system time
func (r Real) Now() time.Time {
	now := time.Now()
	if r.Location != nil {
		return now.In(r.Location)
	}
	return now
}

// Fake is a manually driven clock for tests
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a fake clock frozen at now
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

// Now returns the frozen time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
