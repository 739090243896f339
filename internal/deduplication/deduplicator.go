package deduplication

import (
	"sort"
	"sync"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

// entry remembers when a key was last admitted
type entry struct {
	entityID string
	at       time.Time
}

// Deduplicator is a concurrency-safe rolling window of admitted notification keys
type Deduplicator struct {
	mu   sync.Mutex
	cfg  Config
	seen map[string]entry
}

// Stats reports the outcome of an Admit call
type Stats struct {
	Admitted   int
	Suppressed int
	Evicted    int
}

// New creates a deduplicator. The config must be valid.
func New(cfg Config) (*Deduplicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Deduplicator{cfg: cfg, seen: make(map[string]entry)}, nil
}

// Admit returns the notifications of batch that have not been admitted within
// the window, in batch order, and records them all. Duplicates within the batch
// are collapsed to the first occurrence.
func (d *Deduplicator) Admit(batch []types.Notification, now time.Time) ([]types.Notification, Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.expireLocked(now)

	var stats Stats
	admitted := make([]types.Notification, 0, len(batch))
	for _, n := range batch {
		key := n.Key()
		if _, ok := d.seen[key]; ok {
			stats.Suppressed++
			continue
		}
		d.seen[key] = entry{entityID: n.EntityID, at: now}
		admitted = append(admitted, n)
		stats.Admitted++
	}
	stats.Evicted = d.evictLocked()
	return admitted, stats
}

// Forget clears every remembered key for the entity
func (d *Deduplicator) Forget(entityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.seen {
		if e.entityID == entityID {
			delete(d.seen, key)
		}
	}
}

// Seen reports whether the notification's key is currently suppressed
func (d *Deduplicator) Seen(n types.Notification, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.seen[n.Key()]
	return ok && now.Sub(e.at) < d.cfg.Window
}

// Len returns the number of remembered keys
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) expireLocked(now time.Time) {
	for key, e := range d.seen {
		if now.Sub(e.at) >= d.cfg.Window {
			delete(d.seen, key)
		}
	}
}

// evictLocked drops the oldest entries beyond MaxEntries
func (d *Deduplicator) evictLocked() int {
	excess := len(d.seen) - d.cfg.MaxEntries
	if excess <= 0 {
		return 0
	}
	keys := make([]string, 0, len(d.seen))
	for key := range d.seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := d.seen[keys[i]], d.seen[keys[j]]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		return keys[i] < keys[j]
	})
	for _, key := range keys[:excess] {
		delete(d.seen, key)
	}
	return excess
}
