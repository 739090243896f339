package deduplication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/taskpilot/internal/types"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func note(kind types.NotificationKind, id string) types.Notification {
	return types.Notification{Kind: kind, EntityID: id, GeneratedAt: t0}
}

func newDedup(t *testing.T, cfg Config) *Deduplicator {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestAdmit_SuppressesWithinWindow(t *testing.T) {
	d := newDedup(t, DefaultConfig())

	first, stats := d.Admit([]types.Notification{note(types.NotifyOverdue, "t1")}, t0)
	assert.Len(t, first, 1)
	assert.Equal(t, Stats{Admitted: 1}, stats)

	// Next maintenance cycle, nothing changed
	second, stats := d.Admit([]types.Notification{note(types.NotifyOverdue, "t1")}, t0.Add(30*time.Minute))
	assert.Empty(t, second)
	assert.Equal(t, Stats{Suppressed: 1}, stats)

	// A different kind for the same entity is a different key
	third, _ := d.Admit([]types.Notification{note(types.NotifyStuck, "t1")}, t0.Add(time.Hour))
	assert.Len(t, third, 1)

	// Window elapsed
	fourth, _ := d.Admit([]types.Notification{note(types.NotifyOverdue, "t1")}, t0.Add(24*time.Hour))
	assert.Len(t, fourth, 1)
}

func TestAdmit_CollapsesWithinBatch(t *testing.T) {
	d := newDedup(t, DefaultConfig())
	batch := []types.Notification{
		note(types.NotifyOverdue, "t1"),
		note(types.NotifyOverdue, "t2"),
		note(types.NotifyOverdue, "t1"),
	}

	got, stats := d.Admit(batch, t0)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].EntityID)
	assert.Equal(t, "t2", got[1].EntityID)
	assert.Equal(t, 1, stats.Suppressed)
}

func TestForget_ReenablesEntity(t *testing.T) {
	d := newDedup(t, DefaultConfig())
	d.Admit([]types.Notification{
		note(types.NotifyOverdue, "t1"),
		note(types.NotifyStuck, "t1"),
		note(types.NotifyOverdue, "t2"),
	}, t0)
	assert.Equal(t, 3, d.Len())

	d.Forget("t1")
	assert.Equal(t, 1, d.Len())
	assert.False(t, d.Seen(note(types.NotifyOverdue, "t1"), t0))
	assert.True(t, d.Seen(note(types.NotifyOverdue, "t2"), t0))

	got, _ := d.Admit([]types.Notification{note(types.NotifyOverdue, "t1")}, t0.Add(time.Minute))
	assert.Len(t, got, 1)
}

func TestAdmit_EvictsOldestBeyondCapacity(t *testing.T) {
	d := newDedup(t, Config{Window: time.Hour, MaxEntries: 2})

	d.Admit([]types.Notification{note(types.NotifyOverdue, "old")}, t0)
	d.Admit([]types.Notification{note(types.NotifyOverdue, "mid")}, t0.Add(time.Minute))
	_, stats := d.Admit([]types.Notification{note(types.NotifyOverdue, "new")}, t0.Add(2*time.Minute))

	assert.Equal(t, 1, stats.Evicted)
	assert.Equal(t, 2, d.Len())
	assert.False(t, d.Seen(note(types.NotifyOverdue, "old"), t0.Add(2*time.Minute)))
	assert.True(t, d.Seen(note(types.NotifyOverdue, "new"), t0.Add(2*time.Minute)))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
