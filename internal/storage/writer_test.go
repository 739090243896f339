package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/taskpilot/internal/types"
)

type memStore struct {
	mu      sync.Mutex
	tasks   map[string]*types.Task
	goals   map[string]*types.Goal
	writes  int
	failIDs map[string]bool
	gate    chan struct{}
}

func newMemStore() *memStore {
	return &memStore{tasks: map[string]*types.Task{}, goals: map[string]*types.Goal{}, failIDs: map[string]bool{}}
}

func (m *memStore) LoadAll(context.Context) ([]*types.Task, []*types.Goal, error) {
	return nil, nil, nil
}

func (m *memStore) SaveTask(ctx context.Context, task *types.Task) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[task.ID] {
		return errors.New("disk full")
	}
	m.writes++
	m.tasks[task.ID] = task
	return nil
}

func (m *memStore) SaveGoal(ctx context.Context, goal *types.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.goals[goal.ID] = goal
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) task(id string) *types.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

func sampleTask(id, title string) *types.Task {
	return &types.Task{ID: id, Title: title, Status: types.StatusPending, Priority: types.PriorityMedium}
}

func TestWriter_FlushPersistsLatestVersion(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store, DefaultWriterConfig(), nil)
	ctx := context.Background()

	task := sampleTask("t1", "first")
	w.SaveTask(task)
	task.Title = "mutated after save"
	w.SaveGoal(&types.Goal{ID: "g1", Title: "goal", Type: types.GoalProject, Status: types.GoalActive})

	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, "first", store.task("t1").Title, "writer must persist a copy")

	w.SaveTask(sampleTask("t1", "second"))
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, "second", store.task("t1").Title)
	assert.Equal(t, uint64(3), w.Stats().Written)

	assert.ErrorIs(t, w.Flush(ctx), ErrWriterClosed)
}

func TestWriter_CoalescesPendingSaves(t *testing.T) {
	store := newMemStore()
	store.gate = make(chan struct{})
	w := NewWriter(store, DefaultWriterConfig(), nil)

	// The first save occupies the worker until the gate opens
	w.SaveTask(sampleTask("busy", "x"))
	time.Sleep(10 * time.Millisecond)
	for i := 0; i < 5; i++ {
		w.SaveTask(sampleTask("t1", "v"))
	}
	close(store.gate)

	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, uint64(4), w.Stats().Coalesced)
	assert.Equal(t, 2, store.writes)
}

func TestWriter_FailuresAreCountedNotFatal(t *testing.T) {
	store := newMemStore()
	store.failIDs["bad"] = true
	w := NewWriter(store, DefaultWriterConfig(), nil)

	w.SaveTask(sampleTask("bad", "x"))
	w.SaveTask(sampleTask("good", "y"))
	require.NoError(t, w.Close(context.Background()))

	assert.Equal(t, uint64(1), w.Stats().Failed)
	assert.NotNil(t, store.task("good"))
}

func TestWriter_FlushHonorsContext(t *testing.T) {
	store := newMemStore()
	store.gate = make(chan struct{})
	w := NewWriter(store, DefaultWriterConfig(), nil)
	w.SaveTask(sampleTask("slow", "x"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Flush(ctx), context.DeadlineExceeded)

	close(store.gate)
	require.NoError(t, w.Close(context.Background()))
}
