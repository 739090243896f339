package graph

import "github.com/steveyegge/taskpilot/internal/types"

// Snapshot is a point-in-time copy of a Graph. It is never mutated after
// creation, so scorers can read it without holding the graph lock.
type Snapshot struct {
	status     map[string]types.Status
	deps       map[string]set
	dependents map[string]set
}

// IsReady reports whether every dependency of the task was completed at snapshot time
func (s *Snapshot) IsReady(id string) bool {
	return isReady(s.deps, s.status, id)
}

// AwaitingDependents counts non-terminal dependents of the task
func (s *Snapshot) AwaitingDependents(id string) int {
	return awaiting(s.dependents, s.status, id)
}

// Dependencies returns the sorted dependency ids of the task
func (s *Snapshot) Dependencies(id string) []string {
	return sortedKeys(s.deps[id])
}

// Dependents returns the sorted dependent ids of the task
func (s *Snapshot) Dependents(id string) []string {
	return sortedKeys(s.dependents[id])
}

// EdgeCount returns the number of dependency edges
func (s *Snapshot) EdgeCount() int {
	n := 0
	for _, edges := range s.deps {
		n += len(edges)
	}
	return n
}
