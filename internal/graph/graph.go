// Package graph maintains the task dependency DAG.
//
// Only forward edges (task -> the tasks it depends on) are owned state. The
// reverse index (task -> the tasks waiting on it) is derived and updated in the
// same critical section as every forward-edge change, so the two never disagree.
package graph

import (
	"slices"
	"sort"
	"sync"

	"github.com/steveyegge/taskpilot/internal/types"
)

type set map[string]struct{}

// Graph is a concurrency-safe dependency graph over task ids
type Graph struct {
	mu sync.RWMutex

	// status is the last known status of every node; readiness depends on it
	status map[string]types.Status
	// deps maps a task to the tasks it depends on
	deps map[string]set
	// dependents is the reverse index of deps
	dependents map[string]set
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		status:     make(map[string]types.Status),
		deps:       make(map[string]set),
		dependents: make(map[string]set),
	}
}

// AddNode registers a task. Re-adding an existing node only updates its status.
func (g *Graph) AddNode(id string, status types.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[id] = status
}

// HasNode reports whether the task is known to the graph
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.status[id]
	return ok
}

// SetStatus records a status change for a task
func (g *Graph) SetStatus(id string, status types.Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.status[id]; !ok {
		return types.NewNotFoundError(types.EntityTask, id)
	}
	g.status[id] = status
	return nil
}

// AddDependency records that taskID depends on dependsOnID.
//
// The insertion is rejected with a CycleError when taskID is already reachable
// from dependsOnID, since the new edge would close the loop. The search only
// walks the subgraph reachable from dependsOnID. On error the graph is unchanged.
// Adding an edge that already exists is a no-op.
func (g *Graph) AddDependency(taskID, dependsOnID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.status[taskID]; !ok {
		return types.NewNotFoundError(types.EntityTask, taskID)
	}
	if _, ok := g.status[dependsOnID]; !ok {
		return types.NewNotFoundError(types.EntityTask, dependsOnID)
	}
	if taskID == dependsOnID {
		return &types.CycleError{TaskID: taskID, DependsOnID: dependsOnID, Path: []string{taskID, taskID}}
	}
	if _, exists := g.deps[taskID][dependsOnID]; exists {
		return nil
	}

	if path := findPath(g.deps, dependsOnID, taskID); path != nil {
		return &types.CycleError{
			TaskID:      taskID,
			DependsOnID: dependsOnID,
			Path:        append([]string{taskID}, path...),
		}
	}

	addEdge(g.deps, taskID, dependsOnID)
	addEdge(g.dependents, dependsOnID, taskID)
	return nil
}

// RemoveDependency deletes the edge if present and reports whether it existed
func (g *Graph) RemoveDependency(taskID, dependsOnID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.deps[taskID][dependsOnID]; !ok {
		return false
	}
	removeEdge(g.deps, taskID, dependsOnID)
	removeEdge(g.dependents, dependsOnID, taskID)
	return true
}

// IsReady reports whether every dependency of the task is completed
func (g *Graph) IsReady(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return isReady(g.deps, g.status, id)
}

// OnTaskCompleted marks the task completed and returns the dependents whose
// readiness flipped from not ready to ready as a result, sorted by id.
func (g *Graph) OnTaskCompleted(id string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, ok := g.status[id]
	if !ok {
		return nil, types.NewNotFoundError(types.EntityTask, id)
	}
	g.status[id] = types.StatusCompleted
	if prev == types.StatusCompleted {
		return nil, nil
	}

	var changed []string
	for dependent := range g.dependents[id] {
		if isReady(g.deps, g.status, dependent) {
			changed = append(changed, dependent)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Dependencies returns the ids the task depends on, sorted
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.deps[id])
}

// Dependents returns the ids that depend on the task, sorted
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dependents[id])
}

// AwaitingDependents counts non-terminal tasks that depend on id
func (g *Graph) AwaitingDependents(id string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return awaiting(g.dependents, g.status, id)
}

// Snapshot returns an immutable deep copy of the graph for lock-free reads
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := &Snapshot{
		status:     make(map[string]types.Status, len(g.status)),
		deps:       make(map[string]set, len(g.deps)),
		dependents: make(map[string]set, len(g.dependents)),
	}
	for id, st := range g.status {
		s.status[id] = st
	}
	copyIndex(s.deps, g.deps)
	copyIndex(s.dependents, g.dependents)
	return s
}

// DetectCycles audits the whole graph and returns the first cycle found, as a
// closed path (first element repeated at the end), or nil for a DAG.
// AddDependency keeps the graph acyclic; this guards state restored from storage.
func (g *Graph) DetectCycles() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	ids := make([]string, 0, len(g.status))
	for id := range g.status {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if visited[id] {
			continue
		}
		visited[id] = true
		onStack[id] = true
		stack := []frame{{node: id, next: sortedKeys(g.deps[id])}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				onStack[top.node] = false
				stack = stack[:len(stack)-1] // Backtrack
				continue
			}
			neighbor := top.next[0]
			top.next = top.next[1:]

			if onStack[neighbor] {
				path := stackPath(stack)
				cycleStart := slices.Index(path, neighbor)
				return append(path[cycleStart:], neighbor) // Close the cycle
			}
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			onStack[neighbor] = true
			stack = append(stack, frame{node: neighbor, next: sortedKeys(g.deps[neighbor])})
		}
	}
	return nil
}

// frame is one level of an explicit DFS stack: the node and the neighbors
// still to visit from it
type frame struct {
	node string
	next []string
}

func stackPath(stack []frame) []string {
	path := make([]string, 0, len(stack)+1)
	for _, f := range stack {
		path = append(path, f.node)
	}
	return path
}

// findPath runs a DFS from start over dependency edges and returns the path
// start..target if target is reachable, nil otherwise. The walk keeps its own
// stack, so chain length does not grow the goroutine stack.
func findPath(deps map[string]set, start, target string) []string {
	if start == target {
		return []string{start}
	}
	visited := set{start: {}}
	stack := []frame{{node: start, next: sortedKeys(deps[start])}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.next) == 0 {
			stack = stack[:len(stack)-1] // Backtrack
			continue
		}
		next := top.next[0]
		top.next = top.next[1:]

		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}
		if next == target {
			return append(stackPath(stack), next)
		}
		stack = append(stack, frame{node: next, next: sortedKeys(deps[next])})
	}
	return nil
}

func isReady(deps map[string]set, status map[string]types.Status, id string) bool {
	for dep := range deps[id] {
		if status[dep] != types.StatusCompleted {
			return false
		}
	}
	return true
}

func awaiting(dependents map[string]set, status map[string]types.Status, id string) int {
	n := 0
	for d := range dependents[id] {
		if !status[d].IsTerminal() {
			n++
		}
	}
	return n
}

func addEdge(index map[string]set, from, to string) {
	s, ok := index[from]
	if !ok {
		s = make(set)
		index[from] = s
	}
	s[to] = struct{}{}
}

func removeEdge(index map[string]set, from, to string) {
	s := index[from]
	delete(s, to)
	if len(s) == 0 {
		delete(index, from)
	}
}

func copyIndex(dst, src map[string]set) {
	for id, edges := range src {
		c := make(set, len(edges))
		for e := range edges {
			c[e] = struct{}{}
		}
		dst[id] = c
	}
}

func sortedKeys(s set) []string {
	if len(s) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
