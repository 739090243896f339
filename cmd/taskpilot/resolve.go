package main

import (
	"fmt"
	"strings"

	"github.com/steveyegge/taskpilot/internal/types"
)

// resolveTaskID expands a unique id prefix to the full task id
func resolveTaskID(ref string) (string, error) {
	if _, err := eng.GetTask(ref); err == nil {
		return ref, nil
	}
	var ids []string
	for _, t := range eng.ListTasks(types.TaskFilter{IncludeTerminal: true}) {
		ids = append(ids, t.ID)
	}
	return matchPrefix("task", ref, ids)
}

// resolveGoalID expands a unique id prefix to the full goal id
func resolveGoalID(ref string) (string, error) {
	if _, err := eng.GetGoal(ref); err == nil {
		return ref, nil
	}
	var ids []string
	for _, g := range eng.ListGoals() {
		ids = append(ids, g.ID)
	}
	return matchPrefix("goal", ref, ids)
}

func matchPrefix(kind, ref string, ids []string) (string, error) {
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, ref) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s not found: %s", kind, ref)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%s id %q is ambiguous (%d matches)", kind, ref, len(matches))
}

// mustTaskID resolves ref or exits
func mustTaskID(ref string) string {
	id, err := resolveTaskID(ref)
	if err != nil {
		fail("%v", err)
	}
	return id
}

// mustGoalID resolves ref or exits
func mustGoalID(ref string) string {
	id, err := resolveGoalID(ref)
	if err != nil {
		fail("%v", err)
	}
	return id
}
