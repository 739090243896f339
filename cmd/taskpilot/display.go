package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/taskpilot/internal/types"
)

// statusStyle returns the icon and color used for a task status
func statusStyle(status types.Status) (string, *color.Color) {
	switch status {
	case types.StatusPending:
		return "○", color.New(color.FgWhite)
	case types.StatusInProgress:
		return "◐", color.New(color.FgCyan)
	case types.StatusBlocked:
		return "⊘", color.New(color.FgYellow)
	case types.StatusCompleted:
		return "✓", color.New(color.FgGreen)
	case types.StatusCancelled:
		return "✗", color.New(color.FgHiBlack)
	}
	return "?", color.New(color.FgWhite)
}

func priorityColor(p types.PriorityLevel) *color.Color {
	switch p {
	case types.PriorityCritical:
		return color.New(color.FgRed, color.Bold)
	case types.PriorityHigh:
		return color.New(color.FgRed)
	case types.PriorityMedium:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgHiBlack)
}

// displayTaskLine prints a task as a single line: icon, short id, priority, title, due
func displayTaskLine(t *types.Task, now time.Time) {
	icon, c := statusStyle(t.Status)
	gray := color.New(color.FgHiBlack).SprintFunc()

	line := fmt.Sprintf("%s %s %s %s",
		c.Sprint(icon),
		gray(shortID(t.ID)),
		priorityColor(t.Priority).Sprintf("%-8s", t.Priority),
		t.Title,
	)
	if t.DueDate != nil {
		line += " " + formatDue(*t.DueDate, now, t.IsTerminal())
	}
	if t.Recurrence != nil {
		line += " " + gray("↻ "+string(t.Recurrence.Frequency))
	}
	fmt.Println(line)
}

// displayTask prints every field of a task
func displayTask(t *types.Task, now time.Time) {
	icon, c := statusStyle(t.Status)
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("\n%s %s\n", c.Sprint(icon), cyan(t.Title))
	fmt.Printf("  ID:        %s\n", t.ID)
	fmt.Printf("  Status:    %s\n", c.Sprint(t.Status))
	fmt.Printf("  Priority:  %s\n", priorityColor(t.Priority).Sprint(t.Priority))
	if t.Description != "" {
		fmt.Printf("  Details:   %s\n", t.Description)
	}
	if t.DueDate != nil {
		fmt.Printf("  Due:       %s %s\n", t.DueDate.Format("2006-01-02 15:04"), formatDue(*t.DueDate, now, t.IsTerminal()))
	}
	if t.EstimatedEffort > 0 {
		fmt.Printf("  Effort:    %v\n", t.EstimatedEffort)
	}
	fmt.Printf("  Progress:  %s\n", progressBar(t.Progress, 20))
	if len(t.Dependencies) > 0 {
		fmt.Printf("  Depends:   %s\n", strings.Join(t.Dependencies, ", "))
	}
	if len(t.GoalIDs) > 0 {
		fmt.Printf("  Goals:     %s\n", strings.Join(t.GoalIDs, ", "))
	}
	if len(t.Milestones) > 0 {
		fmt.Printf("  Milestones: %s\n", strings.Join(t.Milestones, "; "))
	}
	if r := t.Recurrence; r != nil {
		rule := string(r.Frequency)
		if r.Frequency == types.FrequencyCustom {
			rule += " every " + r.Interval.String()
		}
		if r.Until != nil {
			rule += " until " + r.Until.Format("2006-01-02")
		}
		fmt.Printf("  Repeats:   %s (%s)\n", rule, t.RecurrenceState)
	}
	if t.SuccessorID != "" {
		fmt.Printf("  Next:      %s\n", t.SuccessorID)
	}
	fmt.Printf("  Created:   %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
	if t.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", t.CompletedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

// formatDue describes a due date relative to now
func formatDue(due, now time.Time, terminal bool) string {
	gray := color.New(color.FgHiBlack).SprintFunc()
	if terminal {
		return gray("(due " + due.Format("Jan 2") + ")")
	}
	d := due.Sub(now)
	if d < 0 {
		return color.New(color.FgRed, color.Bold).Sprintf("(overdue %s)", humanDuration(-d))
	}
	if d < 24*time.Hour {
		return color.New(color.FgYellow).Sprintf("(due in %s)", humanDuration(d))
	}
	return gray(fmt.Sprintf("(due in %s)", humanDuration(d)))
}

// humanDuration rounds d to the largest sensible unit
func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return "<1m"
}

// progressBar renders a fraction in [0,1] as a fixed-width bar
func progressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction*float64(width) + 0.5)
	return fmt.Sprintf("[%s%s] %3.0f%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", width-filled),
		fraction*100)
}

// shortID abbreviates a UUID for tables. resolveTaskID accepts it back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
