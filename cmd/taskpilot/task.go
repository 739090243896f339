package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/config"
	"github.com/steveyegge/taskpilot/internal/engine"
	"github.com/steveyegge/taskpilot/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, update and inspect tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task. Dependencies and goals are given as comma-separated ids
(or unique id prefixes). A task whose dependencies are unfinished starts blocked.

Examples:
  taskpilot task add "Write report" --due tomorrow --effort 2h --priority high
  taskpilot task add "Water plants" --due +2d --recur weekly
  taskpilot task add "Deploy" --deps 1a2b3c4d,5e6f7a8b --goal 9c0d1e2f`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		now := eng.Now()
		input := engine.TaskInput{Title: strings.Join(args, " ")}
		input.Description, _ = cmd.Flags().GetString("description")

		if v, _ := cmd.Flags().GetString("priority"); v != "" {
			p, err := parsePriority(v)
			if err != nil {
				fail("%v", err)
			}
			input.Priority = p
		}
		if v, _ := cmd.Flags().GetString("due"); v != "" {
			due, err := parseWhen(v, now)
			if err != nil {
				fail("invalid --due: %v", err)
			}
			input.DueDate = &due
		}
		if v, _ := cmd.Flags().GetString("effort"); v != "" {
			d, err := config.ParseDuration(v)
			if err != nil {
				fail("invalid --effort: %v", err)
			}
			input.EstimatedEffort = d
		}
		deps, _ := cmd.Flags().GetString("deps")
		for _, ref := range splitList(deps) {
			input.Dependencies = append(input.Dependencies, mustTaskID(ref))
		}
		goalRefs, _ := cmd.Flags().GetString("goal")
		for _, ref := range splitList(goalRefs) {
			input.GoalIDs = append(input.GoalIDs, mustGoalID(ref))
		}
		input.Milestones, _ = cmd.Flags().GetStringArray("milestone")

		recur, _ := cmd.Flags().GetString("recur")
		every, _ := cmd.Flags().GetString("every")
		until, _ := cmd.Flags().GetString("until")
		rule, err := parseRecurrence(recur, every, until, now)
		if err != nil {
			fail("%v", err)
		}
		input.Recurrence = rule

		task, err := eng.CreateTask(input)
		if err != nil {
			fail("failed to create task: %v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created task %s\n", green("✓"), task.ID)
		displayTaskLine(task, now)
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Change fields of a task",
	Long: `Change fields of a pending, in-progress or blocked task. Only the flags
given are changed. Setting --status completed behaves like "task complete".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustTaskID(args[0])
		update, err := buildUpdate(cmd)
		if err != nil {
			fail("%v", err)
		}

		task, err := eng.UpdateTask(id, update)
		if err != nil {
			fail("failed to update task: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Updated task %s\n", green("✓"), shortID(task.ID))
		displayTaskLine(task, eng.Now())
	},
}

// buildUpdate collects the changed flags of the update command
func buildUpdate(cmd *cobra.Command) (engine.TaskUpdate, error) {
	var u engine.TaskUpdate
	flags := cmd.Flags()
	now := eng.Now()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		u.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		u.Description = &v
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		s, err := parseStatus(v)
		if err != nil {
			return u, err
		}
		u.Status = &s
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		p, err := parsePriority(v)
		if err != nil {
			return u, err
		}
		u.Priority = &p
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		due, err := parseWhen(v, now)
		if err != nil {
			return u, fmt.Errorf("invalid --due: %w", err)
		}
		u.DueDate = &due
	}
	u.ClearDueDate, _ = flags.GetBool("no-due")
	if flags.Changed("effort") {
		v, _ := flags.GetString("effort")
		d, err := config.ParseDuration(v)
		if err != nil {
			return u, fmt.Errorf("invalid --effort: %w", err)
		}
		u.EstimatedEffort = &d
	}
	if flags.Changed("progress") {
		v, _ := flags.GetFloat64("progress")
		u.Progress = &v
	}
	if flags.Changed("milestone") {
		u.Milestones, _ = flags.GetStringArray("milestone")
	}

	recur, _ := flags.GetString("recur")
	every, _ := flags.GetString("every")
	until, _ := flags.GetString("until")
	rule, err := parseRecurrence(recur, every, until, now)
	if err != nil {
		return u, err
	}
	u.Recurrence = rule
	u.ClearRecurrence, _ = flags.GetBool("no-recur")

	if u.ClearDueDate && u.DueDate != nil {
		return u, errors.New("--due and --no-due are mutually exclusive")
	}
	if u.ClearRecurrence && u.Recurrence != nil {
		return u, errors.New("--recur and --no-recur are mutually exclusive")
	}
	return u, nil
}

var taskCompleteCmd = &cobra.Command{
	Use:     "complete <task-id>...",
	Aliases: []string{"done"},
	Short:   "Mark tasks completed",
	Long: `Mark tasks completed. Dependents whose last unfinished dependency this was
become ready, and a recurring task schedules its next instance.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		now := eng.Now()

		for _, ref := range args {
			id := mustTaskID(ref)
			result, err := eng.CompleteTask(id)
			if err != nil {
				fail("failed to complete %s: %v", ref, err)
			}
			fmt.Printf("%s Completed %s %s\n", green("✓"), shortID(id), result.Task.Title)
			for _, u := range result.Unblocked {
				if t, err := eng.GetTask(u); err == nil {
					fmt.Printf("  %s %s %s\n", cyan("→ ready:"), shortID(u), t.Title)
				}
			}
			if result.Successor != nil {
				fmt.Printf("  %s ", cyan("↻ next:"))
				displayTaskLine(result.Successor, now)
			}
			if result.RecurrenceErr != nil {
				fmt.Printf("  %s %v\n", yellow("⚠ recurrence stopped:"), result.RecurrenceErr)
			}
		}
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>...",
	Short: "Cancel tasks",
	Long:  `Cancel tasks. Cancelling a recurring task ends its series.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		gray := color.New(color.FgHiBlack).SprintFunc()
		cancelled := types.StatusCancelled
		for _, ref := range args {
			id := mustTaskID(ref)
			task, err := eng.UpdateTask(id, engine.TaskUpdate{Status: &cancelled})
			if err != nil {
				fail("failed to cancel %s: %v", ref, err)
			}
			fmt.Printf("%s Cancelled %s %s\n", gray("✗"), shortID(id), task.Title)
		}
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task in detail",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		task, err := eng.GetTask(mustTaskID(args[0]))
		if err != nil {
			fail("%v", err)
		}
		displayTask(task, eng.Now())

		if score, fresh, ok := eng.Score(task.ID); ok {
			gray := color.New(color.FgHiBlack).SprintFunc()
			state := "fresh"
			if !fresh {
				state = "stale"
			}
			fmt.Printf("  Score:     %.3f %s\n", score.Composite, gray("("+state+")"))
			if score.Reasoning != "" {
				fmt.Printf("  %s\n", gray(score.Reasoning))
			}
			fmt.Println()
		}
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `List tasks in creation order. Completed and cancelled tasks are hidden
unless --all or an explicit --status asks for them.`,
	Run: func(cmd *cobra.Command, args []string) {
		filter, err := buildFilter(cmd)
		if err != nil {
			fail("%v", err)
		}
		tasks := eng.ListTasks(filter)

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(tasks) == 0 {
			fmt.Println(gray("No tasks"))
			return
		}
		now := eng.Now()
		for _, t := range tasks {
			displayTaskLine(t, now)
		}
		fmt.Printf("\n%s\n", gray(fmt.Sprintf("%d task(s)", len(tasks))))
	},
}

// buildFilter reads the filter flags shared by list and rank
func buildFilter(cmd *cobra.Command) (types.TaskFilter, error) {
	var f types.TaskFilter
	flags := cmd.Flags()

	statuses, _ := flags.GetString("status")
	for _, s := range splitList(statuses) {
		status, err := parseStatus(s)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, status)
		if status.IsTerminal() {
			f.IncludeTerminal = true
		}
	}
	if all, _ := flags.GetBool("all"); all {
		f.IncludeTerminal = true
	}
	if v, _ := flags.GetString("priority"); v != "" {
		p, err := parsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = &p
	}
	if v, _ := flags.GetString("goal"); v != "" {
		id, err := resolveGoalID(v)
		if err != nil {
			return f, err
		}
		f.GoalID = id
	}
	if v, _ := flags.GetString("due-before"); v != "" {
		t, err := parseWhen(v, eng.Now())
		if err != nil {
			return f, fmt.Errorf("invalid --due-before: %w", err)
		}
		f.DueBefore = &t
	}
	f.ReadyOnly, _ = flags.GetBool("ready")
	f.Limit, _ = flags.GetInt("limit")
	if f.Limit < 0 {
		return f, errors.New("--limit must not be negative")
	}
	return f, nil
}

// addFilterFlags registers the flags read by buildFilter
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "Comma-separated statuses (pending, in_progress, blocked, completed, cancelled)")
	cmd.Flags().String("priority", "", "Only this priority level")
	cmd.Flags().String("goal", "", "Only tasks linked to this goal")
	cmd.Flags().String("due-before", "", "Only tasks due before this time")
	cmd.Flags().Bool("ready", false, "Only tasks whose dependencies are all completed")
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of tasks (0 = no limit)")
}

// addTaskFieldFlags registers the flags shared by add and update
func addTaskFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("description", "d", "", "Longer description")
	cmd.Flags().StringP("priority", "p", "", "critical, high, medium or low")
	cmd.Flags().String("due", "", "Due date (2006-01-02, \"2006-01-02 15:04\", +3d, tomorrow)")
	cmd.Flags().String("effort", "", "Estimated effort (30m, 2h, 1d)")
	cmd.Flags().StringArray("milestone", nil, "Milestone (repeatable)")
	cmd.Flags().String("recur", "", "Recurrence: daily, weekly, monthly, yearly, custom or a duration")
	cmd.Flags().String("every", "", "Interval for custom recurrence")
	cmd.Flags().String("until", "", "Last date a recurring task may be due")
}

func init() {
	addTaskFieldFlags(taskAddCmd)
	taskAddCmd.Flags().String("deps", "", "Comma-separated ids of tasks this one depends on")
	taskAddCmd.Flags().String("goal", "", "Comma-separated ids of goals this task contributes to")

	addTaskFieldFlags(taskUpdateCmd)
	taskUpdateCmd.Flags().String("title", "", "New title")
	taskUpdateCmd.Flags().String("status", "", "pending, in_progress, blocked, completed or cancelled")
	taskUpdateCmd.Flags().Float64("progress", 0, "Progress between 0 and 1")
	taskUpdateCmd.Flags().Bool("no-due", false, "Remove the due date")
	taskUpdateCmd.Flags().Bool("no-recur", false, "Stop the task from recurring")

	addFilterFlags(taskListCmd)
	taskListCmd.Flags().BoolP("all", "a", false, "Include completed and cancelled tasks")

	taskCmd.AddCommand(taskAddCmd, taskUpdateCmd, taskCompleteCmd, taskCancelCmd, taskShowCmd, taskListCmd)
	rootCmd.AddCommand(taskCmd)
}
