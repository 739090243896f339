package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/engine"
	"github.com/steveyegge/taskpilot/internal/types"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals and their linked tasks",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a goal",
	Long: `Create a goal. Types: personal, professional, learning, health, project.

Example:
  taskpilot goal add "Run a half marathon" --type health --target 2025-10-12`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := engine.GoalInput{Title: strings.Join(args, " ")}
		input.Description, _ = cmd.Flags().GetString("description")

		typeName, _ := cmd.Flags().GetString("type")
		goalType, err := parseGoalType(typeName)
		if err != nil {
			fail("%v", err)
		}
		input.Type = goalType

		if v, _ := cmd.Flags().GetString("target"); v != "" {
			target, err := parseWhen(v, eng.Now())
			if err != nil {
				fail("invalid --target: %v", err)
			}
			input.TargetDate = &target
		}

		goal, err := eng.CreateGoal(input)
		if err != nil {
			fail("failed to create goal: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created goal %s\n", green("✓"), goal.ID)
		displayGoalLine(goal, 0)
	},
}

var goalLinkCmd = &cobra.Command{
	Use:   "link <goal-id> <task-id>...",
	Short: "Link tasks to a goal",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		goalID := mustGoalID(args[0])
		green := color.New(color.FgGreen).SprintFunc()
		for _, ref := range args[1:] {
			taskID := mustTaskID(ref)
			if err := eng.LinkTaskToGoal(taskID, goalID); err != nil {
				fail("failed to link %s: %v", ref, err)
			}
			fmt.Printf("%s Linked %s to goal %s\n", green("✓"), shortID(taskID), shortID(goalID))
		}
	},
}

var goalUnlinkCmd = &cobra.Command{
	Use:   "unlink <goal-id> <task-id>...",
	Short: "Unlink tasks from a goal",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		goalID := mustGoalID(args[0])
		green := color.New(color.FgGreen).SprintFunc()
		for _, ref := range args[1:] {
			taskID := mustTaskID(ref)
			if err := eng.UnlinkTaskFromGoal(taskID, goalID); err != nil {
				fail("failed to unlink %s: %v", ref, err)
			}
			fmt.Printf("%s Unlinked %s from goal %s\n", green("✓"), shortID(taskID), shortID(goalID))
		}
	},
}

var goalShowCmd = &cobra.Command{
	Use:     "show <goal-id>",
	Aliases: []string{"progress"},
	Short:   "Show a goal's progress and linked tasks",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		goal, err := eng.GetGoal(mustGoalID(args[0]))
		if err != nil {
			fail("%v", err)
		}
		progress, err := eng.GoalProgress(goal.ID)
		if err != nil {
			fail("%v", err)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s %s\n", cyan(goal.Title), gray("("+string(goal.Type)+")"))
		fmt.Printf("  ID:        %s\n", goal.ID)
		fmt.Printf("  Status:    %s\n", goalStatusColor(goal.Status).Sprint(goal.Status))
		if goal.Description != "" {
			fmt.Printf("  Details:   %s\n", goal.Description)
		}
		if goal.TargetDate != nil {
			fmt.Printf("  Target:    %s\n", goal.TargetDate.Format("2006-01-02"))
		}
		fmt.Printf("  Progress:  %s\n", progressBar(progress, 20))
		for _, m := range goal.Milestones {
			fmt.Printf("  Milestone: %s\n", m)
		}

		if len(goal.TaskIDs) > 0 {
			fmt.Printf("\n  Tasks:\n")
			now := eng.Now()
			for _, id := range goal.TaskIDs {
				if t, err := eng.GetTask(id); err == nil {
					fmt.Print("    ")
					displayTaskLine(t, now)
				}
			}
		}
		fmt.Println()
	},
}

var goalListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List goals with their progress",
	Run: func(cmd *cobra.Command, args []string) {
		var goals []*types.Goal
		if typeName, _ := cmd.Flags().GetString("type"); typeName != "" {
			goalType, err := parseGoalType(typeName)
			if err != nil {
				fail("%v", err)
			}
			goals = eng.GoalsByType(goalType)
		} else {
			goals = eng.ListGoals()
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(goals) == 0 {
			fmt.Println(gray("No goals"))
			return
		}
		for _, g := range goals {
			progress, _ := eng.GoalProgress(g.ID)
			displayGoalLine(g, progress)
		}

		byType := eng.GoalProgressByType()
		if len(byType) > 0 {
			fmt.Printf("\n%s\n", gray("Average progress of active goals:"))
			for _, t := range types.AllGoalTypes {
				if p, ok := byType[t]; ok {
					fmt.Printf("  %-13s %s\n", t, progressBar(p, 10))
				}
			}
		}
	},
}

var goalAttentionCmd = &cobra.Command{
	Use:     "attention",
	Aliases: []string{"risk"},
	Short:   "List goals falling behind or past their target date",
	Run: func(cmd *cobra.Command, args []string) {
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		behind := eng.GoalsNeedingAttention()
		overdue := eng.OverdueGoals()
		if len(behind) == 0 && len(overdue) == 0 {
			fmt.Println(gray("All goals on track"))
			return
		}
		if len(overdue) > 0 {
			fmt.Printf("%s\n", red("Past target date:"))
			for _, g := range overdue {
				progress, _ := eng.GoalProgress(g.ID)
				displayGoalLine(g, progress)
			}
		}
		if len(behind) > 0 {
			fmt.Printf("%s\n", yellow("Behind schedule:"))
			for _, g := range behind {
				progress, _ := eng.GoalProgress(g.ID)
				displayGoalLine(g, progress)
			}
		}
	},
}

var goalAbandonCmd = &cobra.Command{
	Use:   "abandon <goal-id>",
	Short: "Abandon a goal",
	Long:  `Abandon a goal. Its tasks stay, but no longer get a goal alignment bonus.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		goal, err := eng.AbandonGoal(mustGoalID(args[0]))
		if err != nil {
			fail("failed to abandon goal: %v", err)
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s Abandoned goal %s %s\n", gray("✗"), shortID(goal.ID), goal.Title)
	},
}

var goalStatusCmd = &cobra.Command{
	Use:   "status <goal-id> <active|achieved|behind|abandoned>",
	Short: "Set a goal's status",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		status := types.GoalStatus(strings.ToLower(args[1]))
		if !status.IsValid() {
			fail("unknown goal status %q", args[1])
		}
		goal, err := eng.SetGoalStatus(mustGoalID(args[0]), status)
		if err != nil {
			fail("failed to set goal status: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Goal %s is now %s\n", green("✓"), shortID(goal.ID), goal.Status)
	},
}

var goalMilestoneCmd = &cobra.Command{
	Use:   "milestone <goal-id> <text>",
	Short: "Record a milestone on a goal",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		goal, err := eng.AddGoalMilestone(mustGoalID(args[0]), strings.Join(args[1:], " "))
		if err != nil {
			fail("failed to add milestone: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Goal %s has %d milestone(s)\n", green("✓"), shortID(goal.ID), len(goal.Milestones))
	},
}

func goalStatusColor(s types.GoalStatus) *color.Color {
	switch s {
	case types.GoalAchieved:
		return color.New(color.FgGreen)
	case types.GoalBehind:
		return color.New(color.FgYellow)
	case types.GoalAbandoned:
		return color.New(color.FgHiBlack)
	}
	return color.New(color.FgCyan)
}

// displayGoalLine prints a goal as a single line with its progress
func displayGoalLine(g *types.Goal, progress float64) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	line := fmt.Sprintf("%s %s %s %s",
		gray(shortID(g.ID)),
		goalStatusColor(g.Status).Sprintf("%-9s", g.Status),
		progressBar(progress, 10),
		g.Title,
	)
	if g.TargetDate != nil {
		line += " " + gray("→ "+g.TargetDate.Format("2006-01-02"))
	}
	fmt.Println(line)
}

func init() {
	goalAddCmd.Flags().StringP("description", "d", "", "Longer description")
	goalAddCmd.Flags().StringP("type", "t", string(types.GoalPersonal), "Goal type")
	goalAddCmd.Flags().String("target", "", "Target date")
	goalListCmd.Flags().StringP("type", "t", "", "Only active goals of this type")

	goalCmd.AddCommand(goalAddCmd, goalLinkCmd, goalUnlinkCmd, goalShowCmd, goalListCmd,
		goalAttentionCmd, goalAbandonCmd, goalStatusCmd, goalMilestoneCmd)
	rootCmd.AddCommand(goalCmd)
}
