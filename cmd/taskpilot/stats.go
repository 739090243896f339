package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"status"},
	Short:   "Show task and goal statistics",
	Run: func(cmd *cobra.Command, args []string) {
		s := eng.Statistics()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", cyan("=== Taskpilot Status ==="))
		fmt.Printf("  %s\n\n", gray(dbPath))

		fmt.Printf("%s\n", yellow("Tasks:"))
		fmt.Printf("  Total:        %d\n", s.TotalTasks)
		fmt.Printf("  Pending:      %d (%d ready)\n", s.PendingTasks, s.ReadyTasks)
		fmt.Printf("  In progress:  %d\n", s.InProgressTasks)
		fmt.Printf("  Blocked:      %d\n", s.BlockedTasks)
		fmt.Printf("  Completed:    %d\n", s.CompletedTasks)
		fmt.Printf("  Cancelled:    %d\n", s.CancelledTasks)
		overdue := fmt.Sprintf("%d", s.OverdueTasks)
		if s.OverdueTasks > 0 {
			overdue = red(overdue)
		}
		fmt.Printf("  Overdue:      %s\n", overdue)
		fmt.Printf("  Completion:   %s\n\n", progressBar(s.CompletionRate, 20))

		fmt.Printf("%s\n", yellow("Goals:"))
		fmt.Printf("  Active:       %d\n", s.ActiveGoals)
		if behind := len(eng.GoalsNeedingAttention()); behind > 0 {
			fmt.Printf("  Behind:       %s\n", red(fmt.Sprintf("%d", behind)))
		}
		fmt.Println()

		fmt.Printf("%s\n", yellow("Scheduler:"))
		fmt.Printf("  Stale scores:         %d\n", eng.StaleScores())
		fmt.Printf("  Pending recurrences:  %d\n\n", eng.PendingRecurrences())
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
