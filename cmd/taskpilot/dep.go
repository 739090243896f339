package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/types"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <depends-on-id>",
	Short: "Make a task depend on another",
	Long: `Make the first task depend on the second. An edge that would close a
cycle is rejected and the cycle is printed.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		taskID := mustTaskID(args[0])
		dependsOn := mustTaskID(args[1])

		if err := eng.AddDependency(taskID, dependsOn); err != nil {
			var cycle *types.CycleError
			if errors.As(err, &cycle) {
				fail("dependency would create a cycle: %s", formatPath(cycle.Path))
			}
			fail("failed to add dependency: %v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s now depends on %s\n", green("✓"), shortID(taskID), shortID(dependsOn))
		if t, err := eng.GetTask(taskID); err == nil && t.Status == types.StatusBlocked {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("  %s\n", yellow("task is blocked until its dependencies complete"))
		}
	},
}

var depRemoveCmd = &cobra.Command{
	Use:     "rm <task-id> <depends-on-id>",
	Aliases: []string{"remove"},
	Short:   "Remove a dependency",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		taskID := mustTaskID(args[0])
		dependsOn := mustTaskID(args[1])

		if err := eng.RemoveDependency(taskID, dependsOn); err != nil {
			fail("failed to remove dependency: %v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s no longer depends on %s\n", green("✓"), shortID(taskID), shortID(dependsOn))
	},
}

// formatPath renders a cycle path as "a → b → a" using short ids
func formatPath(path []string) string {
	out := ""
	for i, id := range path {
		if i > 0 {
			out += " → "
		}
		out += shortID(id)
	}
	return out
}

func init() {
	depCmd.AddCommand(depAddCmd, depRemoveCmd)
	rootCmd.AddCommand(depCmd)
}
