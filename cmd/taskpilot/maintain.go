package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/maintenance"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one maintenance cycle now",
	Long: `Run a single maintenance cycle and print its report: rescoring, overdue and
stuck tasks, goals at risk and pending recurrences.

Notification dedupe state lives in the process, so a one-shot cycle reports
everything it finds. Use "serve" for the periodic loop.`,
	Run: func(cmd *cobra.Command, args []string) {
		scheduler, err := maintenance.NewScheduler(eng, cfg.Maintenance, logger)
		if err != nil {
			fail("failed to create scheduler: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Maintenance.CycleTimeout)
		defer cancel()
		report, err := scheduler.RunCycle(ctx)
		if err != nil {
			fail("maintenance cycle failed: %v", err)
		}
		displayCycleReport(report)
	},
}

func displayCycleReport(r *maintenance.CycleReport) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Maintenance Cycle ==="))
	if r.Abandoned {
		fmt.Printf("%s\n", yellow("⚠ cycle abandoned before finishing; nothing was reported"))
	}
	fmt.Printf("  Rescored:       %d", r.Rescored)
	if r.Discarded > 0 || r.ScoreFailures > 0 {
		fmt.Printf(" %s", gray(fmt.Sprintf("(%d discarded, %d failed)", r.Discarded, r.ScoreFailures)))
	}
	fmt.Println()
	fmt.Printf("  Overdue:        %d\n", r.Overdue)
	fmt.Printf("  Stuck:          %d\n", r.Stuck)
	fmt.Printf("  Goals at risk:  %d\n", r.GoalsAtRisk)
	fmt.Printf("  Recurrences:    %d\n", r.Recurrences)
	fmt.Printf("  Notifications:  %d sent, %d suppressed\n", r.Notified, r.Suppressed)
	fmt.Printf("  %s\n\n", gray(fmt.Sprintf("took %v", r.Duration())))
}

func init() {
	rootCmd.AddCommand(maintainCmd)
}
