package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/control"
	"github.com/steveyegge/taskpilot/internal/maintenance"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the maintenance loop until interrupted",
	Long: `Run the background maintenance scheduler against the database.

Every interval the scheduler rescores stale tasks, reports overdue and stuck
tasks and goals at risk, and retries pending recurrences. Press Ctrl+C (or send
SIGTERM) to stop; an in-flight cycle gets the configured grace period to finish.

While serving, the database is locked; use "taskpilot ctl" to query the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scheduler, err := maintenance.NewScheduler(eng, cfg.Maintenance, logger)
		if err != nil {
			fail("failed to create scheduler: %v", err)
		}
		if err := scheduler.Start(ctx); err != nil {
			fail("failed to start scheduler: %v", err)
		}

		srv, err := control.NewServer(control.SocketPath(dbPath), controlHandler(eng, scheduler, dispatcher), logger)
		if err != nil {
			scheduler.Stop()
			fail("failed to create control socket: %v", err)
		}
		if err := srv.Start(context.Background()); err != nil {
			scheduler.Stop()
			fail("failed to start control socket: %v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s taskpilot serving %s\n", green("✓"), dbPath)
		if cfg.Maintenance.Enabled {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("maintenance every %v, stuck after %v",
				cfg.Maintenance.Interval, cfg.Maintenance.StuckThreshold)))
		} else {
			fmt.Printf("  %s\n", gray("maintenance disabled"))
		}

		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		scheduler.Stop()

		stats := scheduler.Stats()
		fmt.Printf("%s %d cycles, %d skipped, %d abandoned\n",
			gray("Maintenance:"), stats.Cycles, stats.Skipped, stats.Abandoned)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
