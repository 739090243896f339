package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/config"
	"github.com/steveyegge/taskpilot/internal/control"
	"github.com/steveyegge/taskpilot/internal/engine"
	"github.com/steveyegge/taskpilot/internal/maintenance"
	"github.com/steveyegge/taskpilot/internal/notify"
	"github.com/steveyegge/taskpilot/internal/types"
)

// controlHandler answers control socket commands against the serving engine
func controlHandler(e *engine.Engine, s *maintenance.Scheduler, d *notify.Dispatcher) control.Handler {
	return func(cmd control.Command) (map[string]any, error) {
		switch cmd.Type {
		case control.CommandStatus:
			data := map[string]any{
				"statistics":          e.Statistics(),
				"scheduler":           s.Stats(),
				"notifications":       d.Stats(),
				"stale_scores":        e.StaleScores(),
				"pending_recurrences": e.PendingRecurrences(),
			}
			if last := s.History().Last(); last != nil {
				data["last_cycle"] = last
			}
			return data, nil
		case control.CommandTrigger:
			s.TriggerNow()
			return nil, nil
		case control.CommandRank:
			limit := cmd.Limit
			if limit <= 0 {
				limit = 10
			}
			ranked, err := e.RankTasks(engine.RankOptions{Filter: types.TaskFilter{Limit: limit}})
			if err != nil {
				return nil, err
			}
			return map[string]any{"tasks": ranked}, nil
		}
		return nil, fmt.Errorf("%w: %q", control.ErrUnknownCommand, cmd.Type)
	}
}

var ctlCmd = &cobra.Command{
	Use:         "ctl",
	Short:       "Talk to a running server",
	Long:        `Query or poke a running "taskpilot serve" through its control socket.`,
	Annotations: map[string]string{"engine": "none"},
}

var ctlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server's task and scheduler status",
	Run: func(cmd *cobra.Command, args []string) {
		resp := sendControl(func(c *control.Client) (*control.Response, error) { return c.Status() })

		var stats types.Statistics
		var sched maintenance.Stats
		var notes notify.Stats
		var stale, pending int
		for key, dest := range map[string]any{
			"statistics":          &stats,
			"scheduler":           &sched,
			"notifications":       &notes,
			"stale_scores":        &stale,
			"pending_recurrences": &pending,
		} {
			if err := resp.Decode(key, dest); err != nil {
				fmt.Fprintf(os.Stderr, "Error: malformed status: %v\n", err)
				os.Exit(1)
			}
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== Taskpilot Server ==="))
		fmt.Printf("%s\n", yellow("Tasks:"))
		fmt.Printf("  Open:         %d (%d ready, %d blocked)\n",
			stats.PendingTasks+stats.InProgressTasks+stats.BlockedTasks, stats.ReadyTasks, stats.BlockedTasks)
		fmt.Printf("  Overdue:      %d\n", stats.OverdueTasks)
		fmt.Printf("  Completion:   %s\n", progressBar(stats.CompletionRate, 20))
		fmt.Printf("  Active goals: %d\n", stats.ActiveGoals)
		fmt.Printf("%s\n", yellow("Scheduler:"))
		fmt.Printf("  Cycles:       %d (%d skipped, %d abandoned)\n", sched.Cycles, sched.Skipped, sched.Abandoned)
		fmt.Printf("  Stale scores: %d, pending recurrences: %d\n", stale, pending)
		fmt.Printf("  Notifications: %d delivered, %d failed, %d dropped\n", notes.Delivered, notes.Failed, notes.Dropped)

		var last maintenance.CycleReport
		if err := resp.Decode("last_cycle", &last); err == nil {
			displayCycleReport(&last)
		} else {
			fmt.Println()
		}
	},
}

var ctlTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask the server to run a maintenance cycle now",
	Run: func(cmd *cobra.Command, args []string) {
		sendControl(func(c *control.Client) (*control.Response, error) { return c.Trigger() })
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Maintenance cycle requested\n", green("✓"))
	},
}

var ctlRankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show the server's current ranking",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		resp := sendControl(func(c *control.Client) (*control.Response, error) { return c.Rank(limit) })

		var ranked []types.RankedTask
		if err := resp.Decode("tasks", &ranked); err != nil {
			fmt.Fprintf(os.Stderr, "Error: malformed ranking: %v\n", err)
			os.Exit(1)
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(ranked) == 0 {
			fmt.Println(gray("Nothing to do"))
			return
		}
		now := clockNow()
		for i, r := range ranked {
			fmt.Printf("%2d. %s ", i+1, scoreColor(r.Score.Composite).Sprintf("%.3f", r.Score.Composite))
			displayTaskLine(r.Task, now)
		}
	},
}

// sendControl sends one command to the server for the resolved database and
// exits on any failure
func sendControl(send func(*control.Client) (*control.Response, error)) *control.Response {
	c, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg = c

	client := control.NewClient(control.SocketPath(resolveDBPath()))
	resp, err := send(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Message)
		os.Exit(1)
	}
	return resp
}

func init() {
	ctlRankCmd.Flags().IntP("limit", "n", 10, "Number of tasks")
	ctlCmd.AddCommand(ctlStatusCmd, ctlTriggerCmd, ctlRankCmd)
	rootCmd.AddCommand(ctlCmd)
}
