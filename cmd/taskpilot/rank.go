package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/engine"
	"github.com/steveyegge/taskpilot/internal/types"
)

var rankCmd = &cobra.Command{
	Use:     "rank",
	Aliases: []string{"next"},
	Short:   "Rank open tasks by priority",
	Long: `Rank pending, in-progress and blocked tasks by composite priority score,
highest first. Scores depend on the current time of day, so the same tasks can
rank differently inside and outside focus windows.

--weights scores this ranking with different weights without changing the
stored preferences, e.g. --weights urgency=0.5,effort=0.1,focus=0.1,dependency=0.2,goal=0.1`,
	Run: func(cmd *cobra.Command, args []string) {
		filter, err := buildFilter(cmd)
		if err != nil {
			fail("%v", err)
		}
		if filter.Limit == 0 && !cmd.Flags().Changed("limit") {
			filter.Limit = 10
		}
		opts := engine.RankOptions{Filter: filter}

		if v, _ := cmd.Flags().GetString("weights"); v != "" {
			prefs := eng.Preferences()
			if prefs.Weights, err = parseWeights(v, prefs.Weights); err != nil {
				fail("invalid --weights: %v", err)
			}
			opts.Preferences = &prefs
		}

		ranked, err := eng.RankTasks(opts)
		if err != nil {
			fail("failed to rank tasks: %v", err)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(ranked) == 0 {
			fmt.Println(gray("Nothing to do"))
			return
		}

		explain, _ := cmd.Flags().GetBool("explain")
		now := eng.Now()
		for i, r := range ranked {
			fmt.Printf("%2d. %s ", i+1, scoreColor(r.Score.Composite).Sprintf("%.3f", r.Score.Composite))
			displayTaskLine(r.Task, now)
			if explain {
				s := r.Score
				fmt.Printf("      %s\n", gray(fmt.Sprintf(
					"urgency %.2f  effort %.2f  focus %.2f  dependency %.2f  goal %.2f",
					s.Urgency, s.Effort, s.Focus, s.Dependency, s.Goal)))
			}
			if r.Score.Reasoning != "" {
				fmt.Printf("      %s\n", gray(r.Score.Reasoning))
			}
		}
	},
}

func scoreColor(composite float64) *color.Color {
	switch {
	case composite >= 0.7:
		return color.New(color.FgRed, color.Bold)
	case composite >= 0.4:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgHiBlack)
}

// parseWeights applies "name=value" pairs on top of base. The result is
// validated by the engine.
func parseWeights(s string, base types.Weights) (types.Weights, error) {
	w := base
	for _, pair := range splitList(s) {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return w, fmt.Errorf("expected name=value, got %q", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return w, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "urgency":
			w.Urgency = f
		case "effort":
			w.Effort = f
		case "focus":
			w.Focus = f
		case "dependency":
			w.Dependency = f
		case "goal":
			w.Goal = f
		default:
			return w, fmt.Errorf("unknown weight %q", name)
		}
	}
	return w, nil
}

func init() {
	addFilterFlags(rankCmd)
	rankCmd.Flags().String("weights", "", "Override scoring weights for this ranking")
	rankCmd.Flags().Bool("explain", false, "Show the score components")
	rootCmd.AddCommand(rankCmd)
}
