package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/config"
	"github.com/steveyegge/taskpilot/internal/types"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change scoring preferences",
	Long: `Show the scoring preferences in effect. Preferences saved with "prefs set"
are stored in the database and take precedence over the config file.`,
	Run: func(cmd *cobra.Command, args []string) {
		displayPreferences(eng.Preferences())
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change scoring preferences",
	Long: `Change scoring preferences. Flags not given keep their current value.

Focus windows have the form START-END*MULTIPLIER[@DAYS], e.g.
  --focus "09:00-11:00*1.5@mon,tue,wed" --focus "20:00-22:00*0.8"

Examples:
  taskpilot prefs set --work-hours 08:30-16:30
  taskpilot prefs set --weights urgency=0.4,effort=0.1,focus=0.15,dependency=0.2,goal=0.15
  taskpilot prefs set --clear-focus`,
	Run: func(cmd *cobra.Command, args []string) {
		prefs := eng.Preferences()
		flags := cmd.Flags()

		if v, _ := flags.GetString("work-hours"); v != "" {
			start, end, err := parseInterval(v)
			if err != nil {
				fail("invalid --work-hours: %v", err)
			}
			prefs.WorkHoursStart, prefs.WorkHoursEnd = start, end
		}
		if reset, _ := flags.GetBool("clear-focus"); reset {
			prefs.FocusWindows = nil
		}
		windows, _ := flags.GetStringArray("focus")
		for _, spec := range windows {
			w, err := parseFocusWindow(spec)
			if err != nil {
				fail("invalid --focus %q: %v", spec, err)
			}
			prefs.FocusWindows = append(prefs.FocusWindows, w)
		}
		if v, _ := flags.GetString("weights"); v != "" {
			var err error
			if prefs.Weights, err = parseWeights(v, prefs.Weights); err != nil {
				fail("invalid --weights: %v", err)
			}
		}

		if err := eng.SetPreferences(prefs); err != nil {
			fail("%v", err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Preferences saved; all scores will be recomputed\n", green("✓"))
		displayPreferences(eng.Preferences())
	},
}

func displayPreferences(p types.Preferences) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Scoring Preferences ==="))
	fmt.Printf("  Work hours:  %s-%s\n", p.WorkHoursStart, p.WorkHoursEnd)
	if len(p.FocusWindows) == 0 {
		fmt.Printf("  Focus:       %s\n", gray("none"))
	}
	for _, w := range p.FocusWindows {
		days := "every day"
		if len(w.Weekdays) > 0 {
			var names []string
			for _, d := range w.Weekdays {
				names = append(names, d.String()[:3])
			}
			days = strings.Join(names, ",")
		}
		peak := ""
		if w.IsPeak() {
			peak = " peak"
		}
		fmt.Printf("  Focus:       %s-%s ×%.2f %s\n", w.Start, w.End, w.Multiplier, gray(days+peak))
	}
	w := p.Weights
	fmt.Printf("  Weights:     urgency %.2f, effort %.2f, focus %.2f, dependency %.2f, goal %.2f\n\n",
		w.Urgency, w.Effort, w.Focus, w.Dependency, w.Goal)
}

// parseInterval reads "HH:MM-HH:MM"
func parseInterval(s string) (types.TimeOfDay, types.TimeOfDay, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("expected HH:MM-HH:MM, got %q", s)
	}
	start, err := types.ParseTimeOfDay(strings.TrimSpace(from))
	if err != nil {
		return 0, 0, err
	}
	end, err := types.ParseTimeOfDay(strings.TrimSpace(to))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseFocusWindow reads "START-END*MULTIPLIER[@DAYS]"
func parseFocusWindow(s string) (types.FocusWindow, error) {
	var w types.FocusWindow
	spec, days, hasDays := strings.Cut(s, "@")
	interval, mult, ok := strings.Cut(spec, "*")
	if !ok {
		return w, fmt.Errorf("missing *MULTIPLIER")
	}

	var err error
	if w.Start, w.End, err = parseInterval(interval); err != nil {
		return w, err
	}
	if w.Multiplier, err = strconv.ParseFloat(strings.TrimSpace(mult), 64); err != nil {
		return w, fmt.Errorf("invalid multiplier: %w", err)
	}
	if hasDays {
		for _, name := range splitList(days) {
			day, ok := config.ParseWeekday(name)
			if !ok {
				return w, fmt.Errorf("unknown weekday %q", name)
			}
			w.Weekdays = append(w.Weekdays, day)
		}
	}
	return w, nil
}

func init() {
	prefsSetCmd.Flags().String("work-hours", "", "Work hours as HH:MM-HH:MM")
	prefsSetCmd.Flags().StringArray("focus", nil, "Add a focus window (repeatable)")
	prefsSetCmd.Flags().Bool("clear-focus", false, "Remove all focus windows before adding new ones")
	prefsSetCmd.Flags().String("weights", "", "Scoring weights as name=value pairs")

	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}
