package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/config"
	"github.com/steveyegge/taskpilot/internal/storage"
)

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Inspect and create configuration files",
	Annotations: map[string]string{"engine": "none"},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Long: `Write the default configuration as YAML. Without a path the file is created
at .taskpilot/config.yaml, where every command picks it up automatically.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := filepath.Join(storage.DataDir, config.DefaultFileName)
		if len(args) > 0 {
			path = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", path)
			os.Exit(1)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create directory: %v\n", err)
			os.Exit(1)
		}
		if err := config.SaveDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Wrote %s\n", green("✓"), path)
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the resolved values",
	Run: func(cmd *cobra.Command, args []string) {
		path := resolveConfigPath()
		c, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cfg = c

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		source := path
		if source == "" {
			source = "built-in defaults"
		}
		fmt.Printf("%s Configuration valid %s\n", green("✓"), gray("("+source+")"))
		fmt.Printf("  Database:     %s\n", resolveDBPath())
		fmt.Printf("  Time zone:    %s\n", c.Location)
		fmt.Printf("  Log:          %s, %s\n", c.LogLevel, c.LogFormat)
		m := c.Maintenance
		fmt.Printf("  Maintenance:  enabled=%t every %v, stuck after %v, timeout %v\n",
			m.Enabled, m.Interval, m.StuckThreshold, m.CycleTimeout)
		fmt.Printf("  Dedupe:       %v window, %d entries\n", c.Dedup.Window, c.Dedup.MaxEntries)
		displayPreferences(c.Preferences)
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
