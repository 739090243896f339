package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskpilot/internal/clock"
	"github.com/steveyegge/taskpilot/internal/config"
	"github.com/steveyegge/taskpilot/internal/engine"
	"github.com/steveyegge/taskpilot/internal/notify"
	"github.com/steveyegge/taskpilot/internal/storage"
)

var (
	configPath string
	dbFlag     string

	cfg        *config.Config
	logger     *slog.Logger
	dbPath     string
	lockPath   string
	eng        *engine.Engine
	dispatcher *notify.Dispatcher
)

var rootCmd = &cobra.Command{
	Use:   "taskpilot",
	Short: "Task prioritization and maintenance scheduler",
	Long: `taskpilot ranks tasks by urgency, effort, focus time, dependencies and goals,
regenerates recurring tasks, and runs a background maintenance loop that flags
overdue work, stuck tasks and goals falling behind.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if skipEngine(cmd) {
			return
		}
		if err := openEngine(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeEngine()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .taskpilot/config.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Database path (default: auto-discover .taskpilot/*.db)")
}

// skipEngine reports whether cmd runs without opening the database
func skipEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["engine"] == "none" {
			return true
		}
	}
	return false
}

// resolveConfigPath returns the explicit --config path, or the config file
// in the data directory when one exists
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	candidate := filepath.Join(storage.DataDir, config.DefaultFileName)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// resolveDBPath picks the database: --db, then the configured path, then discovery
func resolveDBPath() string {
	explicit := dbFlag
	if explicit == "" && cfg != nil {
		explicit = cfg.DatabasePath
	}
	return storage.ResolvePath(explicit)
}

// clockNow reads the wall clock in the configured time zone
func clockNow() time.Time {
	if cfg == nil {
		return time.Now()
	}
	return clock.Real{Location: cfg.Location}.Now()
}

// openEngine loads configuration, claims the database lock and builds the
// engine every command works against. The lock keeps a one-shot command from
// writing behind the back of a running server.
func openEngine(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	cfg, err = config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger = cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	dbPath = resolveDBPath()

	lockPath, err = storage.AcquireServeLock(dbPath, clock.Real{}.Now())
	if err != nil {
		return fmt.Errorf("%w\n  Use \"taskpilot ctl\" to talk to a running server", err)
	}

	store, err := storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		releaseLock()
		return fmt.Errorf("failed to open database: %w", err)
	}

	dispatcher, err = notify.NewDispatcher(newSink(), cfg.Notifications, logger)
	if err != nil {
		store.Close()
		releaseLock()
		return fmt.Errorf("failed to start notifications: %w", err)
	}

	opts := engine.DefaultOptions()
	opts.Store = store
	opts.Writer = cfg.Writer
	opts.Publisher = dispatcher
	opts.Clock = clock.Real{Location: cfg.Location}
	opts.Logger = logger
	opts.Preferences = cfg.Preferences
	opts.Goals = cfg.Goals
	opts.Dedup = cfg.Dedup

	eng, err = engine.New(ctx, opts)
	if err != nil {
		dispatcher.Close(ctx)
		store.Close()
		releaseLock()
		return fmt.Errorf("failed to load engine state: %w", err)
	}
	return nil
}

// newSink prints notifications to stdout and records them in the log
func newSink() notify.Sink {
	return notify.MultiSink{
		notify.NewConsoleSink(os.Stdout),
		notify.LogSink{Logger: logger},
	}
}

func closeEngine() {
	timeout := storage.DefaultWriterConfig().WriteTimeout
	if cfg != nil {
		timeout = cfg.Writer.WriteTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	if eng != nil {
		if err := eng.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to flush database: %v\n", err)
		}
		eng = nil
	}
	if dispatcher != nil {
		if err := dispatcher.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: notifications not delivered: %v\n", err)
		}
		dispatcher = nil
	}
	releaseLock()
}

func releaseLock() {
	if err := storage.ReleaseServeLock(lockPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	lockPath = ""
}

// fail closes the engine so buffered writes reach disk, then exits
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	closeEngine()
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
