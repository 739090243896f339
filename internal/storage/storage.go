package storage

import (
	"context"

	"github.com/steveyegge/taskpilot/internal/storage/sqlite"
	"github.com/steveyegge/taskpilot/internal/types"
)

// Store is the durability collaborator of the engine. The engine loads
// everything once at startup and afterwards only writes through a Writer.
type Store interface {
	LoadAll(ctx context.Context) ([]*types.Task, []*types.Goal, error)
	SaveTask(ctx context.Context, task *types.Task) error
	SaveGoal(ctx context.Context, goal *types.Goal) error
	Close() error
}

// PreferencesStore is implemented by stores that can also persist scoring preferences
type PreferencesStore interface {
	LoadPreferences(ctx context.Context) (*types.Preferences, error)
	SavePreferences(ctx context.Context, prefs types.Preferences) error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".taskpilot/taskpilot.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStorage creates a new SQLite storage backend
// The ctx parameter is currently unused but kept for API consistency
func NewStorage(ctx context.Context, cfg *Config) (*sqlite.SQLiteStorage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Default to standard path if not specified
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	return sqlite.New(cfg.Path)
}
