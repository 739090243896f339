package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataDir is the per-project directory holding the database and lock file
const DataDir = ".taskpilot"

// DefaultPath is the database path used when nothing else is configured
var DefaultPath = filepath.Join(DataDir, "taskpilot.db")

// DiscoverDatabase looks for .taskpilot/*.db in the current directory only.
// Parent directories are not searched, so a nested project never picks up
// its parent's database.
//
// TASKPILOT_DB_PATH overrides discovery entirely, which keeps tests isolated.
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv("TASKPILOT_DB_PATH"); dbPath != "" {
		// Allow special values like ":memory:" or explicit paths
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .taskpilot/*.db in the specified directory only
func discoverDatabaseInDir(dir string) (string, error) {
	dataDir := filepath.Join(dir, DataDir)

	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(dataDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(dataDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run any taskpilot command with --db to create one",
		DataDir, dir)
}

// ResolvePath picks the database path: an explicit path wins, then discovery,
// then DefaultPath relative to the working directory
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path, err := DiscoverDatabase(); err == nil {
		return path
	}
	return DefaultPath
}
