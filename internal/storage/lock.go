package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ServeLock is the lock file claiming that one taskpilot process owns the
// database. The engine keeps its state in memory and writes behind, so a
// second process would overwrite the first one's changes.
type ServeLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// LockPath returns the lock file location for a database path
func LockPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), ".serve-lock")
}

// AcquireServeLock creates the lock file next to the database.
// A lock held by a process that no longer exists is treated as stale and replaced.
// Returns the lock file path for cleanup on shutdown.
func AcquireServeLock(dbPath string, now time.Time) (lockPath string, err error) {
	lockPath = LockPath(dbPath)

	// Check for existing lock
	if data, err := os.ReadFile(lockPath); err == nil {
		var existing ServeLock
		if json.Unmarshal(data, &existing) == nil {
			if isProcessAlive(existing.PID, existing.Hostname) {
				return "", fmt.Errorf("database is in use by another taskpilot process (PID %d on %s, started %s)",
					existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
			}
			// Stale lock - will overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := ServeLock{
		Holder:    "taskpilot-serve",
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: now,
	}
	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create serve lock: %w", err)
	}
	return lockPath, nil
}

// ReleaseServeLock removes the lock file.
// Should be called on shutdown (use defer).
func ReleaseServeLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove serve lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the given hostname.
// Processes on other hosts cannot be checked and are assumed alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else
	return err == syscall.EPERM
}
