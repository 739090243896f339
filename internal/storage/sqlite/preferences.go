package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/steveyegge/taskpilot/internal/types"
)

const preferencesKey = "preferences"

// LoadPreferences returns the persisted scoring preferences, or nil if none were saved
func (s *SQLiteStorage) LoadPreferences(ctx context.Context) (*types.Preferences, error) {
	raw, err := s.GetConfig(ctx, preferencesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var prefs types.Preferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("invalid stored preferences: %w", err)
	}
	return &prefs, nil
}

// SavePreferences persists the scoring preferences
func (s *SQLiteStorage) SavePreferences(ctx context.Context, prefs types.Preferences) error {
	b, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.SetConfig(ctx, preferencesKey, string(b)); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
