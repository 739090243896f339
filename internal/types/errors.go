package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching. Every typed error below unwraps to one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrCycle      = errors.New("dependency cycle")
	ErrConfig     = errors.New("invalid configuration")
)

// ValidationError reports malformed caller input
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// EntityKind names the kind of entity a NotFoundError refers to
type EntityKind string

const (
	EntityTask EntityKind = "task"
	EntityGoal EntityKind = "goal"
)

// NotFoundError reports an unknown task or goal id
type NotFoundError struct {
	Kind EntityKind
	ID   string
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(kind EntityKind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CycleError reports a dependency insertion that would close a cycle.
// Path starts and ends at the same task id.
type CycleError struct {
	TaskID      string
	DependsOnID string
	Path        []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("dependency %s -> %s would create a cycle", e.TaskID, e.DependsOnID)
	}
	return fmt.Sprintf("dependency %s -> %s would create a cycle: %s",
		e.TaskID, e.DependsOnID, strings.Join(e.Path, " → "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// ConfigError reports invalid preferences or engine configuration
type ConfigError struct {
	Field   string
	Message string
}

// NewConfigError creates a ConfigError
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
