package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/taskpilot/internal/types"
)

const taskColumns = `id, title, description, status, priority, due_date, estimated_effort_ns,
	dependencies, goal_ids, recurrence, milestones, progress, created_at, updated_at,
	completed_at, last_scored_at, series_id, successor_id, recurrence_state`

// SaveTask inserts or replaces a task
func (s *SQLiteStorage) SaveTask(ctx context.Context, task *types.Task) error {
	deps, err := encodeList(task.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to encode dependencies: %w", err)
	}
	goalIDs, err := encodeList(task.GoalIDs)
	if err != nil {
		return fmt.Errorf("failed to encode goal ids: %w", err)
	}
	milestones, err := encodeList(task.Milestones)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}
	var recurrence sql.NullString
	if task.Recurrence != nil {
		b, err := json.Marshal(task.Recurrence)
		if err != nil {
			return fmt.Errorf("failed to encode recurrence: %w", err)
		}
		recurrence = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			due_date = excluded.due_date,
			estimated_effort_ns = excluded.estimated_effort_ns,
			dependencies = excluded.dependencies,
			goal_ids = excluded.goal_ids,
			recurrence = excluded.recurrence,
			milestones = excluded.milestones,
			progress = excluded.progress,
			updated_at = excluded.updated_at,
			completed_at = excluded.completed_at,
			last_scored_at = excluded.last_scored_at,
			series_id = excluded.series_id,
			successor_id = excluded.successor_id,
			recurrence_state = excluded.recurrence_state
	`,
		task.ID, task.Title, task.Description, string(task.Status), string(task.Priority),
		formatTimePtr(task.DueDate), int64(task.EstimatedEffort),
		deps, goalIDs, recurrence, milestones, task.Progress,
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		formatTimePtr(task.CompletedAt), formatTimePtr(task.LastScoredAt),
		task.SeriesID, task.SuccessorID, string(task.RecurrenceState),
	)
	if err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns a single task, or nil if it does not exist
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return task, nil
}

func (s *SQLiteStorage) loadTasks(ctx context.Context) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*types.Task, error) {
	var (
		task                                       types.Task
		dueDate, completedAt, lastScored, recurStr sql.NullString
		createdAt, updatedAt                       string
		effort                                     int64
		deps, goalIDs, milestones                  string
	)
	err := row.Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.Priority,
		&dueDate, &effort, &deps, &goalIDs, &recurStr, &milestones, &task.Progress,
		&createdAt, &updatedAt, &completedAt, &lastScored,
		&task.SeriesID, &task.SuccessorID, &task.RecurrenceState,
	)
	if err != nil {
		return nil, err
	}
	task.EstimatedEffort = time.Duration(effort)

	if task.DueDate, err = parseTimePtr(dueDate); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if task.LastScoredAt, err = parseTimePtr(lastScored); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if task.Dependencies, err = decodeList(deps); err != nil {
		return nil, err
	}
	if task.GoalIDs, err = decodeList(goalIDs); err != nil {
		return nil, err
	}
	if task.Milestones, err = decodeList(milestones); err != nil {
		return nil, err
	}
	if recurStr.Valid && recurStr.String != "" {
		var rule types.RecurrenceRule
		if err := json.Unmarshal([]byte(recurStr.String), &rule); err != nil {
			return nil, fmt.Errorf("invalid recurrence for task %s: %w", task.ID, err)
		}
		task.Recurrence = &rule
	}
	return &task, nil
}
