package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/steveyegge/taskpilot/internal/types"
)

// SaveGoal inserts or replaces a goal
func (s *SQLiteStorage) SaveGoal(ctx context.Context, goal *types.Goal) error {
	taskIDs, err := encodeList(goal.TaskIDs)
	if err != nil {
		return fmt.Errorf("failed to encode task ids: %w", err)
	}
	milestones, err := encodeList(goal.Milestones)
	if err != nil {
		return fmt.Errorf("failed to encode milestones: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO goals (id, title, description, type, target_date, task_ids, milestones, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			type = excluded.type,
			target_date = excluded.target_date,
			task_ids = excluded.task_ids,
			milestones = excluded.milestones,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		goal.ID, goal.Title, goal.Description, string(goal.Type), formatTimePtr(goal.TargetDate),
		taskIDs, milestones, string(goal.Status), formatTime(goal.CreatedAt), formatTime(goal.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save goal %s: %w", goal.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) loadGoals(ctx context.Context) ([]*types.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, type, target_date, task_ids, milestones, status, created_at, updated_at
		FROM goals ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []*types.Goal
	for rows.Next() {
		var (
			goal                 types.Goal
			target               sql.NullString
			taskIDs, milestones  string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&goal.ID, &goal.Title, &goal.Description, &goal.Type, &target,
			&taskIDs, &milestones, &goal.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		if goal.TargetDate, err = parseTimePtr(target); err != nil {
			return nil, err
		}
		if goal.TaskIDs, err = decodeList(taskIDs); err != nil {
			return nil, err
		}
		if goal.Milestones, err = decodeList(milestones); err != nil {
			return nil, err
		}
		if goal.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if goal.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		goals = append(goals, &goal)
	}
	return goals, rows.Err()
}

// LoadAll reads every task and goal
func (s *SQLiteStorage) LoadAll(ctx context.Context) ([]*types.Task, []*types.Goal, error) {
	tasks, err := s.loadTasks(ctx)
	if err != nil {
		return nil, nil, err
	}
	goals, err := s.loadGoals(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tasks, goals, nil
}
