package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mfields/taskhive/pkg/models"
)

// InsertActivityTx appends one activity log entry. Entries are immutable
// once written; there is deliberately no update or single-delete path.
func (db *DB) InsertActivityTx(ctx context.Context, exec Executor, e *models.ActivityLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	isUserComment := 0
	if e.IsUserComment {
		isUserComment = 1
	}

	query := `
		INSERT INTO activity_log (id, task_id, action, details, comment, is_user_comment)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING created_at
	`
	err := exec.QueryRowContext(ctx, query,
		e.ID, e.TaskID, e.Action, e.Details, e.Comment, isUserComment,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity entry: %w", err)
	}
	return nil
}

// ListActivityByTask returns the activity of a task and its direct
// subtasks, newest first. Subtask entries carry is_subtask.
func (db *DB) ListActivityByTask(ctx context.Context, taskID string) ([]*models.ActivityLogEntry, error) {
	query := `
		SELECT a.id, a.task_id, a.action, a.details, a.comment, a.is_user_comment, a.created_at,
		       t.title,
		       CASE WHEN t.parent_id = ? THEN 1 ELSE 0 END as is_subtask,
		       0 as is_direct_group_task
		FROM activity_log a
		JOIN tasks t ON a.task_id = t.id
		WHERE a.task_id = ? OR t.parent_id = ?
		ORDER BY a.created_at DESC, a.id
	`
	return db.queryActivity(ctx, query, taskID, taskID, taskID)
}

// ListActivityByGroup returns the activity of every task in the group plus
// their subtasks two levels down. Entries for tasks directly in the group
// carry is_direct_group_task.
func (db *DB) ListActivityByGroup(ctx context.Context, groupID string) ([]*models.ActivityLogEntry, error) {
	query := `
		WITH group_tasks AS (
			SELECT id FROM tasks WHERE group_id = ?
		),
		level1 AS (
			SELECT id FROM tasks WHERE parent_id IN (SELECT id FROM group_tasks)
		),
		level2 AS (
			SELECT id FROM tasks WHERE parent_id IN (SELECT id FROM level1)
		)
		SELECT a.id, a.task_id, a.action, a.details, a.comment, a.is_user_comment, a.created_at,
		       t.title,
		       0 as is_subtask,
		       CASE WHEN a.task_id IN (SELECT id FROM group_tasks) THEN 1 ELSE 0 END as is_direct_group_task
		FROM activity_log a
		JOIN tasks t ON a.task_id = t.id
		WHERE a.task_id IN (
			SELECT id FROM group_tasks
			UNION SELECT id FROM level1
			UNION SELECT id FROM level2
		)
		ORDER BY a.created_at DESC, a.id
	`
	return db.queryActivity(ctx, query, groupID)
}

func (db *DB) queryActivity(ctx context.Context, query string, args ...any) ([]*models.ActivityLogEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActivityLogEntry
	for rows.Next() {
		e := &models.ActivityLogEntry{}
		var isUserComment, isSubtask, isDirectGroupTask int
		err := rows.Scan(
			&e.ID, &e.TaskID, &e.Action, &e.Details, &e.Comment, &isUserComment, &e.CreatedAt,
			&e.TaskTitle, &isSubtask, &isDirectGroupTask,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		e.IsUserComment = isUserComment == 1
		e.IsSubtask = isSubtask == 1
		e.IsDirectGroupTask = isDirectGroupTask == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

// CountActivityForTask is a test/diagnostic helper.
func (db *DB) CountActivityForTask(ctx context.Context, taskID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_log WHERE task_id = ?`, taskID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return count, nil
}
