package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mfields/taskhive/pkg/models"
)

const taskColumns = `
	t.id, t.parent_id, t.group_id, t.title, t.description, t.priority, t.status,
	t.start_date, t.due_date, t.original_due_date, t.started_date, t.completed_date,
	t.estimated_hours, t.created_at, t.updated_at,
	g.name as group_name
`

const taskFrom = `
	FROM tasks t
	LEFT JOIN task_groups g ON t.group_id = g.id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var parentID, groupID, groupName sql.NullString
	var startDate, dueDate, originalDueDate, startedDate, completedDate sql.NullTime
	var estimatedHours sql.NullFloat64

	err := s.Scan(
		&t.ID, &parentID, &groupID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&startDate, &dueDate, &originalDueDate, &startedDate, &completedDate,
		&estimatedHours, &t.CreatedAt, &t.UpdatedAt,
		&groupName,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	if groupID.Valid {
		t.GroupID = &groupID.String
	}
	t.GroupName = groupName.String
	t.StartDate = nullTimePtr(startDate)
	t.DueDate = nullTimePtr(dueDate)
	t.OriginalDueDate = nullTimePtr(originalDueDate)
	t.StartedDate = nullTimePtr(startedDate)
	t.CompletedDate = nullTimePtr(completedDate)
	if estimatedHours.Valid {
		t.EstimatedHours = &estimatedHours.Float64
	}
	t.SyncCompleted()
	return t, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

// CreateTask inserts a new task. If t.ID is empty, a new UUID is generated.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if err := db.CreateTaskTx(ctx, db.DB, t); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

// CreateTaskTx is the transaction-scoped variant of CreateTask. Tag links
// in t.TagIDs are written alongside the row.
func (db *DB) CreateTaskTx(ctx context.Context, exec Executor, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	query := `
		INSERT INTO tasks (id, parent_id, group_id, title, description, priority, status,
		                   start_date, due_date, original_due_date, started_date, completed_date,
		                   estimated_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		t.ID, t.ParentID, t.GroupID, t.Title, t.Description, t.Priority, t.Status,
		t.StartDate, t.DueDate, t.OriginalDueDate, t.StartedDate, t.CompletedDate,
		t.EstimatedHours,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if len(t.TagIDs) > 0 {
		if err := db.ReplaceTaskTagsTx(ctx, exec, t.ID, t.TagIDs); err != nil {
			return err
		}
	}
	t.SyncCompleted()
	return nil
}

// GetTask retrieves a task by its ID. Returns nil if the task does not exist.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return db.GetTaskTx(ctx, db.DB, id)
}

func (db *DB) GetTaskTx(ctx context.Context, exec Executor, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` WHERE t.id = ?`
	t, err := scanTask(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if err := db.attachTagIDs(ctx, exec, []*models.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks returns tasks, optionally filtered by status or group id.
func (db *DB) ListTasks(ctx context.Context, status *models.TaskStatus, groupID *string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` WHERE 1=1`
	args := []any{}

	if status != nil {
		query += " AND t.status = ?"
		args = append(args, *status)
	}
	if groupID != nil {
		query += " AND t.group_id = ?"
		args = append(args, *groupID)
	}

	query += " ORDER BY t.created_at ASC, t.id"

	return db.queryTasks(ctx, db.DB, query, args...)
}

// AllTasksTx returns every task in creation order. The consistency engine
// builds its id index from this.
func (db *DB) AllTasksTx(ctx context.Context, exec Executor) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` ORDER BY t.created_at ASC, t.id`
	return db.queryTasks(ctx, exec, query)
}

// ListChildren returns the direct subtasks of a task.
func (db *DB) ListChildren(ctx context.Context, parentID string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + taskFrom + ` WHERE t.parent_id = ? ORDER BY t.created_at ASC, t.id`
	return db.queryTasks(ctx, db.DB, query, parentID)
}

func (db *DB) queryTasks(ctx context.Context, exec Executor, query string, args ...any) ([]*models.Task, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := db.attachTagIDs(ctx, exec, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (db *DB) attachTagIDs(ctx context.Context, exec Executor, tasks []*models.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	rows, err := exec.QueryContext(ctx, `SELECT task_id, tag_id FROM task_tags ORDER BY tag_id`)
	if err != nil {
		return fmt.Errorf("failed to query task tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, tagID string
		if err := rows.Scan(&taskID, &tagID); err != nil {
			return fmt.Errorf("failed to scan task tag: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.TagIDs = append(t.TagIDs, tagID)
		}
	}
	return rows.Err()
}

// UpdateTask persists every mutable column of the task.
func (db *DB) UpdateTask(ctx context.Context, t *models.Task) error {
	if err := db.UpdateTaskTx(ctx, db.DB, t); err != nil {
		return err
	}
	db.triggerChange(ctx)
	return nil
}

// UpdateTaskTx writes the task's mutable columns. The parent link is fixed
// at creation and never updated here.
func (db *DB) UpdateTaskTx(ctx context.Context, exec Executor, t *models.Task) error {
	query := `
		UPDATE tasks
		SET group_id = ?, title = ?, description = ?, priority = ?, status = ?,
		    start_date = ?, due_date = ?, original_due_date = ?, started_date = ?,
		    completed_date = ?, estimated_hours = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := exec.QueryRowContext(ctx, query,
		t.GroupID, t.Title, t.Description, t.Priority, t.Status,
		t.StartDate, t.DueDate, t.OriginalDueDate, t.StartedDate,
		t.CompletedDate, t.EstimatedHours, t.ID,
	).Scan(&t.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("task not found: %s", t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	t.SyncCompleted()
	return nil
}

// DeleteTaskTx deletes a task row. Subtask rows, tag links and activity
// entries go with it via foreign key cascades.
func (db *DB) DeleteTaskTx(ctx context.Context, exec Executor, id string) error {
	res, err := exec.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// ReplaceTaskTagsTx rewrites the task's tag links: delete then recreate.
func (db *DB) ReplaceTaskTagsTx(ctx context.Context, exec Executor, taskID string, tagIDs []string) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("failed to clear task tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := exec.ExecContext(ctx, `INSERT INTO task_tags (task_id, tag_id) VALUES (?, ?)`, taskID, tagID); err != nil {
			return fmt.Errorf("failed to link tag %s: %w", tagID, err)
		}
	}
	return nil
}

// CountTasksWithTag returns how many tasks reference the tag.
func (db *DB) CountTasksWithTag(ctx context.Context, tagID string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_tags WHERE tag_id = ?`, tagID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tag references: %w", err)
	}
	return count, nil
}
