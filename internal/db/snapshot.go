package db

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mfields/taskhive/pkg/models"
)

// snapshotRecord is one JSONL line: a type tag plus exactly one payload.
type snapshotRecord struct {
	Type     string                   `json:"type"`
	Group    *models.TaskGroup        `json:"group,omitempty"`
	Tag      *models.Tag              `json:"tag,omitempty"`
	Task     *models.Task             `json:"task,omitempty"`
	Activity *models.ActivityLogEntry `json:"activity,omitempty"`
}

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (db *DB) EnableAutoSnapshot(path string) {
	db.SetOnChange(func(ctx context.Context) {
		// Hooks are best-effort; a failed export must not fail the
		// write that triggered it.
		_ = db.ExportSnapshot(ctx, path)
	})
}

// ExportSnapshot writes the whole board (groups, tags, tasks with their tag
// links, activity log) as JSONL, atomically via a temp file rename.
// Parents sort before children so a line-by-line import never sees a
// dangling parent reference.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)

	groups, err := db.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if err := enc.Encode(snapshotRecord{Type: "group", Group: g}); err != nil {
			return fmt.Errorf("failed to encode group: %w", err)
		}
	}

	tags, err := db.ListTags(ctx)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if err := enc.Encode(snapshotRecord{Type: "tag", Tag: t}); err != nil {
			return fmt.Errorf("failed to encode tag: %w", err)
		}
	}

	tasks, err := db.AllTasksTx(ctx, db.DB)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for depth := 0; depth <= models.MaxDepth; depth++ {
		for _, t := range tasks {
			if taskLevel(t, byID) != depth {
				continue
			}
			if err := enc.Encode(snapshotRecord{Type: "task", Task: t}); err != nil {
				return fmt.Errorf("failed to encode task: %w", err)
			}
		}
	}

	entries, err := db.allActivity(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := enc.Encode(snapshotRecord{Type: "activity", Activity: e}); err != nil {
			return fmt.Errorf("failed to encode activity entry: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func taskLevel(t *models.Task, byID map[string]*models.Task) int {
	level := 0
	cur := t
	for cur.ParentID != nil && level < models.MaxDepth {
		p, ok := byID[*cur.ParentID]
		if !ok {
			return level + 1
		}
		cur = p
		level++
	}
	return level
}

// ImportSnapshot reads a JSONL snapshot and populates the database inside
// one transaction. Rows whose id already exists are skipped, so importing
// into a non-empty database is additive.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec snapshotRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("invalid snapshot line %d: %w", line, err)
		}

		switch rec.Type {
		case "group":
			if rec.Group == nil {
				return fmt.Errorf("snapshot line %d: group record without payload", line)
			}
			if err := importGroup(ctx, tx, rec.Group); err != nil {
				return fmt.Errorf("snapshot line %d: %w", line, err)
			}
		case "tag":
			if rec.Tag == nil {
				return fmt.Errorf("snapshot line %d: tag record without payload", line)
			}
			if err := importTag(ctx, tx, rec.Tag); err != nil {
				return fmt.Errorf("snapshot line %d: %w", line, err)
			}
		case "task":
			if rec.Task == nil {
				return fmt.Errorf("snapshot line %d: task record without payload", line)
			}
			if err := db.importTask(ctx, tx, rec.Task); err != nil {
				return fmt.Errorf("snapshot line %d: %w", line, err)
			}
		case "activity":
			if rec.Activity == nil {
				return fmt.Errorf("snapshot line %d: activity record without payload", line)
			}
			if err := importActivity(ctx, tx, rec.Activity); err != nil {
				return fmt.Errorf("snapshot line %d: %w", line, err)
			}
		default:
			return fmt.Errorf("snapshot line %d: unknown record type %q", line, rec.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot import: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func rowExists(ctx context.Context, exec Executor, table, id string) (bool, error) {
	var one int
	err := exec.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s row: %w", table, err)
	}
	return true, nil
}

func importGroup(ctx context.Context, exec Executor, g *models.TaskGroup) error {
	exists, err := rowExists(ctx, exec, "task_groups", g.ID)
	if err != nil || exists {
		return err
	}
	_, err = exec.ExecContext(ctx,
		`INSERT INTO task_groups (id, name, description, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, g.Color, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to import group %s: %w", g.Name, err)
	}
	return nil
}

func importTag(ctx context.Context, exec Executor, t *models.Tag) error {
	exists, err := rowExists(ctx, exec, "tags", t.ID)
	if err != nil || exists {
		return err
	}
	_, err = exec.ExecContext(ctx,
		`INSERT INTO tags (id, name, color, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Color, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to import tag %s: %w", t.Name, err)
	}
	return nil
}

func (db *DB) importTask(ctx context.Context, exec Executor, t *models.Task) error {
	exists, err := rowExists(ctx, exec, "tasks", t.ID)
	if err != nil || exists {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO tasks (id, parent_id, group_id, title, description, priority, status,
		                   start_date, due_date, original_due_date, started_date, completed_date,
		                   estimated_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ParentID, t.GroupID, t.Title, t.Description, t.Priority, t.Status,
		t.StartDate, t.DueDate, t.OriginalDueDate, t.StartedDate, t.CompletedDate,
		t.EstimatedHours, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to import task %s: %w", t.Title, err)
	}
	if len(t.TagIDs) > 0 {
		if err := db.ReplaceTaskTagsTx(ctx, exec, t.ID, t.TagIDs); err != nil {
			return err
		}
	}
	return nil
}

func importActivity(ctx context.Context, exec Executor, e *models.ActivityLogEntry) error {
	exists, err := rowExists(ctx, exec, "activity_log", e.ID)
	if err != nil || exists {
		return err
	}
	isUserComment := 0
	if e.IsUserComment {
		isUserComment = 1
	}
	_, err = exec.ExecContext(ctx,
		`INSERT INTO activity_log (id, task_id, action, details, comment, is_user_comment, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.Action, e.Details, e.Comment, isUserComment, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to import activity entry: %w", err)
	}
	return nil
}

func (db *DB) allActivity(ctx context.Context) ([]*models.ActivityLogEntry, error) {
	query := `
		SELECT a.id, a.task_id, a.action, a.details, a.comment, a.is_user_comment, a.created_at,
		       t.title, 0 as is_subtask, 0 as is_direct_group_task
		FROM activity_log a
		JOIN tasks t ON a.task_id = t.id
		ORDER BY a.created_at ASC, a.id
	`
	return db.queryActivity(ctx, query)
}
