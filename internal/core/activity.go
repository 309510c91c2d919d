package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mfields/taskhive/pkg/models"
)

// GetTaskActivity returns the activity of a task and its direct subtasks,
// newest first.
func (e *Engine) GetTaskActivity(ctx context.Context, taskID string) ([]*models.ActivityLogEntry, error) {
	t, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, storageErr("get task activity", err)
	}
	if t == nil {
		return nil, &NotFoundError{Kind: "task", ID: taskID}
	}

	entries, err := e.store.ListActivityByTask(ctx, taskID)
	if err != nil {
		return nil, storageErr("get task activity", err)
	}
	return entries, nil
}

// GetGroupActivity returns the activity of every task in the group and
// their subtasks, newest first.
func (e *Engine) GetGroupActivity(ctx context.Context, groupID string) ([]*models.ActivityLogEntry, error) {
	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storageErr("get group activity", err)
	}
	if g == nil {
		return nil, &NotFoundError{Kind: "group", ID: groupID}
	}

	entries, err := e.store.ListActivityByGroup(ctx, groupID)
	if err != nil {
		return nil, storageErr("get group activity", err)
	}
	return entries, nil
}

// AddComment appends a user comment to a task's activity log. Comments
// never participate in status propagation.
func (e *Engine) AddComment(ctx context.Context, taskID, text string) (*models.ActivityLogEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{TaskID: taskID, Field: "comment", Message: "must not be empty"}
	}

	var entry *models.ActivityLogEntry
	err := e.runTx(ctx, "add comment", func(tx *sql.Tx) error {
		t, err := e.store.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t == nil {
			return &NotFoundError{Kind: "task", ID: taskID}
		}

		entry = &models.ActivityLogEntry{
			TaskID:        taskID,
			Action:        models.ActionComment,
			Details:       "user comment",
			Comment:       &text,
			IsUserComment: true,
		}
		return e.store.InsertActivityTx(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
