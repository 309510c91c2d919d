package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mfields/taskhive/pkg/models"
)

type CreateTaskInput struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Priority       models.Priority `json:"priority"`
	ParentID       *string         `json:"parent_id,omitempty"`
	GroupID        *string         `json:"group_id,omitempty"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	TagIDs         []string        `json:"tag_ids,omitempty"`
	EstimatedHours *float64        `json:"estimated_hours,omitempty"`
}

// CreateTask creates a root task or a subtask. Subtask eligibility is
// re-checked against the persisted state inside the transaction, never
// against a client snapshot. Adding a subtask to a completed parent reverts
// the parent to pending and re-derives its ancestors.
func (e *Engine) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	patch := FieldPatch{
		Title:          &in.Title,
		Description:    &in.Description,
		StartDate:      in.StartDate,
		DueDate:        in.DueDate,
		EstimatedHours: in.EstimatedHours,
	}
	if in.Priority != "" {
		patch.Priority = &in.Priority
	}
	if err := patch.validate(""); err != nil {
		return nil, err
	}

	var created *models.Task
	err := e.runTx(ctx, "create task", func(tx *sql.Tx) error {
		tasks, err := e.store.AllTasksTx(ctx, tx)
		if err != nil {
			return err
		}
		tree := BuildTree(tasks)

		refs := FieldPatch{GroupID: in.GroupID}
		if len(in.TagIDs) > 0 {
			refs.TagIDs = &in.TagIDs
		}
		if err := e.checkReferences(ctx, tx, refs); err != nil {
			return err
		}

		var parent *models.Task
		if in.ParentID != nil {
			p, ok := tree.ByID[*in.ParentID]
			if !ok {
				return &NotFoundError{Kind: "task", ID: *in.ParentID}
			}
			if !CanHaveSubtasks(p, tree.ByID) {
				return &DepthLimitError{ParentID: p.ID, Depth: DepthOf(p, tree.ByID)}
			}
			parent = p
		}

		t := &models.Task{
			ParentID:       in.ParentID,
			GroupID:        in.GroupID,
			Title:          strings.TrimSpace(in.Title),
			Description:    in.Description,
			Priority:       in.Priority,
			Status:         models.TaskStatusPending,
			StartDate:      in.StartDate,
			DueDate:        in.DueDate,
			EstimatedHours: in.EstimatedHours,
			TagIDs:         in.TagIDs,
		}
		if err := e.store.CreateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if err := e.store.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
			TaskID:  t.ID,
			Action:  models.ActionCreated,
			Details: "task created",
		}); err != nil {
			return err
		}

		// New, incomplete work invalidates a parent's prior completion.
		if parent != nil && parent.Status == models.TaskStatusCompleted {
			now := e.clock.Now().UTC()
			res := &transitionResult{}
			e.transition(tree, parent, models.TaskStatusPending, now, res)
			e.rederive(tree, parent, now, res)
			if err := e.persist(ctx, tx, res); err != nil {
				return err
			}
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetTask returns one task.
func (e *Engine) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, storageErr("get task", err)
	}
	if t == nil {
		return nil, &NotFoundError{Kind: "task", ID: id}
	}
	return t, nil
}

// ListTasks returns tasks with optional status and group filters.
func (e *Engine) ListTasks(ctx context.Context, status *models.TaskStatus, groupID *string) ([]*models.Task, error) {
	if status != nil && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *status)}
	}
	tasks, err := e.store.ListTasks(ctx, status, groupID)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	return tasks, nil
}

// UpdateTaskFields applies a partial field update to one task. A status (or
// legacy completed) change in the patch is routed through the propagation
// engine inside the same transaction.
func (e *Engine) UpdateTaskFields(ctx context.Context, taskID string, patch FieldPatch) (*models.Task, error) {
	if patch.IsEmpty() {
		return nil, &ValidationError{TaskID: taskID, Message: "no fields selected for update"}
	}
	if err := patch.validate(taskID); err != nil {
		return nil, err
	}

	var updated *models.Task
	err := e.runTx(ctx, "update task", func(tx *sql.Tx) error {
		tasks, err := e.store.AllTasksTx(ctx, tx)
		if err != nil {
			return err
		}
		tree := BuildTree(tasks)

		t, ok := tree.ByID[taskID]
		if !ok {
			return &NotFoundError{Kind: "task", ID: taskID}
		}
		if err := e.checkReferences(ctx, tx, patch); err != nil {
			return err
		}

		patch.apply(t)
		if t.StartDate != nil && t.DueDate != nil && t.StartDate.After(*t.DueDate) {
			return &ValidationError{TaskID: taskID, Field: "start_date", Message: "start date is after due date"}
		}

		if err := e.store.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
		if patch.TagIDs != nil {
			if err := e.store.ReplaceTaskTagsTx(ctx, tx, t.ID, *patch.TagIDs); err != nil {
				return err
			}
		}
		if names := patch.fieldNames(); len(names) > 0 {
			if err := e.store.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
				TaskID:  t.ID,
				Action:  models.ActionUpdated,
				Details: "updated " + strings.Join(names, ", "),
			}); err != nil {
				return err
			}
		}

		if target, ok := patch.TargetStatus(); ok && t.Status != target {
			now := e.clock.Now().UTC()
			res := &transitionResult{}
			e.transition(tree, t, target, now, res)
			e.rederive(tree, t, now, res)
			if err := e.persist(ctx, tx, res); err != nil {
				return err
			}
		}

		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteResult names the requested deletion and every descendant removed
// with it.
type DeleteResult struct {
	DeletedID         string   `json:"deleted_id"`
	CascadeDeletedIDs []string `json:"cascade_deleted_ids"`
}

// DeleteTask removes a task and its whole subtree. Deleting a subtask logs
// SUBTASK_DELETED on the parent and re-derives the parent from the
// remaining children.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) (*DeleteResult, error) {
	result := &DeleteResult{DeletedID: taskID}
	err := e.runTx(ctx, "delete task", func(tx *sql.Tx) error {
		tasks, err := e.store.AllTasksTx(ctx, tx)
		if err != nil {
			return err
		}
		tree := BuildTree(tasks)

		t, ok := tree.ByID[taskID]
		if !ok {
			return &NotFoundError{Kind: "task", ID: taskID}
		}

		for _, d := range tree.Descendants(taskID) {
			result.CascadeDeletedIDs = append(result.CascadeDeletedIDs, d.ID)
		}

		// The row delete cascades to descendants, tag links and
		// activity entries via foreign keys.
		if err := e.store.DeleteTaskTx(ctx, tx, taskID); err != nil {
			return err
		}

		if t.ParentID == nil {
			return nil
		}
		parent, ok := tree.ByID[*t.ParentID]
		if !ok {
			return nil
		}
		if err := e.store.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
			TaskID:  parent.ID,
			Action:  models.ActionSubtaskDeleted,
			Details: fmt.Sprintf("subtask %q deleted", t.Title),
		}); err != nil {
			return err
		}

		// Re-derive the parent against the remaining children.
		remaining := tree.Children[parent.ID][:0:0]
		for _, c := range tree.Children[parent.ID] {
			if c.ID != t.ID {
				remaining = append(remaining, c)
			}
		}
		tree.Children[parent.ID] = remaining
		delete(tree.ByID, t.ID)

		now := e.clock.Now().UTC()
		res := &transitionResult{}
		if target, ok := deriveTarget(remaining); ok && parent.Status != target {
			if e.beginDerivation(parent.ID) {
				e.transition(tree, parent, target, now, res)
				e.endDerivation(parent.ID)
				e.rederive(tree, parent, now, res)
			}
		}
		return e.persist(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
