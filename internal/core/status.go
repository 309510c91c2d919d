package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mfields/taskhive/pkg/models"
)

// StatusUpdate is the result of a status change: the task itself plus every
// other task the cascade or re-derivation touched.
type StatusUpdate struct {
	Task     *models.Task   `json:"task"`
	Cascaded []*models.Task `json:"cascaded_tasks"`
}

// transitionResult accumulates the in-memory mutations of one settle:
// changed tasks in write order (origin, then descendants, then ancestors)
// and the activity entries to append, one per task that actually changed.
type transitionResult struct {
	changed []*models.Task
	entries []*models.ActivityLogEntry
}

// UpdateTaskStatus applies a manual status transition and settles the tree:
// completing a task cascades to all its descendants, and any change
// re-derives ancestor statuses up the chain. The whole settle commits in
// one transaction. Re-applying the current status is a no-op.
func (e *Engine) UpdateTaskStatus(ctx context.Context, taskID string, target models.TaskStatus) (*StatusUpdate, error) {
	if !target.Valid() {
		return nil, &ValidationError{TaskID: taskID, Field: "status", Message: fmt.Sprintf("unknown status %q", target)}
	}

	result := &StatusUpdate{}
	err := e.runTx(ctx, "update task status", func(tx *sql.Tx) error {
		tasks, err := e.store.AllTasksTx(ctx, tx)
		if err != nil {
			return err
		}
		tree := BuildTree(tasks)

		t, ok := tree.ByID[taskID]
		if !ok {
			return &NotFoundError{Kind: "task", ID: taskID}
		}

		now := e.clock.Now().UTC()
		res := &transitionResult{}
		e.transition(tree, t, target, now, res)
		if len(res.changed) > 0 {
			e.rederive(tree, t, now, res)
		}

		if err := e.persist(ctx, tx, res); err != nil {
			return err
		}

		result.Task = t
		for _, c := range res.changed {
			if c.ID != t.ID {
				result.Cascaded = append(result.Cascaded, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// transition applies one status change to a task in memory, stamping
// timestamps and recording activity. Completing a task recurses into its
// children unconditionally. A transition to the current status is a no-op.
func (e *Engine) transition(tree *Tree, t *models.Task, target models.TaskStatus, now time.Time, res *transitionResult) {
	if t.Status == target {
		return
	}

	prev := t.Status
	timing := ""

	switch target {
	case models.TaskStatusOngoing:
		if prev == models.TaskStatusPending && t.StartedDate == nil {
			sd := now
			t.StartedDate = &sd
		}
		if prev == models.TaskStatusCompleted {
			t.CompletedDate = nil
		}
	case models.TaskStatusCompleted:
		cd := now
		t.CompletedDate = &cd
		if t.StartedDate == nil {
			sd := now
			t.StartedDate = &sd
		}
		timing = e.stampCompletionDueDate(t, now)
	case models.TaskStatusPending:
		t.StartedDate = nil
		t.CompletedDate = nil
	}

	t.Status = target
	t.SyncCompleted()
	res.changed = append(res.changed, t)

	action := models.ActionUpdated
	if target == models.TaskStatusCompleted {
		action = models.ActionCompleted
	}
	details := fmt.Sprintf("status changed from %s to %s", prev, target)
	if timing != "" {
		details += " (" + timing + ")"
	}
	res.entries = append(res.entries, &models.ActivityLogEntry{
		TaskID:  t.ID,
		Action:  action,
		Details: details,
	})

	if target == models.TaskStatusCompleted {
		for _, child := range tree.Children[t.ID] {
			e.transition(tree, child, models.TaskStatusCompleted, now, res)
		}
	}
}

// stampCompletionDueDate preserves the originally planned due date on first
// completion, overwrites the due date with the completion timestamp, and
// returns the human-readable timing delta.
func (e *Engine) stampCompletionDueDate(t *models.Task, now time.Time) string {
	if t.DueDate == nil && t.OriginalDueDate == nil {
		return "no prior due date"
	}

	planned := t.OriginalDueDate
	if planned == nil {
		od := *t.DueDate
		t.OriginalDueDate = &od
		planned = t.OriginalDueDate
	}
	if t.DueDate != nil {
		cd := now
		t.DueDate = &cd
	}

	return timingDelta(now, *planned)
}

func timingDelta(completedAt, planned time.Time) string {
	days := daysBetween(planned, completedAt)
	switch {
	case days < 0:
		return fmt.Sprintf("%s early", pluralDays(-days))
	case days > 0:
		return fmt.Sprintf("%s late", pluralDays(days))
	default:
		return "on time"
	}
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// rederive walks up from the changed task, re-classifying each ancestor
// from its children's statuses and transitioning it when the target
// differs. A parent already mid-transition is skipped to keep concurrent
// settles from looping or double-logging.
func (e *Engine) rederive(tree *Tree, t *models.Task, now time.Time, res *transitionResult) {
	current := t
	for current.ParentID != nil {
		parent, ok := tree.ByID[*current.ParentID]
		if !ok {
			return
		}
		if !e.beginDerivation(parent.ID) {
			return
		}
		target, ok := deriveTarget(tree.Children[parent.ID])
		changed := ok && parent.Status != target
		if changed {
			e.transition(tree, parent, target, now, res)
		}
		e.endDerivation(parent.ID)
		if !changed {
			return
		}
		current = parent
	}
}

// deriveTarget classifies a parent's status from its children: all
// completed wins, all pending wins, anything in between is ongoing.
func deriveTarget(children []*models.Task) (models.TaskStatus, bool) {
	if len(children) == 0 {
		return "", false
	}

	allCompleted := true
	allPending := true
	for _, c := range children {
		if c.Status != models.TaskStatusCompleted {
			allCompleted = false
		}
		if c.Status != models.TaskStatusPending {
			allPending = false
		}
	}

	switch {
	case allCompleted:
		return models.TaskStatusCompleted, true
	case allPending:
		return models.TaskStatusPending, true
	default:
		return models.TaskStatusOngoing, true
	}
}

// persist writes the settled tasks and their activity entries in the order
// they changed: origin first, then cascaded descendants, then re-derived
// ancestors.
func (e *Engine) persist(ctx context.Context, tx *sql.Tx, res *transitionResult) error {
	for _, t := range res.changed {
		if err := e.store.UpdateTaskTx(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, entry := range res.entries {
		if err := e.store.InsertActivityTx(ctx, tx, entry); err != nil {
			return err
		}
	}
	return nil
}
