package core

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/mfields/taskhive/pkg/models"
)

// BulkUpdateSpec is a layered update: Common applies to every selected
// task, Individual overrides per selected task id, and Subtasks overrides
// per subtask id independently of the parent's update. Later layers win
// per field.
type BulkUpdateSpec struct {
	Common     FieldPatch            `json:"common"`
	Individual map[string]FieldPatch `json:"individual,omitempty"`
	Subtasks   map[string]FieldPatch `json:"subtasks,omitempty"`
}

func (s BulkUpdateSpec) isEmpty() bool {
	if !s.Common.IsEmpty() {
		return false
	}
	for _, p := range s.Individual {
		if !p.IsEmpty() {
			return false
		}
	}
	for _, p := range s.Subtasks {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// BulkUpdate applies the layered spec to the selected tasks in one atomic
// transaction. The whole batch is validated before the first write; any
// failure rolls everything back.
func (e *Engine) BulkUpdate(ctx context.Context, taskIDs []string, spec BulkUpdateSpec) ([]*models.Task, error) {
	if len(taskIDs) == 0 {
		return nil, &ValidationError{Field: "task_ids", Message: "no tasks selected"}
	}
	if spec.isEmpty() {
		return nil, &ValidationError{Message: "no fields selected for update"}
	}

	var updated []*models.Task
	err := e.runTx(ctx, "bulk update", func(tx *sql.Tx) error {
		tasks, err := e.store.AllTasksTx(ctx, tx)
		if err != nil {
			return err
		}
		tree := BuildTree(tasks)

		selected := make(map[string]struct{}, len(taskIDs))
		for _, id := range taskIDs {
			if _, ok := tree.ByID[id]; !ok {
				return &NotFoundError{Kind: "task", ID: id}
			}
			selected[id] = struct{}{}
		}

		// Build one effective field set per task before validating, so
		// validation and execution share a single normalized view.
		effective := make(map[string]FieldPatch)
		for _, id := range taskIDs {
			p := spec.Common
			if ind, ok := spec.Individual[id]; ok {
				p = p.Merge(ind)
			}
			effective[id] = p
		}
		for sid, sp := range spec.Subtasks {
			st, ok := tree.ByID[sid]
			if !ok {
				return &NotFoundError{Kind: "task", ID: sid}
			}
			if !underSelection(st, tree, selected) {
				return &ValidationError{TaskID: sid, Field: "subtasks", Message: "subtask does not belong to a selected task"}
			}
			effective[sid] = effective[sid].Merge(sp)
		}

		order := append([]string(nil), taskIDs...)
		for sid := range spec.Subtasks {
			if _, isSelected := selected[sid]; !isSelected {
				order = append(order, sid)
			}
		}
		// Selected tasks keep the caller's order; the appended subtask
		// ids are sorted so execution is deterministic.
		sort.Strings(order[len(taskIDs):])

		for _, id := range order {
			p := effective[id]
			if err := p.validate(id); err != nil {
				return err
			}
			if err := e.checkReferences(ctx, tx, p); err != nil {
				return err
			}
			// Cross-check the merged patch against the task's stored dates,
			// the same rule the single-task update applies.
			preview := *tree.ByID[id]
			p.apply(&preview)
			if preview.StartDate != nil && preview.DueDate != nil && preview.StartDate.After(*preview.DueDate) {
				return &ValidationError{TaskID: id, Field: "start_date", Message: "start date is after due date"}
			}
		}

		now := e.clock.Now().UTC()
		res := &transitionResult{}
		for _, id := range order {
			p := effective[id]
			if p.IsEmpty() {
				continue
			}
			t := tree.ByID[id]

			p.apply(t)
			if err := e.store.UpdateTaskTx(ctx, tx, t); err != nil {
				return err
			}
			if p.TagIDs != nil {
				if err := e.store.ReplaceTaskTagsTx(ctx, tx, t.ID, *p.TagIDs); err != nil {
					return err
				}
			}
			if len(p.fieldNames()) > 0 {
				if err := e.store.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
					TaskID:  t.ID,
					Action:  models.ActionUpdated,
					Details: bulkDetails(id, spec, selected),
				}); err != nil {
					return err
				}
			}

			if target, ok := p.TargetStatus(); ok && t.Status != target {
				e.transition(tree, t, target, now, res)
				e.rederive(tree, t, now, res)
			}

			updated = append(updated, t)
		}

		return e.persist(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// underSelection reports whether t or one of its ancestors is in the
// selected id set.
func underSelection(t *models.Task, tree *Tree, selected map[string]struct{}) bool {
	cur := t
	for hops := 0; cur != nil && hops <= models.MaxDepth; hops++ {
		if _, ok := selected[cur.ID]; ok {
			return true
		}
		if cur.ParentID == nil {
			return false
		}
		cur = tree.ByID[*cur.ParentID]
	}
	return false
}

func bulkDetails(id string, spec BulkUpdateSpec, selected map[string]struct{}) string {
	var parts []string
	if _, isSelected := selected[id]; isSelected {
		if !spec.Common.IsEmpty() {
			parts = append(parts, "common fields")
		}
		if p, ok := spec.Individual[id]; ok && !p.IsEmpty() {
			parts = append(parts, "individual overrides")
		}
	}
	if p, ok := spec.Subtasks[id]; ok && !p.IsEmpty() {
		parts = append(parts, "subtask overrides")
	}
	if len(parts) == 0 {
		return "updated via bulk edit"
	}
	return "updated via bulk edit with " + strings.Join(parts, ", ")
}

// BulkCreateInput creates N root tasks in one transaction. Shared fields
// apply to every title, PerTitle overrides win per task, and SubtaskTitles
// are stamped under every created root.
type BulkCreateInput struct {
	Titles        []string              `json:"titles"`
	Shared        FieldPatch            `json:"shared"`
	PerTitle      map[string]FieldPatch `json:"per_title,omitempty"`
	SubtaskTitles []string              `json:"subtask_titles,omitempty"`
}

// BulkCreate creates all roots and their stamped subtasks atomically.
// Case-insensitive duplicate titles within the batch are rejected before
// any row is written.
func (e *Engine) BulkCreate(ctx context.Context, in BulkCreateInput) ([]*models.Task, error) {
	if len(in.Titles) == 0 {
		return nil, &ValidationError{Field: "titles", Message: "no titles given"}
	}

	seen := make(map[string]string, len(in.Titles))
	for _, title := range in.Titles {
		trimmed := strings.TrimSpace(title)
		if err := (FieldPatch{Title: &trimmed}).validate(""); err != nil {
			return nil, err
		}
		key := strings.ToLower(trimmed)
		if prev, dup := seen[key]; dup {
			return nil, &ConflictError{Message: fmt.Sprintf("duplicate title in batch: %q and %q", prev, title)}
		}
		seen[key] = title
	}
	for _, sub := range in.SubtaskTitles {
		trimmed := strings.TrimSpace(sub)
		if err := (FieldPatch{Title: &trimmed}).validate(""); err != nil {
			return nil, err
		}
	}
	if err := in.Shared.validate(""); err != nil {
		return nil, err
	}
	for title, p := range in.PerTitle {
		if err := p.validate(""); err != nil {
			return nil, fmt.Errorf("overrides for %q: %w", title, err)
		}
	}

	var created []*models.Task
	err := e.runTx(ctx, "bulk create", func(tx *sql.Tx) error {
		if err := e.checkReferences(ctx, tx, in.Shared); err != nil {
			return err
		}
		for _, p := range in.PerTitle {
			if err := e.checkReferences(ctx, tx, p); err != nil {
				return err
			}
		}

		for _, title := range in.Titles {
			p := in.Shared
			if over, ok := in.PerTitle[title]; ok {
				p = p.Merge(over)
			}

			t := &models.Task{
				Title:  strings.TrimSpace(title),
				Status: models.TaskStatusPending,
			}
			p.apply(t)
			t.Title = strings.TrimSpace(title) // title layer never renames the batch entry
			if t.StartDate != nil && t.DueDate != nil && t.StartDate.After(*t.DueDate) {
				return &ValidationError{Field: "start_date", Message: fmt.Sprintf("start date is after due date for %q", title)}
			}

			if err := e.store.CreateTaskTx(ctx, tx, t); err != nil {
				return err
			}
			if err := e.store.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
				TaskID:  t.ID,
				Action:  models.ActionCreated,
				Details: fmt.Sprintf("created via bulk create (%d tasks)", len(in.Titles)),
			}); err != nil {
				return err
			}

			for _, sub := range in.SubtaskTitles {
				st := &models.Task{
					ParentID: &t.ID,
					GroupID:  t.GroupID,
					Title:    strings.TrimSpace(sub),
					Priority: t.Priority,
					Status:   models.TaskStatusPending,
				}
				if err := e.store.CreateTaskTx(ctx, tx, st); err != nil {
					return err
				}
				if err := e.store.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
					TaskID:  st.ID,
					Action:  models.ActionCreated,
					Details: fmt.Sprintf("created as subtask of %q via bulk create", t.Title),
				}); err != nil {
					return err
				}
			}

			created = append(created, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
