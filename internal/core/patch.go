package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mfields/taskhive/internal/db"
	"github.com/mfields/taskhive/pkg/models"
)

// FieldPatch is a partial task update. Nil means "leave unchanged"; for
// GroupID an empty string clears the group, and an empty TagIDs slice
// clears all tag links.
type FieldPatch struct {
	Title          *string            `json:"title,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Priority       *models.Priority   `json:"priority,omitempty"`
	Status         *models.TaskStatus `json:"status,omitempty"`
	Completed      *bool              `json:"completed,omitempty"`
	StartDate      *time.Time         `json:"start_date,omitempty"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	GroupID        *string            `json:"group_id,omitempty"`
	EstimatedHours *float64           `json:"estimated_hours,omitempty"`
	TagIDs         *[]string          `json:"tag_ids,omitempty"`
}

func (p FieldPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Status == nil && p.Completed == nil && p.StartDate == nil &&
		p.DueDate == nil && p.GroupID == nil && p.EstimatedHours == nil &&
		p.TagIDs == nil
}

// Merge layers over on top of p: any field set in over wins.
func (p FieldPatch) Merge(over FieldPatch) FieldPatch {
	out := p
	if over.Title != nil {
		out.Title = over.Title
	}
	if over.Description != nil {
		out.Description = over.Description
	}
	if over.Priority != nil {
		out.Priority = over.Priority
	}
	if over.Status != nil {
		out.Status = over.Status
	}
	if over.Completed != nil {
		out.Completed = over.Completed
	}
	if over.StartDate != nil {
		out.StartDate = over.StartDate
	}
	if over.DueDate != nil {
		out.DueDate = over.DueDate
	}
	if over.GroupID != nil {
		out.GroupID = over.GroupID
	}
	if over.EstimatedHours != nil {
		out.EstimatedHours = over.EstimatedHours
	}
	if over.TagIDs != nil {
		out.TagIDs = over.TagIDs
	}
	return out
}

// TargetStatus resolves the tri-state status of a patch. The explicit
// status field wins over the legacy completed boolean; completed=false maps
// to pending.
func (p FieldPatch) TargetStatus() (models.TaskStatus, bool) {
	if p.Status != nil {
		return *p.Status, true
	}
	if p.Completed != nil {
		if *p.Completed {
			return models.TaskStatusCompleted, true
		}
		return models.TaskStatusPending, true
	}
	return "", false
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// validate checks a patch's field values in isolation, before any write.
// taskID tags the resulting error for the caller.
func (p FieldPatch) validate(taskID string) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return &ValidationError{TaskID: taskID, Field: "title", Message: "must not be empty"}
		}
		if len(title) > models.MaxTitleLength {
			return &ValidationError{TaskID: taskID, Field: "title", Message: fmt.Sprintf("exceeds %d characters", models.MaxTitleLength)}
		}
	}
	if p.Description != nil && len(*p.Description) > models.MaxDescriptionLength {
		return &ValidationError{TaskID: taskID, Field: "description", Message: fmt.Sprintf("exceeds %d characters", models.MaxDescriptionLength)}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &ValidationError{TaskID: taskID, Field: "priority", Message: fmt.Sprintf("unknown priority %q", *p.Priority)}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{TaskID: taskID, Field: "status", Message: fmt.Sprintf("unknown status %q", *p.Status)}
	}
	if p.EstimatedHours != nil && (*p.EstimatedHours < 0 || *p.EstimatedHours > models.MaxEstimatedHours) {
		return &ValidationError{TaskID: taskID, Field: "estimated_hours", Message: fmt.Sprintf("must be between 0 and %d", models.MaxEstimatedHours)}
	}
	if p.StartDate != nil && p.DueDate != nil && p.StartDate.After(*p.DueDate) {
		return &ValidationError{TaskID: taskID, Field: "start_date", Message: "start date is after due date"}
	}
	return nil
}

// checkReferences verifies that the group and tags a patch points at exist.
func (e *Engine) checkReferences(ctx context.Context, exec db.Executor, p FieldPatch) error {
	if p.GroupID != nil && *p.GroupID != "" {
		g, err := e.store.GetGroupTx(ctx, exec, *p.GroupID)
		if err != nil {
			return err
		}
		if g == nil {
			return &NotFoundError{Kind: "group", ID: *p.GroupID}
		}
	}
	if p.TagIDs != nil {
		missing, err := e.store.TagsExistTx(ctx, exec, *p.TagIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return &NotFoundError{Kind: "tag", ID: missing[0]}
		}
	}
	return nil
}

// apply copies the patch's non-status fields onto the task in memory.
// Status changes go through the propagation engine instead.
func (p FieldPatch) apply(t *models.Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.StartDate != nil {
		t.StartDate = p.StartDate
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.GroupID != nil {
		if *p.GroupID == "" {
			t.GroupID = nil
		} else {
			gid := *p.GroupID
			t.GroupID = &gid
		}
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = p.EstimatedHours
	}
	if p.TagIDs != nil {
		t.TagIDs = append([]string(nil), (*p.TagIDs)...)
	}
}

// fieldNames lists the non-status fields a patch touches, for activity
// details.
func (p FieldPatch) fieldNames() []string {
	var names []string
	if p.Title != nil {
		names = append(names, "title")
	}
	if p.Description != nil {
		names = append(names, "description")
	}
	if p.Priority != nil {
		names = append(names, "priority")
	}
	if p.StartDate != nil {
		names = append(names, "start_date")
	}
	if p.DueDate != nil {
		names = append(names, "due_date")
	}
	if p.GroupID != nil {
		names = append(names, "group")
	}
	if p.EstimatedHours != nil {
		names = append(names, "estimated_hours")
	}
	if p.TagIDs != nil {
		names = append(names, "tags")
	}
	return names
}
