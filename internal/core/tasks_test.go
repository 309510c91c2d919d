package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mfields/taskhive/pkg/models"
)

func TestCreateTaskDefaults(t *testing.T) {
	e, _ := newTestEngine(t)

	task := mustCreate(t, e, CreateTaskInput{Title: "  Trimmed  "})
	if task.Title != "Trimmed" {
		t.Errorf("Expected trimmed title, got %q", task.Title)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected new task pending, got %s", task.Status)
	}
	if task.ID == "" {
		t.Error("Expected an id to be assigned")
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		t.Error("Expected CreatedAt and UpdatedAt to be set")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// 1. Empty title
	if _, err := e.CreateTask(ctx, CreateTaskInput{Title: "   "}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty title, got %v", err)
	}

	// 2. Title over the limit
	long := strings.Repeat("x", models.MaxTitleLength+1)
	if _, err := e.CreateTask(ctx, CreateTaskInput{Title: long}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for long title, got %v", err)
	}

	// 3. Unknown priority
	if _, err := e.CreateTask(ctx, CreateTaskInput{Title: "T", Priority: "CRITICAL"}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown priority, got %v", err)
	}

	// 4. Negative estimate
	bad := -1.0
	if _, err := e.CreateTask(ctx, CreateTaskInput{Title: "T", EstimatedHours: &bad}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for negative estimate, got %v", err)
	}

	// 5. Unknown parent
	missing := "missing"
	if _, err := e.CreateTask(ctx, CreateTaskInput{Title: "T", ParentID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown parent, got %v", err)
	}

	// 6. Unknown group
	gid := "no-such-group"
	if _, err := e.CreateTask(ctx, CreateTaskInput{Title: "T", GroupID: &gid}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown group, got %v", err)
	}
}

func TestCreateTaskDepthLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	sub := mustCreate(t, e, CreateTaskInput{Title: "Sub", ParentID: &root.ID})
	subsub := mustCreate(t, e, CreateTaskInput{Title: "SubSub", ParentID: &sub.ID})

	// A sub-subtask cannot have children.
	_, err := e.CreateTask(ctx, CreateTaskInput{Title: "Too deep", ParentID: &subsub.ID})
	var de *DepthLimitError
	if !errors.As(err, &de) {
		t.Fatalf("Expected DepthLimitError, got %v", err)
	}
	if de.ParentID != subsub.ID {
		t.Errorf("Expected parent id %s in error, got %s", subsub.ID, de.ParentID)
	}
	if !errors.Is(err, ErrDepthLimit) {
		t.Error("Expected error to match ErrDepthLimit sentinel")
	}
}

func TestAddingSubtaskReactivatesCompletedParent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	sub := mustCreate(t, e, CreateTaskInput{Title: "Sub", ParentID: &root.ID})

	// 1. Complete the whole tree
	if _, err := e.UpdateTaskStatus(ctx, root.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete root: %v", err)
	}
	mustStatus(t, e, sub.ID, models.TaskStatusCompleted)

	// 2. New work under the completed subtask reverts it to pending and
	// re-derives the root, which is now mixed.
	mustCreate(t, e, CreateTaskInput{Title: "New work", ParentID: &sub.ID})
	mustStatus(t, e, sub.ID, models.TaskStatusPending)
	mustStatus(t, e, root.ID, models.TaskStatusOngoing)
}

func TestUpdateTaskFields(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	task := mustCreate(t, e, CreateTaskInput{Title: "Before"})

	// 1. Empty patch is rejected
	if _, err := e.UpdateTaskFields(ctx, task.ID, FieldPatch{}); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty patch, got %v", err)
	}

	// 2. Field update is applied and logged
	title := "After"
	desc := "new description"
	hours := 4.5
	updated, err := e.UpdateTaskFields(ctx, task.ID, FieldPatch{Title: &title, Description: &desc, EstimatedHours: &hours})
	if err != nil {
		t.Fatalf("Failed to update task: %v", err)
	}
	if updated.Title != "After" || updated.Description != "new description" {
		t.Errorf("Unexpected update result: %+v", updated)
	}
	if updated.EstimatedHours == nil || *updated.EstimatedHours != 4.5 {
		t.Errorf("Expected estimated hours 4.5, got %v", updated.EstimatedHours)
	}

	entries, err := e.GetTaskActivity(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	found := false
	for _, entry := range entries {
		if entry.Action == models.ActionUpdated && strings.Contains(entry.Details, "title") {
			found = true
		}
	}
	if !found {
		t.Error("Expected an UPDATED activity entry naming the title field")
	}
}

func TestUpdateTaskFieldsCompletedBooleanAlias(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	sub := mustCreate(t, e, CreateTaskInput{Title: "Sub", ParentID: &root.ID})

	// completed=true on the boolean model routes through the same cascade
	// and derivation as an explicit status change.
	done := true
	if _, err := e.UpdateTaskFields(ctx, sub.ID, FieldPatch{Completed: &done}); err != nil {
		t.Fatalf("Failed to complete via boolean: %v", err)
	}
	mustStatus(t, e, sub.ID, models.TaskStatusCompleted)
	mustStatus(t, e, root.ID, models.TaskStatusCompleted)

	// completed=false maps back to pending.
	undone := false
	if _, err := e.UpdateTaskFields(ctx, sub.ID, FieldPatch{Completed: &undone}); err != nil {
		t.Fatalf("Failed to revert via boolean: %v", err)
	}
	mustStatus(t, e, sub.ID, models.TaskStatusPending)
	mustStatus(t, e, root.ID, models.TaskStatusPending)
}

func TestUpdateTaskFieldsDateCrossCheck(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	due := clock.now.Add(24 * time.Hour)
	task := mustCreate(t, e, CreateTaskInput{Title: "Dated", DueDate: &due})

	// Moving the start date past the stored due date is rejected even
	// though the patch itself only carries one of the two dates.
	start := due.Add(48 * time.Hour)
	_, err := e.UpdateTaskFields(ctx, task.ID, FieldPatch{StartDate: &start})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Expected ErrValidation for start after due, got %v", err)
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	sub := mustCreate(t, e, CreateTaskInput{Title: "Sub", ParentID: &root.ID})
	subsub := mustCreate(t, e, CreateTaskInput{Title: "SubSub", ParentID: &sub.ID})

	result, err := e.DeleteTask(ctx, root.ID)
	if err != nil {
		t.Fatalf("Failed to delete root: %v", err)
	}
	if result.DeletedID != root.ID {
		t.Errorf("Expected deleted id %s, got %s", root.ID, result.DeletedID)
	}
	if len(result.CascadeDeletedIDs) != 2 {
		t.Errorf("Expected 2 cascade-deleted ids, got %d", len(result.CascadeDeletedIDs))
	}

	for _, id := range []string{root.ID, sub.ID, subsub.ID} {
		if _, err := e.GetTask(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected task %s gone, got %v", id, err)
		}
	}
}

func TestDeleteSubtaskRederivesParent(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	s1 := mustCreate(t, e, CreateTaskInput{Title: "S1", ParentID: &root.ID})
	s2 := mustCreate(t, e, CreateTaskInput{Title: "S2", ParentID: &root.ID})

	// 1. One completed subtask leaves the root ongoing
	if _, err := e.UpdateTaskStatus(ctx, s1.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete s1: %v", err)
	}
	mustStatus(t, e, root.ID, models.TaskStatusOngoing)

	// 2. Deleting the pending subtask leaves only completed children, so
	// the root derives to completed.
	if _, err := e.DeleteTask(ctx, s2.ID); err != nil {
		t.Fatalf("Failed to delete s2: %v", err)
	}
	mustStatus(t, e, root.ID, models.TaskStatusCompleted)

	// 3. The parent's log records the subtask deletion
	entries, err := e.GetTaskActivity(ctx, root.ID)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	found := false
	for _, entry := range entries {
		if entry.Action == models.ActionSubtaskDeleted && strings.Contains(entry.Details, "S2") {
			found = true
		}
	}
	if !found {
		t.Error("Expected a SUBTASK_DELETED entry on the parent")
	}
}

func TestDeleteUnknownTask(t *testing.T) {
	e, _ := newTestEngine(t)

	if _, err := e.DeleteTask(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListTasksFilters(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	group, err := e.CreateGroup(ctx, "Home", "", "")
	if err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}

	mustCreate(t, e, CreateTaskInput{Title: "A", GroupID: &group.ID})
	b := mustCreate(t, e, CreateTaskInput{Title: "B"})
	if _, err := e.UpdateTaskStatus(ctx, b.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete b: %v", err)
	}

	// 1. Status filter
	completed := models.TaskStatusCompleted
	tasks, err := e.ListTasks(ctx, &completed, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "B" {
		t.Errorf("Expected only B completed, got %d tasks", len(tasks))
	}

	// 2. Group filter carries the joined group name
	tasks, err = e.ListTasks(ctx, nil, &group.ID)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "A" {
		t.Fatalf("Expected only A in group, got %d tasks", len(tasks))
	}
	if tasks[0].GroupName != "Home" {
		t.Errorf("Expected joined group name Home, got %q", tasks[0].GroupName)
	}

	// 3. Invalid status filter
	bad := models.TaskStatus("nope")
	if _, err := e.ListTasks(ctx, &bad, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for bad status filter, got %v", err)
	}
}
