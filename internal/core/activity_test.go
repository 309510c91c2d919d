package core

import (
	"context"
	"errors"
	"testing"

	"github.com/mfields/taskhive/pkg/models"
)

func TestAddComment(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	task := mustCreate(t, e, CreateTaskInput{Title: "T"})

	// 1. Whitespace-only comments are rejected
	if _, err := e.AddComment(ctx, task.ID, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for blank comment, got %v", err)
	}

	// 2. A comment lands in the activity log flagged as user content
	entry, err := e.AddComment(ctx, task.ID, "  looks good  ")
	if err != nil {
		t.Fatalf("Failed to add comment: %v", err)
	}
	if entry.Action != models.ActionComment {
		t.Errorf("Expected action %s, got %s", models.ActionComment, entry.Action)
	}
	if !entry.IsUserComment {
		t.Error("Expected entry flagged as user comment")
	}
	if entry.Comment == nil || *entry.Comment != "looks good" {
		t.Errorf("Expected trimmed comment text, got %v", entry.Comment)
	}

	// 3. Comments never change status
	mustStatus(t, e, task.ID, models.TaskStatusPending)

	// 4. Unknown task
	if _, err := e.AddComment(ctx, "missing", "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTaskActivityIncludesDirectSubtasks(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	sub := mustCreate(t, e, CreateTaskInput{Title: "Sub", ParentID: &root.ID})
	other := mustCreate(t, e, CreateTaskInput{Title: "Unrelated"})

	entries, err := e.GetTaskActivity(ctx, root.ID)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}

	sawRoot, sawSub := false, false
	for _, entry := range entries {
		switch entry.TaskID {
		case root.ID:
			sawRoot = true
			if entry.IsSubtask {
				t.Error("Root entry should not be flagged as subtask")
			}
		case sub.ID:
			sawSub = true
			if !entry.IsSubtask {
				t.Error("Subtask entry should be flagged as subtask")
			}
		case other.ID:
			t.Error("Unrelated task's activity leaked into the feed")
		}
	}
	if !sawRoot || !sawSub {
		t.Errorf("Expected both root and subtask entries, got root=%v sub=%v", sawRoot, sawSub)
	}
}

func TestGroupActivityCoversAllLevels(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	group, err := e.CreateGroup(ctx, "Sprint", "", "")
	if err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}

	root := mustCreate(t, e, CreateTaskInput{Title: "Root", GroupID: &group.ID})
	sub := mustCreate(t, e, CreateTaskInput{Title: "Sub", ParentID: &root.ID})
	subsub := mustCreate(t, e, CreateTaskInput{Title: "SubSub", ParentID: &sub.ID})
	outside := mustCreate(t, e, CreateTaskInput{Title: "Outside"})

	entries, err := e.GetGroupActivity(ctx, group.ID)
	if err != nil {
		t.Fatalf("Failed to get group activity: %v", err)
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		seen[entry.TaskID] = true
		if entry.TaskID == root.ID && !entry.IsDirectGroupTask {
			t.Error("Expected the group's own task flagged as direct")
		}
		if entry.TaskID == sub.ID && entry.IsDirectGroupTask {
			t.Error("Subtask entries should not be flagged as direct group tasks")
		}
	}
	for _, id := range []string{root.ID, sub.ID, subsub.ID} {
		if !seen[id] {
			t.Errorf("Expected activity for task %s in group feed", id)
		}
	}
	if seen[outside.ID] {
		t.Error("Task outside the group leaked into the feed")
	}

	// Unknown group
	if _, err := e.GetGroupActivity(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
