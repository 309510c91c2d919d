package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mfields/taskhive/pkg/models"
)

func TestCompleteCascadesToDescendants(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// 1. Build root -> {s1, s2}, s2 -> {s2a}
	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	s1 := mustCreate(t, e, CreateTaskInput{Title: "S1", ParentID: &root.ID})
	s2 := mustCreate(t, e, CreateTaskInput{Title: "S2", ParentID: &root.ID})
	s2a := mustCreate(t, e, CreateTaskInput{Title: "S2a", ParentID: &s2.ID})

	// 2. Complete the root
	result, err := e.UpdateTaskStatus(ctx, root.ID, models.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("Failed to complete root: %v", err)
	}

	// 3. Every descendant is completed with it
	if len(result.Cascaded) != 3 {
		t.Errorf("Expected 3 cascaded tasks, got %d", len(result.Cascaded))
	}
	for _, id := range []string{root.ID, s1.ID, s2.ID, s2a.ID} {
		task := mustStatus(t, e, id, models.TaskStatusCompleted)
		if task.CompletedDate == nil {
			t.Errorf("Task %q: expected completed date to be set", task.Title)
		}
		if task.StartedDate == nil {
			t.Errorf("Task %q: expected started date to be backfilled", task.Title)
		}
		if !task.Completed {
			t.Errorf("Task %q: expected derived completed flag", task.Title)
		}
	}
}

func TestParentStatusDerivation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustCreate(t, e, CreateTaskInput{Title: "Root"})
	s1 := mustCreate(t, e, CreateTaskInput{Title: "S1", ParentID: &root.ID})
	s2 := mustCreate(t, e, CreateTaskInput{Title: "S2", ParentID: &root.ID})
	s2a := mustCreate(t, e, CreateTaskInput{Title: "S2a", ParentID: &s2.ID})

	// 1. Completing the only grandchild completes its parent and leaves
	// the root mixed, so ongoing.
	if _, err := e.UpdateTaskStatus(ctx, s2a.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete s2a: %v", err)
	}
	mustStatus(t, e, s2.ID, models.TaskStatusCompleted)
	mustStatus(t, e, root.ID, models.TaskStatusOngoing)
	mustStatus(t, e, s1.ID, models.TaskStatusPending)

	// 2. Completing the last pending subtask completes the root.
	if _, err := e.UpdateTaskStatus(ctx, s1.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete s1: %v", err)
	}
	mustStatus(t, e, root.ID, models.TaskStatusCompleted)

	// 3. Reverting one subtask to pending makes the root ongoing again.
	if _, err := e.UpdateTaskStatus(ctx, s1.ID, models.TaskStatusPending); err != nil {
		t.Fatalf("Failed to revert s1: %v", err)
	}
	mustStatus(t, e, root.ID, models.TaskStatusOngoing)

	// 4. Reverting the other branch makes every child pending, so the
	// root derives back to pending.
	if _, err := e.UpdateTaskStatus(ctx, s2a.ID, models.TaskStatusPending); err != nil {
		t.Fatalf("Failed to revert s2a: %v", err)
	}
	mustStatus(t, e, s2.ID, models.TaskStatusPending)
	mustStatus(t, e, root.ID, models.TaskStatusPending)
}

func TestStatusReapplyIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	task := mustCreate(t, e, CreateTaskInput{Title: "Idempotent"})

	before, err := e.Store().CountActivityForTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to count activity: %v", err)
	}

	result, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusPending)
	if err != nil {
		t.Fatalf("Re-applying current status should succeed: %v", err)
	}
	if len(result.Cascaded) != 0 {
		t.Errorf("Expected no cascaded tasks, got %d", len(result.Cascaded))
	}

	after, err := e.Store().CountActivityForTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to count activity: %v", err)
	}
	if after != before {
		t.Errorf("Expected no new activity entries, got %d -> %d", before, after)
	}
}

func TestOngoingTransitionStampsStartedDate(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	task := mustCreate(t, e, CreateTaskInput{Title: "Work"})

	// 1. pending -> ongoing sets the started date
	started := clock.now
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusOngoing); err != nil {
		t.Fatalf("Failed to start task: %v", err)
	}
	got := mustStatus(t, e, task.ID, models.TaskStatusOngoing)
	if got.StartedDate == nil || !got.StartedDate.Equal(started) {
		t.Errorf("Expected started date %v, got %v", started, got.StartedDate)
	}

	// 2. ongoing -> completed keeps the original started date
	clock.Advance(24 * time.Hour)
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}
	got = mustStatus(t, e, task.ID, models.TaskStatusCompleted)
	if got.StartedDate == nil || !got.StartedDate.Equal(started) {
		t.Errorf("Expected started date preserved at %v, got %v", started, got.StartedDate)
	}

	// 3. completed -> ongoing clears only the completed date
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusOngoing); err != nil {
		t.Fatalf("Failed to reopen task: %v", err)
	}
	got = mustStatus(t, e, task.ID, models.TaskStatusOngoing)
	if got.CompletedDate != nil {
		t.Errorf("Expected completed date cleared, got %v", got.CompletedDate)
	}
	if got.StartedDate == nil {
		t.Error("Expected started date kept on reopen")
	}

	// 4. back to pending clears both progress dates
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusPending); err != nil {
		t.Fatalf("Failed to reset task: %v", err)
	}
	got = mustStatus(t, e, task.ID, models.TaskStatusPending)
	if got.StartedDate != nil || got.CompletedDate != nil {
		t.Error("Expected both progress dates cleared on reset to pending")
	}
}

func TestCompletionPreservesOriginalDueDate(t *testing.T) {
	e, clock := newTestEngine(t)
	ctx := context.Background()

	due := clock.now.Add(-72 * time.Hour)
	task := mustCreate(t, e, CreateTaskInput{Title: "Overdue", DueDate: &due})

	// 1. First completion moves due -> original, stamps due with now
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}
	got := mustStatus(t, e, task.ID, models.TaskStatusCompleted)
	if got.OriginalDueDate == nil || !got.OriginalDueDate.Equal(due) {
		t.Errorf("Expected original due date %v, got %v", due, got.OriginalDueDate)
	}
	if got.DueDate == nil || !got.DueDate.Equal(clock.now) {
		t.Errorf("Expected due date stamped with completion time %v, got %v", clock.now, got.DueDate)
	}

	// 2. The activity entry names the timing delta
	entries, err := e.GetTaskActivity(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	found := false
	for _, entry := range entries {
		if strings.Contains(entry.Details, "3 days late") {
			found = true
		}
	}
	if !found {
		t.Error("Expected an activity entry mentioning '3 days late'")
	}

	// 3. Re-open and complete again: the original due date is write-once
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusPending); err != nil {
		t.Fatalf("Failed to reset task: %v", err)
	}
	clock.Advance(48 * time.Hour)
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to re-complete task: %v", err)
	}
	got = mustStatus(t, e, task.ID, models.TaskStatusCompleted)
	if got.OriginalDueDate == nil || !got.OriginalDueDate.Equal(due) {
		t.Errorf("Expected original due date unchanged at %v, got %v", due, got.OriginalDueDate)
	}
}

func TestCompletionWithoutDueDate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	task := mustCreate(t, e, CreateTaskInput{Title: "No deadline"})
	if _, err := e.UpdateTaskStatus(ctx, task.ID, models.TaskStatusCompleted); err != nil {
		t.Fatalf("Failed to complete task: %v", err)
	}

	got := mustStatus(t, e, task.ID, models.TaskStatusCompleted)
	if got.OriginalDueDate != nil {
		t.Errorf("Expected no original due date, got %v", got.OriginalDueDate)
	}

	entries, err := e.GetTaskActivity(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to get activity: %v", err)
	}
	found := false
	for _, entry := range entries {
		if strings.Contains(entry.Details, "no prior due date") {
			found = true
		}
	}
	if !found {
		t.Error("Expected an activity entry mentioning 'no prior due date'")
	}
}

func TestTimingDelta(t *testing.T) {
	planned := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		completed time.Time
		want      string
	}{
		{planned, "on time"},
		{planned.Add(20 * time.Hour), "on time"}, // same calendar day
		{planned.AddDate(0, 0, 1), "1 day late"},
		{planned.AddDate(0, 0, 4), "4 days late"},
		{planned.AddDate(0, 0, -1), "1 day early"},
		{planned.AddDate(0, 0, -3), "3 days early"},
	}
	for _, c := range cases {
		if got := timingDelta(c.completed, planned); got != c.want {
			t.Errorf("timingDelta(%v): expected %q, got %q", c.completed, c.want, got)
		}
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	e, _ := newTestEngine(t)

	task := mustCreate(t, e, CreateTaskInput{Title: "T"})
	_, err := e.UpdateTaskStatus(context.Background(), task.ID, "done")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("Expected error to match ErrValidation sentinel")
	}
}

func TestUpdateStatusUnknownTask(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.UpdateTaskStatus(context.Background(), "missing", models.TaskStatusCompleted)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
