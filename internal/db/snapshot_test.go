package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/mfields/taskhive/pkg/models"
)

func TestSnapshotRoundTrip(t *testing.T) {
	src := openTestDB(t)
	ctx := context.Background()

	// 1. Populate the source: group, tag, a two-level task tree with a tag
	// link, and an activity entry.
	g := &models.TaskGroup{Name: "Work", Color: "#112233"}
	if err := src.CreateGroup(ctx, g); err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	tag := &models.Tag{Name: "urgent", Color: "#ff0000"}
	if err := src.CreateTag(ctx, tag); err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	root := &models.Task{Title: "Root", GroupID: &g.ID, TagIDs: []string{tag.ID}}
	if err := src.CreateTask(ctx, root); err != nil {
		t.Fatalf("Failed to create root: %v", err)
	}
	sub := &models.Task{Title: "Sub", ParentID: &root.ID}
	if err := src.CreateTask(ctx, sub); err != nil {
		t.Fatalf("Failed to create sub: %v", err)
	}
	if err := src.WithTx(ctx, func(tx *sql.Tx) error {
		return src.InsertActivityTx(ctx, tx, &models.ActivityLogEntry{
			TaskID:  root.ID,
			Action:  models.ActionCreated,
			Details: "task created",
		})
	}); err != nil {
		t.Fatalf("Failed to insert activity: %v", err)
	}

	// 2. Export
	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	if err := src.ExportSnapshot(ctx, path); err != nil {
		t.Fatalf("Failed to export snapshot: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Snapshot file missing: %v", err)
	}

	// 3. Import into a fresh database
	dst := openTestDB(t)
	if err := dst.ImportSnapshot(ctx, path); err != nil {
		t.Fatalf("Failed to import snapshot: %v", err)
	}

	// 4. Everything survives with the same ids
	gotRoot, err := dst.GetTask(ctx, root.ID)
	if err != nil {
		t.Fatalf("Failed to get imported root: %v", err)
	}
	if gotRoot == nil {
		t.Fatalf("Root missing after import")
	}
	if gotRoot.GroupName != "Work" {
		t.Errorf("Expected joined group name Work, got %q", gotRoot.GroupName)
	}
	if len(gotRoot.TagIDs) != 1 || gotRoot.TagIDs[0] != tag.ID {
		t.Errorf("Expected tag link preserved, got %v", gotRoot.TagIDs)
	}

	gotSub, err := dst.GetTask(ctx, sub.ID)
	if err != nil || gotSub == nil {
		t.Fatalf("Sub missing after import: %v", err)
	}
	if gotSub.ParentID == nil || *gotSub.ParentID != root.ID {
		t.Errorf("Expected parent link preserved, got %v", gotSub.ParentID)
	}

	entries, err := dst.ListActivityByTask(ctx, root.ID)
	if err != nil {
		t.Fatalf("Failed to list imported activity: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 activity entry, got %d", len(entries))
	}

	// 5. Importing again is additive, not duplicating
	if err := dst.ImportSnapshot(ctx, path); err != nil {
		t.Fatalf("Second import failed: %v", err)
	}
	tasks, err := dst.ListTasks(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Failed to list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("Expected 2 tasks after re-import, got %d", len(tasks))
	}
}

func TestAutoSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "auto.jsonl")
	db.EnableAutoSnapshot(path)

	// A committed write triggers the export hook.
	if err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return db.CreateTaskTx(ctx, tx, &models.Task{Title: "Hooked"})
	}); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected auto snapshot written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected non-empty snapshot")
	}
}

func TestAutoSnapshotCanBeDisabled(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "auto.jsonl")
	db.EnableAutoSnapshot(path)
	db.DisableOnChange()

	if err := db.CreateTask(ctx, &models.Task{Title: "Silent"}); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no snapshot while hook disabled, stat err: %v", err)
	}
}
