package core

import (
	"testing"

	"github.com/mfields/taskhive/pkg/models"
)

func ptr(s string) *string { return &s }

func TestDepthOf(t *testing.T) {
	root := &models.Task{ID: "r"}
	sub := &models.Task{ID: "s", ParentID: ptr("r")}
	subsub := &models.Task{ID: "ss", ParentID: ptr("s")}
	tree := BuildTree([]*models.Task{root, sub, subsub})

	if d := DepthOf(root, tree.ByID); d != 0 {
		t.Errorf("Expected root depth 0, got %d", d)
	}
	if d := DepthOf(sub, tree.ByID); d != 1 {
		t.Errorf("Expected subtask depth 1, got %d", d)
	}
	if d := DepthOf(subsub, tree.ByID); d != 2 {
		t.Errorf("Expected sub-subtask depth 2, got %d", d)
	}

	if !CanHaveSubtasks(root, tree.ByID) {
		t.Error("Expected root to allow subtasks")
	}
	if !CanHaveSubtasks(sub, tree.ByID) {
		t.Error("Expected subtask to allow sub-subtasks")
	}
	if CanHaveSubtasks(subsub, tree.ByID) {
		t.Error("Expected sub-subtask to reject further nesting")
	}
}

func TestDepthOfUnresolvableParent(t *testing.T) {
	// A dangling parent reference counts as one level, not an error.
	orphan := &models.Task{ID: "o", ParentID: ptr("gone")}
	tree := BuildTree([]*models.Task{orphan})

	if d := DepthOf(orphan, tree.ByID); d != 1 {
		t.Errorf("Expected orphan depth 1, got %d", d)
	}
}

func TestDepthOfCyclicChainIsCapped(t *testing.T) {
	// A malformed a<->b cycle must not recurse forever.
	a := &models.Task{ID: "a", ParentID: ptr("b")}
	b := &models.Task{ID: "b", ParentID: ptr("a")}
	tree := BuildTree([]*models.Task{a, b})

	if d := DepthOf(a, tree.ByID); d > models.MaxDepth+1 {
		t.Errorf("Expected depth capped near %d, got %d", models.MaxDepth, d)
	}
}

func TestDescendantsOrder(t *testing.T) {
	root := &models.Task{ID: "r"}
	s1 := &models.Task{ID: "s1", ParentID: ptr("r")}
	s2 := &models.Task{ID: "s2", ParentID: ptr("r")}
	s2a := &models.Task{ID: "s2a", ParentID: ptr("s2")}
	tree := BuildTree([]*models.Task{root, s1, s2, s2a})

	desc := tree.Descendants("r")
	if len(desc) != 3 {
		t.Fatalf("Expected 3 descendants, got %d", len(desc))
	}
	// Children come before grandchildren.
	if desc[len(desc)-1].ID != "s2a" {
		t.Errorf("Expected grandchild last, got %s", desc[len(desc)-1].ID)
	}
}
