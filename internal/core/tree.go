package core

import (
	"github.com/mfields/taskhive/pkg/models"
)

// Index is an id-indexed view of the full task set. Ownership is walked via
// parent_id lookups against this map, never via embedded child pointers.
type Index map[string]*models.Task

// Tree pairs the id index with a child adjacency map built from the same
// flat task collection.
type Tree struct {
	ByID     Index
	Children map[string][]*models.Task
}

func BuildTree(tasks []*models.Task) *Tree {
	tr := &Tree{
		ByID:     make(Index, len(tasks)),
		Children: make(map[string][]*models.Task),
	}
	for _, t := range tasks {
		tr.ByID[t.ID] = t
	}
	for _, t := range tasks {
		if t.ParentID != nil {
			tr.Children[*t.ParentID] = append(tr.Children[*t.ParentID], t)
		}
	}
	return tr
}

// Descendants returns every task below id, children before grandchildren.
func (tr *Tree) Descendants(id string) []*models.Task {
	var out []*models.Task
	queue := append([]*models.Task(nil), tr.Children[id]...)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		out = append(out, t)
		queue = append(queue, tr.Children[t.ID]...)
	}
	return out
}

// DepthOf computes a task's nesting depth by walking parent links: 0 for a
// root, 1 for a subtask, 2 for a sub-subtask. An unresolvable parent
// reference counts as depth 1 rather than an error.
func DepthOf(t *models.Task, idx Index) int {
	return depthOf(t, idx, 0)
}

func depthOf(t *models.Task, idx Index, hops int) int {
	if t.ParentID == nil {
		return 0
	}
	if hops >= models.MaxDepth {
		// Hop cap: a malformed chain never recurses past the limit.
		return models.MaxDepth
	}
	parent, ok := idx[*t.ParentID]
	if !ok {
		return 1
	}
	return 1 + depthOf(parent, idx, hops+1)
}

// CanHaveSubtasks reports whether a task may receive another nesting level.
func CanHaveSubtasks(t *models.Task, idx Index) bool {
	return DepthOf(t, idx) < models.MaxDepth
}
