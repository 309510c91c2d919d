package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/mfields/taskhive/pkg/models"
)

func validName(name string, max int, field string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: field, Message: "must not be empty"}
	}
	if len(name) > max {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("exceeds %d characters", max)}
	}
	return name, nil
}

func validColor(color string) error {
	if color != "" && !hexColorRe.MatchString(color) {
		return &ValidationError{Field: "color", Message: "must be a #RRGGBB hex color"}
	}
	return nil
}

// CreateTag creates a tag with a unique (case-insensitive) name.
func (e *Engine) CreateTag(ctx context.Context, name, color string) (*models.Tag, error) {
	name, err := validName(name, models.MaxTagNameLength, "name")
	if err != nil {
		return nil, err
	}
	if err := validColor(color); err != nil {
		return nil, err
	}

	existing, err := e.store.GetTagByName(ctx, name)
	if err != nil {
		return nil, storageErr("create tag", err)
	}
	if existing != nil {
		return nil, &ConflictError{Message: fmt.Sprintf("tag name already in use: %q", name)}
	}

	t := &models.Tag{Name: name, Color: color}
	if t.Color == "" {
		t.Color = "#808080"
	}
	if err := e.store.CreateTag(ctx, t); err != nil {
		return nil, storageErr("create tag", err)
	}
	return t, nil
}

func (e *Engine) ListTags(ctx context.Context) ([]*models.Tag, error) {
	tags, err := e.store.ListTags(ctx)
	if err != nil {
		return nil, storageErr("list tags", err)
	}
	return tags, nil
}

func (e *Engine) UpdateTag(ctx context.Context, id, name, color string) (*models.Tag, error) {
	t, err := e.store.GetTag(ctx, id)
	if err != nil {
		return nil, storageErr("update tag", err)
	}
	if t == nil {
		return nil, &NotFoundError{Kind: "tag", ID: id}
	}

	if name != "" {
		name, err = validName(name, models.MaxTagNameLength, "name")
		if err != nil {
			return nil, err
		}
		other, err := e.store.GetTagByName(ctx, name)
		if err != nil {
			return nil, storageErr("update tag", err)
		}
		if other != nil && other.ID != id {
			return nil, &ConflictError{Message: fmt.Sprintf("tag name already in use: %q", name)}
		}
		t.Name = name
	}
	if color != "" {
		if err := validColor(color); err != nil {
			return nil, err
		}
		t.Color = color
	}

	if err := e.store.UpdateTag(ctx, t); err != nil {
		return nil, storageErr("update tag", err)
	}
	return t, nil
}

// DeleteTag removes a tag. Deletion is blocked while any task still
// references it.
func (e *Engine) DeleteTag(ctx context.Context, id string) error {
	t, err := e.store.GetTag(ctx, id)
	if err != nil {
		return storageErr("delete tag", err)
	}
	if t == nil {
		return &NotFoundError{Kind: "tag", ID: id}
	}

	refs, err := e.store.CountTasksWithTag(ctx, id)
	if err != nil {
		return storageErr("delete tag", err)
	}
	if refs > 0 {
		return &ConflictError{Message: fmt.Sprintf("tag %q is referenced by %d tasks", t.Name, refs)}
	}

	if err := e.store.DeleteTag(ctx, id); err != nil {
		return storageErr("delete tag", err)
	}
	return nil
}

// CreateGroup creates a task group with a unique name.
func (e *Engine) CreateGroup(ctx context.Context, name, description, color string) (*models.TaskGroup, error) {
	name, err := validName(name, models.MaxGroupNameLength, "name")
	if err != nil {
		return nil, err
	}
	if len(description) > models.MaxGroupDescriptionLength {
		return nil, &ValidationError{Field: "description", Message: fmt.Sprintf("exceeds %d characters", models.MaxGroupDescriptionLength)}
	}
	if err := validColor(color); err != nil {
		return nil, err
	}

	existing, err := e.store.GetGroupByName(ctx, name)
	if err != nil {
		return nil, storageErr("create group", err)
	}
	if existing != nil {
		return nil, &ConflictError{Message: fmt.Sprintf("group name already in use: %q", name)}
	}

	g := &models.TaskGroup{Name: name, Description: description, Color: color}
	if g.Color == "" {
		g.Color = "#6b7280"
	}
	if err := e.store.CreateGroup(ctx, g); err != nil {
		return nil, storageErr("create group", err)
	}
	return g, nil
}

func (e *Engine) ListGroups(ctx context.Context) ([]*models.TaskGroup, error) {
	groups, err := e.store.ListGroups(ctx)
	if err != nil {
		return nil, storageErr("list groups", err)
	}
	return groups, nil
}

func (e *Engine) UpdateGroup(ctx context.Context, id, name, description, color string) (*models.TaskGroup, error) {
	g, err := e.store.GetGroup(ctx, id)
	if err != nil {
		return nil, storageErr("update group", err)
	}
	if g == nil {
		return nil, &NotFoundError{Kind: "group", ID: id}
	}

	if name != "" {
		name, err = validName(name, models.MaxGroupNameLength, "name")
		if err != nil {
			return nil, err
		}
		other, err := e.store.GetGroupByName(ctx, name)
		if err != nil {
			return nil, storageErr("update group", err)
		}
		if other != nil && other.ID != id {
			return nil, &ConflictError{Message: fmt.Sprintf("group name already in use: %q", name)}
		}
		g.Name = name
	}
	if description != "" {
		if len(description) > models.MaxGroupDescriptionLength {
			return nil, &ValidationError{Field: "description", Message: fmt.Sprintf("exceeds %d characters", models.MaxGroupDescriptionLength)}
		}
		g.Description = description
	}
	if color != "" {
		if err := validColor(color); err != nil {
			return nil, err
		}
		g.Color = color
	}

	if err := e.store.UpdateGroup(ctx, g); err != nil {
		return nil, storageErr("update group", err)
	}
	return g, nil
}

// DeleteGroup removes a group; referencing tasks are kept with their group
// reference nulled out.
func (e *Engine) DeleteGroup(ctx context.Context, id string) error {
	g, err := e.store.GetGroup(ctx, id)
	if err != nil {
		return storageErr("delete group", err)
	}
	if g == nil {
		return &NotFoundError{Kind: "group", ID: id}
	}

	if err := e.store.DeleteGroup(ctx, id); err != nil {
		return storageErr("delete group", err)
	}
	return nil
}
