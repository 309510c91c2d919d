package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mfields/taskhive/internal/core"
	"github.com/mfields/taskhive/pkg/models"
)

// File is the YAML seed format. Groups and tags are referenced by name
// from tasks; names that already exist in the database are reused rather
// than duplicated.
type File struct {
	Groups []GroupSeed `yaml:"groups"`
	Tags   []TagSeed   `yaml:"tags"`
	Tasks  []TaskSeed  `yaml:"tasks"`
}

type GroupSeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
}

type TagSeed struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type TaskSeed struct {
	Title          string     `yaml:"title"`
	Description    string     `yaml:"description"`
	Priority       string     `yaml:"priority"`
	Group          string     `yaml:"group"`
	Tags           []string   `yaml:"tags"`
	StartDate      *time.Time `yaml:"start_date"`
	DueDate        *time.Time `yaml:"due_date"`
	EstimatedHours *float64   `yaml:"estimated_hours"`
	Subtasks       []TaskSeed `yaml:"subtasks"`
}

// Result counts what an import created.
type Result struct {
	Groups int
	Tags   int
	Tasks  int
}

// ImportFile reads a seed file from disk and applies it.
func ImportFile(ctx context.Context, engine *core.Engine, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Import(ctx, engine, f)
}

// Import applies a YAML seed through the engine, so every created task
// gets the same validation, activity logging and depth checks as any
// other write.
func Import(ctx context.Context, engine *core.Engine, r io.Reader) (*Result, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	res := &Result{}

	groupIDs := make(map[string]string)
	for _, g := range file.Groups {
		existing, err := engine.Store().GetGroupByName(ctx, g.Name)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		if existing != nil {
			groupIDs[g.Name] = existing.ID
			continue
		}
		created, err := engine.CreateGroup(ctx, g.Name, g.Description, g.Color)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		groupIDs[g.Name] = created.ID
		res.Groups++
	}

	tagIDs := make(map[string]string)
	for _, t := range file.Tags {
		existing, err := engine.Store().GetTagByName(ctx, t.Name)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", t.Name, err)
		}
		if existing != nil {
			tagIDs[t.Name] = existing.ID
			continue
		}
		created, err := engine.CreateTag(ctx, t.Name, t.Color)
		if err != nil {
			return nil, fmt.Errorf("tag %q: %w", t.Name, err)
		}
		tagIDs[t.Name] = created.ID
		res.Tags++
	}

	for _, t := range file.Tasks {
		if err := importTask(ctx, engine, t, nil, groupIDs, tagIDs, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func importTask(ctx context.Context, engine *core.Engine, seed TaskSeed, parentID *string, groupIDs, tagIDs map[string]string, res *Result) error {
	in := core.CreateTaskInput{
		Title:          seed.Title,
		Description:    seed.Description,
		Priority:       models.Priority(seed.Priority),
		ParentID:       parentID,
		StartDate:      seed.StartDate,
		DueDate:        seed.DueDate,
		EstimatedHours: seed.EstimatedHours,
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if seed.Group != "" {
		gid, ok := groupIDs[seed.Group]
		if !ok {
			return fmt.Errorf("task %q references unknown group %q", seed.Title, seed.Group)
		}
		in.GroupID = &gid
	}
	for _, name := range seed.Tags {
		tid, ok := tagIDs[name]
		if !ok {
			return fmt.Errorf("task %q references unknown tag %q", seed.Title, name)
		}
		in.TagIDs = append(in.TagIDs, tid)
	}

	created, err := engine.CreateTask(ctx, in)
	if err != nil {
		return fmt.Errorf("task %q: %w", seed.Title, err)
	}
	res.Tasks++

	for _, sub := range seed.Subtasks {
		if err := importTask(ctx, engine, sub, &created.ID, groupIDs, tagIDs, res); err != nil {
			return err
		}
	}
	return nil
}
