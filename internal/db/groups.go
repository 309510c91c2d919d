package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mfields/taskhive/pkg/models"
)

func (db *DB) CreateGroup(ctx context.Context, g *models.TaskGroup) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}

	query := `
		INSERT INTO task_groups (id, name, description, color)
		VALUES (?, ?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(ctx, query, g.ID, g.Name, g.Description, g.Color).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) GetGroup(ctx context.Context, id string) (*models.TaskGroup, error) {
	return db.GetGroupTx(ctx, db.DB, id)
}

func (db *DB) GetGroupTx(ctx context.Context, exec Executor, id string) (*models.TaskGroup, error) {
	query := `SELECT id, name, description, color, created_at, updated_at FROM task_groups WHERE id = ?`
	g := &models.TaskGroup{}
	err := exec.QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// GetGroupByName looks a group up by name, case-insensitively.
func (db *DB) GetGroupByName(ctx context.Context, name string) (*models.TaskGroup, error) {
	query := `SELECT id, name, description, color, created_at, updated_at FROM task_groups WHERE name = ? COLLATE NOCASE`
	g := &models.TaskGroup{}
	err := db.QueryRowContext(ctx, query, name).Scan(
		&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group by name: %w", err)
	}
	return g, nil
}

func (db *DB) ListGroups(ctx context.Context) ([]*models.TaskGroup, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description, color, created_at, updated_at FROM task_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.TaskGroup
	for rows.Next() {
		g := &models.TaskGroup{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return groups, nil
}

func (db *DB) UpdateGroup(ctx context.Context, g *models.TaskGroup) error {
	query := `
		UPDATE task_groups
		SET name = ?, description = ?, color = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := db.QueryRowContext(ctx, query, g.Name, g.Description, g.Color, g.ID).Scan(&g.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("group not found: %s", g.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteGroup removes a group. Referencing tasks keep existing; their
// group_id is nulled out by the foreign key, never cascaded.
func (db *DB) DeleteGroup(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM task_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("group not found: %s", id)
	}

	db.triggerChange(ctx)
	return nil
}
