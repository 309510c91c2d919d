package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mfields/taskhive/pkg/models"
)

func (db *DB) CreateTag(ctx context.Context, t *models.Tag) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO tags (id, name, color)
		VALUES (?, ?, ?)
		RETURNING created_at, updated_at
	`
	err := db.QueryRowContext(ctx, query, t.ID, t.Name, t.Color).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	query := `SELECT id, name, color, created_at, updated_at FROM tags WHERE id = ?`
	t := &models.Tag{}
	err := db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return t, nil
}

// GetTagByName looks a tag up by name, case-insensitively.
func (db *DB) GetTagByName(ctx context.Context, name string) (*models.Tag, error) {
	query := `SELECT id, name, color, created_at, updated_at FROM tags WHERE name = ? COLLATE NOCASE`
	t := &models.Tag{}
	err := db.QueryRowContext(ctx, query, name).Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag by name: %w", err)
	}
	return t, nil
}

func (db *DB) ListTags(ctx context.Context) ([]*models.Tag, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, color, created_at, updated_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		t := &models.Tag{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tags, nil
}

func (db *DB) UpdateTag(ctx context.Context, t *models.Tag) error {
	query := `
		UPDATE tags
		SET name = ?, color = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at
	`
	err := db.QueryRowContext(ctx, query, t.Name, t.Color, t.ID).Scan(&t.UpdatedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("tag not found: %s", t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) DeleteTag(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tag not found: %s", id)
	}

	db.triggerChange(ctx)
	return nil
}

// TagsExistTx reports which of the given tag ids are missing.
func (db *DB) TagsExistTx(ctx context.Context, exec Executor, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		var one int
		err := exec.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check tag %s: %w", id, err)
		}
	}
	return missing, nil
}
