package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	embedsql "github.com/mfields/taskhive/embed/sql"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	Sessions         *SessionManager
	onChange         func(ctx context.Context)
	onChangeMu       sync.RWMutex
	onChangeDisabled bool
}

// Executor abstracts *sql.DB and *sql.Tx so the same helpers can run inside
// and outside a transaction.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) SetOnChange(fn func(ctx context.Context)) {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChange = fn
}

func (db *DB) DisableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = true
}

func (db *DB) EnableOnChange() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()
	db.onChangeDisabled = false
}

func (db *DB) triggerChange(ctx context.Context) {
	db.onChangeMu.RLock()
	fn := db.onChange
	disabled := db.onChangeDisabled
	db.onChangeMu.RUnlock()

	if fn != nil && !disabled {
		fn(ctx)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Foreign keys support
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	return &DB{
		DB:       db,
		Sessions: NewSessionManager(),
	}, nil
}

func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	db.triggerChange(ctx)
	return nil
}

func (db *DB) Init(ctx context.Context) error {
	return db.Migrate(ctx, embedsql.Schema)
}

// WithTx runs fn inside a transaction. The transaction is rolled back if fn
// returns an error and committed otherwise; the change hook fires only
// after a successful commit.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}
