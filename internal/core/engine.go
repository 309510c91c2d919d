package core

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/mfields/taskhive/internal/db"
)

// Clock abstracts the timestamp source so tests can pin time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// Engine is the task hierarchy consistency engine. All task mutations go
// through it; the storage layer is never written by callers directly.
type Engine struct {
	store *db.DB
	clock Clock

	// inflight guards recursive re-derivation: a task id in this set is
	// mid-transition and must not be re-derived again.
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewEngine(store *db.DB, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		store:    store,
		clock:    clock,
		inflight: make(map[string]struct{}),
	}
}

func (e *Engine) Store() *db.DB { return e.store }

func (e *Engine) beginDerivation(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[id]; busy {
		return false
	}
	e.inflight[id] = struct{}{}
	return true
}

func (e *Engine) endDerivation(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, id)
}

// runTx wraps the storage transaction and folds unexpected failures into
// the retryable storage class. Domain errors pass through untouched.
func (e *Engine) runTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	err := e.store.WithTx(ctx, fn)
	if err == nil || domainErr(err) {
		return err
	}
	return storageErr(op, err)
}
