package core

import (
	"errors"
	"fmt"
)

// Sentinel classes. Callers match with errors.Is and pull structured detail
// out with errors.As.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrDepthLimit = errors.New("depth limit exceeded")
	ErrConflict   = errors.New("conflict")
	ErrStorage    = errors.New("storage failure")
)

// ValidationError reports malformed or out-of-range input. It is always
// raised before any write.
type ValidationError struct {
	TaskID  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("field %s: %s", e.Field, msg)
	}
	if e.TaskID != "" {
		msg = fmt.Sprintf("task %s: %s", e.TaskID, msg)
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a referenced entity that does not exist at
// operation time.
type NotFoundError struct {
	Kind string // "task", "tag", "group"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DepthLimitError reports a subtask-creation attempt under a task that is
// already at the maximum nesting depth.
type DepthLimitError struct {
	ParentID string
	Depth    int
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf("task %s is at depth %d and cannot have subtasks", e.ParentID, e.Depth)
}

func (e *DepthLimitError) Unwrap() error { return ErrDepthLimit }

// ConflictError reports duplicate names or titles.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// storageErr tags an underlying storage failure as retryable while keeping
// the original chain for logs.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// domainErr reports whether err belongs to the core taxonomy (as opposed to
// an unexpected storage failure).
func domainErr(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDepthLimit) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStorage)
}
