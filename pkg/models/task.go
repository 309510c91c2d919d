package models

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusOngoing   TaskStatus = "ongoing"
	TaskStatusCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusOngoing, TaskStatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxEstimatedHours    = 1000

	// MaxDepth is the deepest allowed nesting level: root=0, subtask=1,
	// sub-subtask=2.
	MaxDepth = 2
)

type Task struct {
	ID          string     `json:"id"`
	ParentID    *string    `json:"parent_id,omitempty"`
	GroupID     *string    `json:"group_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`

	// Completed mirrors Status for callers still on the boolean model.
	// It is derived on read and never stored.
	Completed bool `json:"completed"`

	StartDate       *time.Time `json:"start_date,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	OriginalDueDate *time.Time `json:"original_due_date,omitempty"`
	StartedDate     *time.Time `json:"started_date,omitempty"`
	CompletedDate   *time.Time `json:"completed_date,omitempty"`
	EstimatedHours  *float64   `json:"estimated_hours,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	TagIDs []string `json:"tag_ids,omitempty"`

	// GroupName is a helper field for joined queries
	GroupName string `json:"group_name,omitempty"`
}

// SyncCompleted refreshes the derived boolean view of Status.
func (t *Task) SyncCompleted() {
	t.Completed = t.Status == TaskStatusCompleted
}
