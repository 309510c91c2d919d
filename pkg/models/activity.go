package models

import "time"

type ActivityAction string

const (
	ActionCreated        ActivityAction = "CREATED"
	ActionUpdated        ActivityAction = "UPDATED"
	ActionCompleted      ActivityAction = "COMPLETED"
	ActionSubtaskDeleted ActivityAction = "SUBTASK_DELETED"
	ActionComment        ActivityAction = "COMMENT"
)

// ActivityLogEntry is an append-only record of a task state transition or a
// user comment. Entries are never updated; they are removed only when their
// owning task is cascade-deleted.
type ActivityLogEntry struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	Action        ActivityAction `json:"action"`
	Details       string         `json:"details"`
	Comment       *string        `json:"comment,omitempty"`
	IsUserComment bool           `json:"is_user_comment"`
	CreatedAt     time.Time      `json:"created_at"`

	// Helper fields for scoped queries
	IsSubtask         bool   `json:"is_subtask,omitempty"`
	IsDirectGroupTask bool   `json:"is_direct_group_task,omitempty"`
	TaskTitle         string `json:"task_title,omitempty"`
}
