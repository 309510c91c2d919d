package models

import "time"

const (
	MaxGroupNameLength        = 100
	MaxGroupDescriptionLength = 500
)

type TaskGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
