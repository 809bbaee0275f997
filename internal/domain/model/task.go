package model

import "time"

// Task is a to-do item owned by a single user.
type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description *string
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
