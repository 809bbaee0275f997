package model

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusCompleted
}

// IdempotencyState describes the outcome of an idempotency lookup.
type IdempotencyState int

const (
	// IdempotencyStarted means the key was absent and is now marked in progress
	// for the caller.
	IdempotencyStarted IdempotencyState = iota
	// IdempotencyInProgress means another request with the same key has not
	// finished yet.
	IdempotencyInProgress
	// IdempotencyCompleted means a stored response is available for replay.
	IdempotencyCompleted
)
