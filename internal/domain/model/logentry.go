package model

import "time"

// LogEntry is a structured log record persisted for later inspection.
// Metadata holds the record's attributes as a JSON object.
type LogEntry struct {
	ID        int64
	Level     string
	Message   string
	Metadata  string
	CreatedAt time.Time
}
