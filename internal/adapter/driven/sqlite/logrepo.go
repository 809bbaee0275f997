package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LogStore = (*LogRepo)(nil)

// LogRepo persists structured log records into the logs table.
type LogRepo struct {
	db *DB
}

// NewLogRepo creates a new LogRepo backed by the given DB.
func NewLogRepo(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

// Insert writes one log record. An empty Metadata is stored as "{}".
func (r *LogRepo) Insert(ctx context.Context, entry model.LogEntry) error {
	const query = `INSERT INTO logs (level, message, metadata, created_at) VALUES (?, ?, ?, ?)`

	metadata := entry.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, entry.Level, entry.Message, metadata, formatTime(createdAt)); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}

	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *LogRepo) ListRecent(ctx context.Context, limit int) ([]model.LogEntry, error) {
	const query = `SELECT id, level, message, metadata, created_at FROM logs ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}

	return entries, nil
}
