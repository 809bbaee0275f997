package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TaskStore = (*TaskRepo)(nil)

// TaskRepo is the SQLite implementation of the TaskStore port interface.
// Every statement filters on user_id so one user can never touch another's rows.
type TaskRepo struct {
	db  *DB
	now func() time.Time
}

// NewTaskRepo creates a new TaskRepo backed by the given DB.
func NewTaskRepo(db *DB) *TaskRepo {
	return &TaskRepo{db: db, now: time.Now}
}

const taskColumns = `id, user_id, title, description, status, created_at, updated_at`

// Create inserts a task. An empty status defaults to pending.
func (r *TaskRepo) Create(ctx context.Context, task model.Task) (*model.Task, error) {
	const query = `INSERT INTO tasks (user_id, title, description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING ` + taskColumns

	status := task.Status
	if status == "" {
		status = model.TaskStatusPending
	}
	now := formatTime(r.now())

	created, err := scanTask(r.db.Writer.QueryRowContext(ctx, query,
		task.UserID, task.Title, nullString(task.Description), string(status), now, now,
	))
	if err != nil {
		return nil, fmt.Errorf("create task for user %d: %w", task.UserID, err)
	}

	return created, nil
}

// ListByUser returns the user's tasks newest first, optionally filtered by status.
func (r *TaskRepo) ListByUser(ctx context.Context, userID int64, status *model.TaskStatus) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}

	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks for user %d: %w", userID, err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// GetByIDAndUser returns the task only if userID owns it. Returns nil, nil otherwise.
func (r *TaskRepo) GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = ? AND user_id = ?`

	task, err := scanTask(r.db.Reader.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}

	return task, nil
}

// Update writes title, description and status and bumps updated_at.
func (r *TaskRepo) Update(ctx context.Context, task model.Task) (*model.Task, error) {
	const query = `UPDATE tasks SET title = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING ` + taskColumns

	updated, err := scanTask(r.db.Writer.QueryRowContext(ctx, query,
		task.Title, nullString(task.Description), string(task.Status), formatTime(r.now()),
		task.ID, task.UserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update task %d: %w", task.ID, driven.ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update task %d: %w", task.ID, err)
	}

	return updated, nil
}

// Delete removes the task if userID owns it.
func (r *TaskRepo) Delete(ctx context.Context, id, userID int64) error {
	const query = `DELETE FROM tasks WHERE id = ? AND user_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete task %d: %w", id, driven.ErrTaskNotFound)
	}

	return nil
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	var description sql.NullString
	var status, createdAt, updatedAt string

	if err := s.Scan(&t.ID, &t.UserID, &t.Title, &description, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if description.Valid {
		d := description.String
		t.Description = &d
	}
	t.Status = model.TaskStatus(status)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
