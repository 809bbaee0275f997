package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port interface.
type UserRepo struct {
	db  *DB
	now func() time.Time
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db, now: time.Now}
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

// Create inserts a new user. Returns ErrUserAlreadyExists if the email is
// already registered.
func (r *UserRepo) Create(ctx context.Context, user model.User) (*model.User, error) {
	const query = `INSERT INTO users (name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING ` + userColumns

	now := formatTime(r.now())

	created, err := scanUser(r.db.Writer.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, now, now,
	))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("create user %s: %w", user.Email, driven.ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("create user %s: %w", user.Email, err)
	}

	return created, nil
}

// GetByEmail retrieves a user by exact email. Returns nil, nil if absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(r.db.Reader.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID. Returns nil, nil if absent.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}

	return user, nil
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var createdAt, updatedAt string

	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &u, nil
}
