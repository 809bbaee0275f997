package model

import "time"

// User is a registered account. PasswordHash never leaves the service boundary.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
