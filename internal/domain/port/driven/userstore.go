package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// ErrUserAlreadyExists indicates a user with the same email is already registered.
var ErrUserAlreadyExists = errors.New("user already exists")

// UserStore defines the driven port for user persistence.
// Emails are stored and matched in the form they are given; callers normalize them.
type UserStore interface {
	// Create inserts the user and returns it with ID and timestamps populated.
	// Returns ErrUserAlreadyExists if the email is taken.
	Create(ctx context.Context, user model.User) (*model.User, error)

	// GetByEmail returns (nil, nil) if no user has the email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// GetByID returns (nil, nil) if the user does not exist.
	GetByID(ctx context.Context, id int64) (*model.User, error)
}
