package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// ErrTaskNotFound indicates the task does not exist or belongs to another user.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore defines the driven port for task persistence. Every lookup and
// mutation is scoped to the owning user.
type TaskStore interface {
	Create(ctx context.Context, task model.Task) (*model.Task, error)

	// ListByUser returns the user's tasks, newest first. A nil status returns
	// tasks in any status.
	ListByUser(ctx context.Context, userID int64, status *model.TaskStatus) ([]model.Task, error)

	// GetByIDAndUser returns (nil, nil) when the task is absent or not owned by userID.
	GetByIDAndUser(ctx context.Context, id, userID int64) (*model.Task, error)

	// Update persists title, description and status. Returns ErrTaskNotFound
	// if no row matched.
	Update(ctx context.Context, task model.Task) (*model.Task, error)

	// Delete returns ErrTaskNotFound if no row matched.
	Delete(ctx context.Context, id, userID int64) error
}
