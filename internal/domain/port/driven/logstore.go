package driven

import (
	"context"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// LogStore defines the driven port for persisting structured log records.
type LogStore interface {
	Insert(ctx context.Context, entry model.LogEntry) error
}
