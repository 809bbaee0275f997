package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

const (
	maxDescriptionLength = 1000
	taskNotFoundMessage  = "task not found"
)

// CreateTaskInput is the payload for creating a task.
type CreateTaskInput struct {
	Title       string  `json:"title" validate:"min=1,max=200"`
	Description *string `json:"description" validate:"omitnil,max=1000"`
}

// UpdateTaskInput is a partial update. Nil pointers leave a field unchanged;
// Description.Set with a nil Value clears the description.
type UpdateTaskInput struct {
	Title       *string           `json:"title" validate:"omitnil,min=1,max=200"`
	Description NullableString    `json:"description"`
	Status      *model.TaskStatus `json:"status" validate:"omitnil,oneof=pending completed"`
}

// NullableString distinguishes an absent JSON field from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records that the field was present, and whether it was null.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// TaskService implements task CRUD with per-user ownership checks.
type TaskService struct {
	tasks  driven.TaskStore
	logger *slog.Logger
}

// NewTaskService creates a TaskService with the required dependencies.
func NewTaskService(tasks driven.TaskStore, logger *slog.Logger) *TaskService {
	return &TaskService{tasks: tasks, logger: logger}
}

// Create adds a pending task owned by userID.
func (s *TaskService) Create(ctx context.Context, userID int64, in CreateTaskInput) (*model.Task, error) {
	in.Title = strings.TrimSpace(in.Title)

	if err := validateStruct(in); err != nil {
		return nil, err
	}

	task, err := s.tasks.Create(ctx, model.Task{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      model.TaskStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

// List returns the user's tasks newest first. status may be empty, "pending"
// or "completed".
func (s *TaskService) List(ctx context.Context, userID int64, status string) ([]model.Task, error) {
	var filter *model.TaskStatus
	if status != "" {
		st := model.TaskStatus(status)
		if !st.Valid() {
			return nil, Validation(invalidDataMessage, FieldError{
				Field:   "status",
				Message: "status must be one of: pending completed",
			})
		}
		filter = &st
	}

	tasks, err := s.tasks.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Update applies a partial update to a task owned by userID. Tasks owned by
// someone else are reported as not found.
func (s *TaskService) Update(ctx context.Context, userID, taskID int64, in UpdateTaskInput) (*model.Task, error) {
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		in.Title = &trimmed
	}

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Description.Value != nil && utf8.RuneCountInString(*in.Description.Value) > maxDescriptionLength {
		return nil, Validation(invalidDataMessage, FieldError{
			Field:   "description",
			Message: fmt.Sprintf("description must be at most %d characters", maxDescriptionLength),
		})
	}

	task, err := s.findOwned(ctx, userID, taskID, "update")
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description.Set {
		task.Description = in.Description.Value
	}
	if in.Status != nil {
		task.Status = *in.Status
	}

	updated, err := s.tasks.Update(ctx, *task)
	if err != nil {
		if errors.Is(err, driven.ErrTaskNotFound) {
			return nil, NotFound(taskNotFoundMessage)
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	return updated, nil
}

// Delete removes a task owned by userID.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int64) error {
	if _, err := s.findOwned(ctx, userID, taskID, "delete"); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID, userID); err != nil {
		if errors.Is(err, driven.ErrTaskNotFound) {
			return NotFound(taskNotFoundMessage)
		}
		return fmt.Errorf("delete task: %w", err)
	}

	return nil
}

// findOwned loads a task scoped to its owner. Absence and foreign ownership
// both yield NotFound; the attempt is logged for auditing.
func (s *TaskService) findOwned(ctx context.Context, userID, taskID int64, action string) (*model.Task, error) {
	task, err := s.tasks.GetByIDAndUser(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s task: %w", action, err)
	}
	if task == nil {
		s.logger.WarnContext(ctx, "task not found or not owned by user",
			"action", action,
			"user_id", userID,
			"task_id", taskID,
		)
		return nil, NotFound(taskNotFoundMessage)
	}
	return task, nil
}
