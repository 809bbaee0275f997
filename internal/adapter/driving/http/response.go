package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/taskapi/internal/application"
	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeData writes a success envelope with hypermedia links.
func writeData(w http.ResponseWriter, status int, data any, links Links) {
	writeJSON(w, status, envelope{Data: data, Links: links})
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// envelope wraps every successful payload.
type envelope struct {
	Data  any   `json:"data"`
	Links Links `json:"_links,omitempty"`
}

// errorResponse is the standard error response body. Errors lists per-field
// problems for validation failures.
type errorResponse struct {
	Error  string                   `json:"error"`
	Errors []application.FieldError `json:"errors,omitempty"`
}

// UserResponse is the sanitized JSON representation of a user. It never
// carries the password hash.
type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// TaskResponse is the JSON representation of a task.
type TaskResponse struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	DescriptionHTML string  `json:"description_html"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	Links           Links   `json:"_links,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

func toUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTaskResponse(t model.Task) TaskResponse {
	var descriptionHTML string
	if t.Description != nil {
		descriptionHTML = renderMarkdown(*t.Description)
	}

	return TaskResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Title:           t.Title,
		Description:     t.Description,
		DescriptionHTML: descriptionHTML,
		Status:          string(t.Status),
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
