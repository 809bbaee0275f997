package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/ericfisherdev/taskapi/internal/application"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// Config holds the HTTP-layer settings.
type Config struct {
	// AuthTransport selects the single token carrier honored by the auth gate.
	// Anything other than AuthTransportBearer means the cookie.
	AuthTransport AuthTransport

	// SecureCookies sets the Secure flag on the session cookie.
	SecureCookies bool

	// CORSOrigins lists origins allowed to make credentialed cross-origin
	// requests. Empty disables CORS handling.
	CORSOrigins []string

	AuthRateLimit  int
	AuthRateWindow time.Duration
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	authSvc     *application.AuthService
	taskSvc     *application.TaskService
	healthSvc   *application.HealthService
	idempotency driven.IdempotencyStore
	gate        *authGate
	limiter     *RateLimiter
	cfg         Config
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	authSvc *application.AuthService,
	taskSvc *application.TaskService,
	healthSvc *application.HealthService,
	tokens driven.TokenIssuer,
	idempotency driven.IdempotencyStore,
	cfg Config,
	logger *slog.Logger,
) *Handler {
	if cfg.AuthTransport != AuthTransportBearer {
		cfg.AuthTransport = AuthTransportCookie
	}

	return &Handler{
		authSvc:     authSvc,
		taskSvc:     taskSvc,
		healthSvc:   healthSvc,
		idempotency: idempotency,
		gate:        &authGate{tokens: tokens, transport: cfg.AuthTransport, logger: logger},
		limiter:     NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, logger),
		cfg:         cfg,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with the middleware chain.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/auth/signup", h.limiter.Wrap(h.Signup))
	mux.HandleFunc("POST /api/auth/login", h.limiter.Wrap(h.Login))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/me", h.gate.require(h.Me))

	mux.HandleFunc("POST /api/tasks", h.gate.require(h.CreateTask))
	mux.HandleFunc("GET /api/tasks", h.gate.require(h.ListTasks))
	mux.HandleFunc("PUT /api/tasks/{id}", h.gate.require(h.UpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", h.gate.require(h.DeleteTask))

	// Outermost first: request id, logging, recovery, CORS, body limit, idempotency.
	wrapped := idempotencyMiddleware(h.idempotency, h.cfg.AuthTransport, logger, mux)
	wrapped = bodyLimitMiddleware(wrapped)
	if len(h.cfg.CORSOrigins) > 0 {
		wrapped = cors.New(cors.Options{
			AllowedOrigins:   h.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", "Authorization", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader, replayedHeader},
			AllowCredentials: true,
		}).Handler(wrapped)
	}
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// errTrailingData reports a body with content after its JSON value.
var errTrailingData = errors.New("unexpected data after JSON value")

// decodeJSON decodes the request body into v. An empty body leaves v at its
// zero value so that validation reports the missing fields. The body must
// hold a single JSON value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errTrailingData
	}
	return nil
}

// writeDecodeError reports a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

// Signup registers a new account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in application.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.authSvc.Signup(r.Context(), in)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, toUserResponse(*user), signupLinks())
}

// Login verifies credentials, returns the session token, and in cookie mode
// sets it as the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in application.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.authSvc.Login(r.Context(), in)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if h.cfg.AuthTransport == AuthTransportCookie {
		http.SetCookie(w, sessionCookie(result.Token, result.ExpiresAt, h.cfg.SecureCookies))
	}

	writeData(w, http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserResponse(result.User),
	}, loginLinks())
}

// Logout clears the session cookie in cookie mode. Tokens are stateless, so
// there is nothing to revoke server-side.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	if h.cfg.AuthTransport == AuthTransportCookie {
		http.SetCookie(w, clearedSessionCookie(h.cfg.SecureCookies))
	}
	writeData(w, http.StatusOK, MessageResponse{Message: "logged out"}, signupLinks())
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	user, err := h.authSvc.CurrentUser(r.Context(), userID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, toUserResponse(*user), meLinks())
}

// CreateTask adds a task for the authenticated user.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var in application.CreateTaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.taskSvc.Create(r.Context(), userID, in)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, toTaskResponse(*task), taskLinks(task.ID))
}

// ListTasks returns the authenticated user's tasks, optionally filtered by ?status=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	tasks, err := h.taskSvc.List(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		item := toTaskResponse(task)
		item.Links = taskItemLinks(task.ID)
		resp = append(resp, item)
	}

	writeData(w, http.StatusOK, resp, taskListLinks())
}

// UpdateTask applies a partial update to one of the user's tasks.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	taskID, ok := parseTaskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var in application.UpdateTaskInput
	if err := decodeJSON(r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.taskSvc.Update(r.Context(), userID, taskID, in)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusOK, toTaskResponse(*task), taskLinks(task.ID))
}

// DeleteTask removes one of the user's tasks.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	taskID, ok := parseTaskID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := h.taskSvc.Delete(r.Context(), userID, taskID); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health reports service and database status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.healthSvc.Check(r.Context())

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:   status.Status,
		Database: status.Database,
		Time:     status.Time.Format(time.RFC3339),
	})
}

func parseTaskID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
