package httphandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/taskapi/internal/application"
)

// statusForKind maps an application error kind to its HTTP status.
func statusForKind(kind application.ErrorKind) int {
	switch kind {
	case application.KindValidation:
		return http.StatusBadRequest
	case application.KindUnauthorized:
		return http.StatusUnauthorized
	case application.KindNotFound:
		return http.StatusNotFound
	case application.KindConflict:
		return http.StatusConflict
	case application.KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError is the single boundary that turns service errors into HTTP
// responses. Typed application errors keep their message; anything else is
// logged and reported as a generic 500.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *application.Error
	if errors.As(err, &appErr) && appErr.Kind != application.KindInternal {
		writeJSON(w, statusForKind(appErr.Kind), errorResponse{
			Error:  appErr.Message,
			Errors: appErr.Fields,
		})
		return
	}

	logger.ErrorContext(r.Context(), "unhandled error",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFromContext(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
