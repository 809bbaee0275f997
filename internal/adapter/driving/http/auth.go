package httphandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// tokenCookieName is the cookie that carries the session token.
const tokenCookieName = "token"

// AuthTransport selects where the auth gate reads the session token from.
// Exactly one carrier is honored per deployment.
type AuthTransport string

const (
	AuthTransportCookie AuthTransport = "cookie"
	AuthTransportBearer AuthTransport = "bearer"
)

// carrier returns the raw credential carrier value, or "" if absent.
func (t AuthTransport) carrier(r *http.Request) string {
	if t == AuthTransportBearer {
		return r.Header.Get("Authorization")
	}
	if c, err := r.Cookie(tokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// extract returns the token from the configured carrier. A missing or
// misshapen carrier yields driven.ErrMalformedAuthHeader.
func (t AuthTransport) extract(r *http.Request) (string, error) {
	raw := t.carrier(r)
	if raw == "" {
		return "", fmt.Errorf("%w: no %s credential", driven.ErrMalformedAuthHeader, t)
	}

	if t != AuthTransportBearer {
		return raw, nil
	}

	scheme, token, ok := strings.Cut(raw, " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: expected \"Bearer <token>\"", driven.ErrMalformedAuthHeader)
	}

	return strings.TrimSpace(token), nil
}

type userIDKey struct{}

// UserIDFromContext returns the authenticated user ID attached by the auth gate.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}

func withUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// authGate verifies the session token and attaches the user ID to the request
// context. Every failure is reported to the client as the same 401; the
// reason is only logged.
type authGate struct {
	tokens    driven.TokenIssuer
	transport AuthTransport
	logger    *slog.Logger
}

func (g *authGate) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := g.authenticate(r)
		if err != nil {
			g.logger.WarnContext(r.Context(), "authentication failed",
				"method", r.Method,
				"path", r.URL.Path,
				"reason", err.Error(),
				"request_id", requestIDFromContext(r.Context()),
			)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next(w, r.WithContext(withUserID(r.Context(), userID)))
	}
}

func (g *authGate) authenticate(r *http.Request) (int64, error) {
	token, err := g.transport.extract(r)
	if err != nil {
		return 0, err
	}
	return g.tokens.Verify(token)
}

// sessionCookie builds the cookie carrying a freshly issued token.
func sessionCookie(token string, expiresAt time.Time, secure bool) *http.Cookie {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	return &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// clearedSessionCookie expires the session cookie on the client.
func clearedSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
