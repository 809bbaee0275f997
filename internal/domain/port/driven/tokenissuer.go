package driven

import (
	"errors"
	"time"
)

// Sentinel errors returned while authenticating a request.
var (
	// ErrInvalidToken indicates a bad signature, malformed payload,
	// unexpected algorithm, or an expired token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedAuthHeader indicates the token carrier is absent or not in
	// the expected shape.
	ErrMalformedAuthHeader = errors.New("malformed auth header")
)

// TokenIssuer issues and verifies stateless session tokens.
type TokenIssuer interface {
	// Issue signs a token for the user and returns it with its expiry.
	Issue(userID int64) (string, time.Time, error)

	// Verify returns the user ID carried by a valid token, or an error
	// wrapping ErrInvalidToken.
	Verify(token string) (int64, error)
}
