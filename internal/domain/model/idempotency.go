package model

import (
	"net/http"
	"time"
)

// StoredResponse is a captured HTTP response kept for idempotent replay.
// Body is nil for responses that carried no payload (e.g. 204).
type StoredResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IdempotencyLookup is the result of claiming an idempotency key.
type IdempotencyLookup struct {
	State IdempotencyState

	// StartedAt is the creation time of the entry. It identifies the entry when
	// the caller later completes or abandons it.
	StartedAt time.Time

	// Response is set only when State is IdempotencyCompleted.
	Response *StoredResponse
}
