package driven

import (
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// IdempotencyStore deduplicates unsafe requests by fingerprint. Begin must
// check and claim a key in a single atomic step so that two concurrent
// duplicates cannot both observe an absent entry.
type IdempotencyStore interface {
	// Begin claims key if it is absent or expired, or reports the current
	// in-progress or completed entry.
	Begin(key string) model.IdempotencyLookup

	// Complete stores the response for the entry created at startedAt. The
	// entry keeps its original creation time and expires relative to it.
	Complete(key string, startedAt time.Time, resp model.StoredResponse)

	// Abandon removes the entry created at startedAt so a retry executes
	// again. A newer entry under the same key is left untouched.
	Abandon(key string, startedAt time.Time)
}
