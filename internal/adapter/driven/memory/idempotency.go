// Package memory provides process-local implementations of driven ports.
package memory

import (
	"net/http"
	"sync"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// DefaultIdempotencyTTL is how long an entry lives, measured from creation.
const DefaultIdempotencyTTL = 2 * time.Minute

// Compile-time interface satisfaction check.
var _ driven.IdempotencyStore = (*IdempotencyStore)(nil)

type idempotencyEntry struct {
	createdAt  time.Time
	inProgress bool
	response   *model.StoredResponse
	purge      *time.Timer
}

// IdempotencyStore is an in-memory IdempotencyStore. All state lives in one
// map guarded by a single mutex, so Begin's check-then-claim is atomic. It
// does not survive restarts and is not shared between processes.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
	closed  bool
}

// NewIdempotencyStore creates an empty store. A non-positive ttl falls back
// to DefaultIdempotencyTTL.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Begin claims key or reports the live entry already holding it. Entries
// older than the TTL are treated as absent, whether or not they completed.
func (s *IdempotencyStore) Begin(key string) model.IdempotencyLookup {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if e, ok := s.entries[key]; ok && now.Sub(e.createdAt) < s.ttl {
		if e.inProgress {
			return model.IdempotencyLookup{State: model.IdempotencyInProgress, StartedAt: e.createdAt}
		}
		return model.IdempotencyLookup{
			State:     model.IdempotencyCompleted,
			StartedAt: e.createdAt,
			Response:  cloneResponse(e.response),
		}
	} else if ok {
		s.removeLocked(key)
	}

	s.entries[key] = &idempotencyEntry{createdAt: now, inProgress: true}

	return model.IdempotencyLookup{State: model.IdempotencyStarted, StartedAt: now}
}

// Complete stores resp for the entry created at startedAt and arms a purge at
// startedAt+TTL. It is a no-op if the entry was purged or replaced meanwhile.
func (s *IdempotencyStore) Complete(key string, startedAt time.Time, resp model.StoredResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.createdAt.Equal(startedAt) {
		return
	}

	e.inProgress = false
	e.response = cloneResponse(&resp)

	if s.closed {
		return
	}

	remaining := s.ttl - s.now().Sub(startedAt)
	if remaining < 0 {
		remaining = 0
	}
	if e.purge != nil {
		e.purge.Stop()
	}
	e.purge = time.AfterFunc(remaining, func() { s.purge(key, startedAt) })
}

// Abandon removes the entry created at startedAt.
func (s *IdempotencyStore) Abandon(key string, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.createdAt.Equal(startedAt) {
		s.removeLocked(key)
	}
}

// Len returns the number of entries currently held, expired or not.
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops pending purge timers and drops all entries.
func (s *IdempotencyStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		s.removeLocked(key)
	}
	s.closed = true
}

// purge deletes key only if it still holds the entry created at startedAt,
// so a newer entry that reused the key is left alone.
func (s *IdempotencyStore) purge(key string, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.createdAt.Equal(startedAt) {
		delete(s.entries, key)
	}
}

func (s *IdempotencyStore) removeLocked(key string) {
	if e := s.entries[key]; e != nil && e.purge != nil {
		e.purge.Stop()
	}
	delete(s.entries, key)
}

func cloneResponse(r *model.StoredResponse) *model.StoredResponse {
	if r == nil {
		return nil
	}

	out := &model.StoredResponse{StatusCode: r.StatusCode}
	if r.Header != nil {
		out.Header = r.Header.Clone()
	} else {
		out.Header = http.Header{}
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}

	return out
}
