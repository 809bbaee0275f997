package memory

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

// fakeClock is a manually advanced clock for exercising TTL boundaries.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*IdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	s := NewIdempotencyStore(2 * time.Minute)
	s.now = clock.Now
	t.Cleanup(s.Close)
	return s, clock
}

func jsonResponse(status int, body string) model.StoredResponse {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	return model.StoredResponse{StatusCode: status, Header: h, Body: []byte(body)}
}

func TestIdempotencyStore_BeginClaimsAbsentKey(t *testing.T) {
	s, clock := newTestStore(t)

	got := s.Begin("k")

	assert.Equal(t, model.IdempotencyStarted, got.State)
	assert.Equal(t, clock.Now(), got.StartedAt)
	assert.Nil(t, got.Response)
}

func TestIdempotencyStore_DuplicateWhileInProgress(t *testing.T) {
	s, _ := newTestStore(t)

	first := s.Begin("k")
	require.Equal(t, model.IdempotencyStarted, first.State)

	second := s.Begin("k")
	assert.Equal(t, model.IdempotencyInProgress, second.State)
	assert.Nil(t, second.Response)
}

func TestIdempotencyStore_ReplayAfterComplete(t *testing.T) {
	s, clock := newTestStore(t)

	first := s.Begin("k")
	clock.Advance(10 * time.Second)
	s.Complete("k", first.StartedAt, jsonResponse(http.StatusCreated, `{"data":{"id":1}}`))

	clock.Advance(30 * time.Second)
	got := s.Begin("k")

	require.Equal(t, model.IdempotencyCompleted, got.State)
	require.NotNil(t, got.Response)
	assert.Equal(t, http.StatusCreated, got.Response.StatusCode)
	assert.JSONEq(t, `{"data":{"id":1}}`, string(got.Response.Body))
	assert.Equal(t, "application/json; charset=utf-8", got.Response.Header.Get("Content-Type"))
	assert.Equal(t, first.StartedAt, got.StartedAt, "completion keeps the original creation time")
}

func TestIdempotencyStore_ReplayNoBodyResponse(t *testing.T) {
	s, _ := newTestStore(t)

	first := s.Begin("k")
	s.Complete("k", first.StartedAt, model.StoredResponse{StatusCode: http.StatusNoContent})

	got := s.Begin("k")
	require.Equal(t, model.IdempotencyCompleted, got.State)
	assert.Equal(t, http.StatusNoContent, got.Response.StatusCode)
	assert.Nil(t, got.Response.Body)
}

func TestIdempotencyStore_ExpiresFromCreation(t *testing.T) {
	s, clock := newTestStore(t)

	first := s.Begin("k")
	clock.Advance(90 * time.Second)
	s.Complete("k", first.StartedAt, jsonResponse(http.StatusCreated, `{}`))

	// 90s + 30s = TTL measured from creation, not from completion.
	clock.Advance(30 * time.Second)
	got := s.Begin("k")

	assert.Equal(t, model.IdempotencyStarted, got.State, "expired entry must allow fresh execution")
	assert.Equal(t, clock.Now(), got.StartedAt)
}

func TestIdempotencyStore_InProgressExpires(t *testing.T) {
	s, clock := newTestStore(t)

	stale := s.Begin("k")
	clock.Advance(2 * time.Minute)

	fresh := s.Begin("k")
	require.Equal(t, model.IdempotencyStarted, fresh.State)

	// The stale request finishing late must not overwrite the fresh claim.
	s.Complete("k", stale.StartedAt, jsonResponse(http.StatusOK, `{"stale":true}`))

	got := s.Begin("k")
	assert.Equal(t, model.IdempotencyInProgress, got.State)
}

func TestIdempotencyStore_Abandon(t *testing.T) {
	s, _ := newTestStore(t)

	first := s.Begin("k")
	s.Abandon("k", first.StartedAt)

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, model.IdempotencyStarted, s.Begin("k").State)
}

func TestIdempotencyStore_AbandonIgnoresNewerEntry(t *testing.T) {
	s, clock := newTestStore(t)

	old := s.Begin("k")
	clock.Advance(3 * time.Minute)
	newer := s.Begin("k")
	require.Equal(t, model.IdempotencyStarted, newer.State)

	s.Abandon("k", old.StartedAt)

	assert.Equal(t, model.IdempotencyInProgress, s.Begin("k").State)
}

func TestIdempotencyStore_PurgeOnlyMatchingTimestamp(t *testing.T) {
	s, clock := newTestStore(t)

	old := s.Begin("k")
	clock.Advance(3 * time.Minute)
	newer := s.Begin("k")

	s.purge("k", old.StartedAt)
	assert.Equal(t, 1, s.Len(), "purge armed for an older entry must not remove a newer one")

	s.purge("k", newer.StartedAt)
	assert.Equal(t, 0, s.Len())
}

func TestIdempotencyStore_CompletePurgesAfterTTL(t *testing.T) {
	s := NewIdempotencyStore(20 * time.Millisecond)
	t.Cleanup(s.Close)

	first := s.Begin("k")
	s.Complete("k", first.StartedAt, jsonResponse(http.StatusOK, `{}`))
	require.Equal(t, 1, s.Len())

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestIdempotencyStore_ReturnedResponseIsCopy(t *testing.T) {
	s, _ := newTestStore(t)

	first := s.Begin("k")
	s.Complete("k", first.StartedAt, jsonResponse(http.StatusOK, `{"a":1}`))

	got := s.Begin("k")
	got.Response.Body[0] = 'X'
	got.Response.Header.Set("Content-Type", "text/plain")

	again := s.Begin("k")
	assert.Equal(t, `{"a":1}`, string(again.Response.Body))
	assert.Equal(t, "application/json; charset=utf-8", again.Response.Header.Get("Content-Type"))
}

func TestIdempotencyStore_ConcurrentBeginSingleWinner(t *testing.T) {
	s := NewIdempotencyStore(time.Minute)
	t.Cleanup(s.Close)

	const workers = 64
	var started atomic.Int32
	var wg sync.WaitGroup
	gate := make(chan struct{})

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			if s.Begin("same-key").State == model.IdempotencyStarted {
				started.Add(1)
			}
		}()
	}

	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
}
