package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
)

type recordingStore struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (s *recordingStore) Insert(_ context.Context, e model.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingStore) snapshot() []model.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LogEntry(nil), s.entries...)
}

func newTestHandler(store *recordingStore, persistLevel slog.Level, buffer int) (*PersistHandler, *bytes.Buffer) {
	var out bytes.Buffer
	next := slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewPersistHandler(next, store, persistLevel, buffer), &out
}

// flush runs the drain loop until the queue is empty.
func flush(h *PersistHandler) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)
}

func TestPersistHandler_TeesAtOrAboveLevel(t *testing.T) {
	store := &recordingStore{}
	h, out := newTestHandler(store, slog.LevelWarn, 16)
	logger := slog.New(h)

	logger.Info("routine", "k", "v")
	logger.Warn("careful", "user_id", 7)
	logger.Error("broken", "error", errors.New("disk full"))
	flush(h)

	assert.Equal(t, 3, bytes.Count(out.Bytes(), []byte("\n")), "every record reaches the next handler")

	entries := store.snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "careful", entries[0].Message)
	assert.JSONEq(t, `{"user_id":7}`, entries[0].Metadata)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.JSONEq(t, `{"error":"disk full"}`, entries[1].Metadata)
	assert.False(t, entries[1].CreatedAt.IsZero())
}

func TestPersistHandler_AttrsAndGroups(t *testing.T) {
	store := &recordingStore{}
	h, _ := newTestHandler(store, slog.LevelInfo, 16)

	logger := slog.New(h).With("service", "taskapi").WithGroup("req").With("id", "abc")
	logger.Info("handled", "status", 201, "took", 1500*time.Millisecond)
	flush(h)

	entries := store.snapshot()
	require.Len(t, entries, 1)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(entries[0].Metadata), &meta))
	assert.Equal(t, "taskapi", meta["service"])
	assert.Equal(t, map[string]any{"id": "abc", "status": float64(201), "took": "1.5s"}, meta["req"])
}

func TestPersistHandler_EmptyMetadata(t *testing.T) {
	store := &recordingStore{}
	h, _ := newTestHandler(store, slog.LevelInfo, 16)

	slog.New(h).Info("bare")
	flush(h)

	entries := store.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "{}", entries[0].Metadata)
}

func TestPersistHandler_DropsWhenQueueFull(t *testing.T) {
	store := &recordingStore{}
	h, _ := newTestHandler(store, slog.LevelInfo, 2)
	logger := slog.New(h)

	for range 5 {
		logger.Info("burst")
	}

	assert.Equal(t, int64(3), h.Dropped())
	flush(h)
	assert.Len(t, store.snapshot(), 2)
}

func TestPersistHandler_RunWritesInBackground(t *testing.T) {
	store := &recordingStore{}
	h, _ := newTestHandler(store, slog.LevelInfo, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	slog.New(h).Info("async")

	assert.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestPersistHandler_Enabled(t *testing.T) {
	store := &recordingStore{}
	next := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	h := NewPersistHandler(next, store, slog.LevelWarn, 4)

	ctx := context.Background()
	assert.False(t, h.Enabled(ctx, slog.LevelInfo))
	assert.True(t, h.Enabled(ctx, slog.LevelWarn), "persisted even though stdout is quieter")
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}
