// Package logging provides slog handlers used by the service.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// DefaultBufferSize is the number of records queued for persistence before
// new records are dropped.
const DefaultBufferSize = 256

const drainTimeout = 5 * time.Second

// sink is shared by a PersistHandler and every handler derived from it.
type sink struct {
	store   driven.LogStore
	queue   chan model.LogEntry
	dropped atomic.Int64
}

// PersistHandler forwards every record to next and additionally queues
// records at or above level for insertion into a LogStore. Queued records are
// written by Run; when the queue is full they are dropped, so logging never
// blocks on the database.
type PersistHandler struct {
	next   slog.Handler
	level  slog.Leveler
	sink   *sink
	attrs  []slog.Attr
	groups []string
}

// NewPersistHandler wraps next. bufferSize <= 0 uses DefaultBufferSize.
func NewPersistHandler(next slog.Handler, store driven.LogStore, level slog.Leveler, bufferSize int) *PersistHandler {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &PersistHandler{
		next:  next,
		level: level,
		sink:  &sink{store: store, queue: make(chan model.LogEntry, bufferSize)},
	}
}

func (h *PersistHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() || h.next.Enabled(ctx, level)
}

func (h *PersistHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.next.Enabled(ctx, r.Level) {
		err = h.next.Handle(ctx, r)
	}

	if r.Level >= h.level.Level() {
		select {
		case h.sink.queue <- h.entry(r):
		default:
			h.sink.dropped.Add(1)
		}
	}

	return err
}

func (h *PersistHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), nest(h.groups, attrs)...)
	return &clone
}

func (h *PersistHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// Dropped returns how many records were discarded because the queue was full.
func (h *PersistHandler) Dropped() int64 {
	return h.sink.dropped.Load()
}

// Run writes queued records until ctx is cancelled, then flushes whatever is
// still queued within a short deadline. Insert failures are skipped; they
// cannot be logged without feeding back into the queue.
func (h *PersistHandler) Run(ctx context.Context) {
	for {
		select {
		case entry := <-h.sink.queue:
			_ = h.sink.store.Insert(context.WithoutCancel(ctx), entry)
		case <-ctx.Done():
			h.drain()
			return
		}
	}
}

func (h *PersistHandler) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case entry := <-h.sink.queue:
			if err := h.sink.store.Insert(ctx, entry); err != nil && ctx.Err() != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *PersistHandler) entry(r slog.Record) model.LogEntry {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)

	recordAttrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		recordAttrs = append(recordAttrs, a)
		return true
	})
	attrs = append(attrs, nest(h.groups, recordAttrs)...)

	metadata := "{}"
	if len(attrs) > 0 {
		if b, err := json.Marshal(attrsToMap(attrs)); err == nil {
			metadata = string(b)
		}
	}

	createdAt := r.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return model.LogEntry{
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  metadata,
		CreatedAt: createdAt.UTC(),
	}
}

// nest wraps attrs in the open groups, innermost last.
func nest(groups []string, attrs []slog.Attr) []slog.Attr {
	if len(groups) == 0 || len(attrs) == 0 {
		return attrs
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	for i := len(groups) - 1; i >= 0; i-- {
		args = []any{slog.Group(groups[i], args...)}
	}
	return []slog.Attr{args[0].(slog.Attr)}
}

func attrsToMap(attrs []slog.Attr) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		v := a.Value.Resolve()
		if a.Key == "" && v.Kind() != slog.KindGroup {
			continue
		}
		switch v.Kind() {
		case slog.KindGroup:
			group := attrsToMap(v.Group())
			if a.Key == "" {
				for k, gv := range group {
					m[k] = gv
				}
				continue
			}
			existing, ok := m[a.Key].(map[string]any)
			if !ok {
				m[a.Key] = group
				continue
			}
			for k, gv := range group {
				existing[k] = gv
			}
		case slog.KindTime:
			m[a.Key] = v.Time().UTC().Format(time.RFC3339Nano)
		case slog.KindDuration:
			m[a.Key] = v.Duration().String()
		case slog.KindAny:
			if err, ok := v.Any().(error); ok {
				m[a.Key] = err.Error()
				continue
			}
			m[a.Key] = v.Any()
		default:
			m[a.Key] = v.Any()
		}
	}
	return m
}
