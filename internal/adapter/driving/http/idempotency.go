package httphandler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ericfisherdev/taskapi/internal/domain/model"
	"github.com/ericfisherdev/taskapi/internal/domain/port/driven"
)

// replayedHeader marks responses served from the idempotency store.
const replayedHeader = "Idempotent-Replayed"

// replayableHeaders are the response headers stored alongside the body.
var replayableHeaders = []string{"Content-Type", "Location", "Set-Cookie"}

// isUnsafeMethod reports whether the method has side effects and is
// therefore deduplicated.
func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// requestFingerprint hashes method, path, caller scope and body. JSON bodies
// are compacted first so that bodies serializing identically collide; an
// empty body hashes as "".
func requestFingerprint(method, path, scope string, body []byte) string {
	normalized := body
	if len(body) > 0 && json.Valid(body) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err == nil {
			normalized = buf.Bytes()
		}
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'|'})
	h.Write([]byte(path))
	h.Write([]byte{'|'})
	h.Write([]byte(scope))
	h.Write([]byte{'|'})
	h.Write(normalized)

	return hex.EncodeToString(h.Sum(nil))
}

// carrierScope digests the request's credential carrier so that identical
// requests from different sessions never share an entry. Anonymous requests
// share the empty scope.
func carrierScope(r *http.Request, transport AuthTransport) string {
	carrier := transport.carrier(r)
	if carrier == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(carrier))
	return hex.EncodeToString(sum[:])
}

// captureWriter writes through to the client while keeping a copy of the
// status and body for the idempotency store.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (cw *captureWriter) WriteHeader(status int) {
	if !cw.wroteHeader {
		cw.status = status
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	cw.body.Write(b)
	return cw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (cw *captureWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}

func (cw *captureWriter) stored() model.StoredResponse {
	status := cw.status
	if !cw.wroteHeader {
		status = http.StatusOK
	}

	header := http.Header{}
	for _, name := range replayableHeaders {
		if values := cw.Header().Values(name); len(values) > 0 {
			header[name] = append([]string(nil), values...)
		}
	}

	var body []byte
	if cw.body.Len() > 0 {
		body = bytes.Clone(cw.body.Bytes())
	}

	return model.StoredResponse{StatusCode: status, Header: header, Body: body}
}

// cacheable reports whether a finished response may be replayed. Server
// errors and throttling responses are transient, so retries re-execute.
func cacheable(status int) bool {
	return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
}

// idempotencyMiddleware deduplicates unsafe requests by fingerprint. A
// duplicate that arrives while the first is still running gets 429; one that
// arrives after completion gets the stored response replayed verbatim.
// Entries are completed when the handler returns, even if the client has
// already gone away.
func idempotencyMiddleware(store driven.IdempotencyStore, transport AuthTransport, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isUnsafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			_ = r.Body.Close()
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		key := requestFingerprint(r.Method, r.URL.Path, carrierScope(r, transport), body)
		lookup := store.Begin(key)

		switch lookup.State {
		case model.IdempotencyInProgress:
			logger.InfoContext(r.Context(), "duplicate request in progress",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestIDFromContext(r.Context()),
			)
			writeError(w, http.StatusTooManyRequests, "request in progress, retry later")
			return

		case model.IdempotencyCompleted:
			replay(w, lookup.Response)
			return
		}

		cw := &captureWriter{ResponseWriter: w}
		completed := false
		defer func() {
			if !completed {
				store.Abandon(key, lookup.StartedAt)
			}
		}()

		next.ServeHTTP(cw, r)

		resp := cw.stored()
		if cacheable(resp.StatusCode) {
			store.Complete(key, lookup.StartedAt, resp)
			completed = true
		}
	})
}

func replay(w http.ResponseWriter, resp *model.StoredResponse) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}
