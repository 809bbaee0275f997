package httphandler

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter     *rate.Limiter
	windowStart time.Time
}

// RateLimiter throttles requests per client IP in fixed windows: each client
// gets `requests` tokens when its window opens and none until the next one.
// State lives in process memory only.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	requests  int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
	logger    *slog.Logger
}

// NewRateLimiter allows `requests` requests per client within `window`.
func NewRateLimiter(requests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		requests: requests,
		window:   window,
		now:      time.Now,
		logger:   logger,
	}
}

// allow consumes one token for key. When the window is exhausted it returns
// the time left until the window closes.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	entry, ok := rl.limiters[key]
	if !ok || !now.Before(entry.windowStart.Add(rl.window)) {
		// A zero limit never refills, so the bucket holds exactly one
		// window's worth of tokens.
		entry = &limiterEntry{limiter: rate.NewLimiter(0, rl.requests), windowStart: now}
		rl.limiters[key] = entry
	}

	if !entry.limiter.AllowN(now, 1) {
		return false, entry.windowStart.Add(rl.window).Sub(now)
	}

	return true, 0
}

// sweepLocked drops entries whose window has closed.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for key, entry := range rl.limiters {
		if !now.Before(entry.windowStart.Add(rl.window)) {
			delete(rl.limiters, key)
		}
	}
	rl.lastSweep = now
}

// Wrap rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		ok, wait := rl.allow(ip)
		if !ok {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				"client_ip", ip,
				"path", r.URL.Path,
				"retry_after", wait.Round(time.Second),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}

		next(w, r)
	}
}

// clientIP returns the peer address of the request. Forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
