package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/arixa/arixa/internal/models"
)

const (
	rateWindow   = time.Minute
	sweepEvery   = 5 * time.Minute
	apiKeyHeader = "X-API-Key"
)

// window holds the request times of one client in the last rateWindow.
type window struct {
	mu    sync.Mutex
	times []time.Time
}

// take records a request at now if the client is under limit. When it is
// not, wait is how long until the oldest request leaves the window.
func (w *window) take(now time.Time, limit int) (remaining int, wait time.Duration, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-rateWindow)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept

	if len(w.times) >= limit {
		wait := rateWindow
		if len(w.times) > 0 {
			wait = w.times[0].Sub(cutoff)
		}
		return 0, wait, false
	}
	w.times = append(w.times, now)
	return limit - len(w.times), 0, true
}

func (w *window) idle(cutoff time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.times) == 0 || w.times[len(w.times)-1].Before(cutoff)
}

// RateLimiter is a per-client sliding window limiter. Idle clients are
// swept on the request path, so no background goroutine is needed.
type RateLimiter struct {
	limit int
	now   func() time.Time

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		limit:   limitPerMinute,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (rl *RateLimiter) client(key string, now time.Time) *window {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= sweepEvery {
		cutoff := now.Add(-rateWindow)
		for k, w := range rl.windows {
			if w.idle(cutoff) {
				delete(rl.windows, k)
			}
		}
		rl.lastSweep = now
	}

	w, ok := rl.windows[key]
	if !ok {
		w = &window{}
		rl.windows[key] = w
	}
	return w
}

// clientKey prefers the API key and falls back to the caller's host.
func clientKey(r *http.Request) string {
	if k := r.Header.Get(apiKeyHeader); k != "" {
		return "key:" + k
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Handler enforces the limit on next. A limit below 1 disables limiting.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	if rl.limit <= 0 {
		return next
	}
	limit := strconv.Itoa(rl.limit)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		remaining, wait, ok := rl.client(clientKey(r), now).take(now, rl.limit)

		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			models.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits each client to limitPerMinute requests per minute. Zero
// or a negative value turns limiting off.
func RateLimit(limitPerMinute int) func(http.Handler) http.Handler {
	return NewRateLimiter(limitPerMinute).Handler
}
