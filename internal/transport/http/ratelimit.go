package http

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/observability/metrics"
)

// RateResult is the observable outcome of a rate check. ResetAt is
// surfaced to callers as a Retry-After hint.
type RateResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type rateEntry struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a process-wide fixed-window counter keyed by client
// address. Fixed windows accept a boundary burst of up to twice the cap
// across a window edge; that is a deliberate simplicity tradeoff, and the
// {allowed, remaining, resetAt} shape is a stable contract for callers.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry

	window time.Duration
	cap    int
	now    func() time.Time
}

// RateLimiterOption customizes a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithClock substitutes the time source (tests).
func WithClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter creates a fixed-window rate limiter.
func NewRateLimiter(window time.Duration, cap int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		entries: make(map[string]*rateEntry),
		window:  window,
		cap:     cap,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Check admits or rejects one request for the given client key.
func (rl *RateLimiter) Check(key string) RateResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &rateEntry{count: 1, resetAt: now.Add(rl.window)}
		rl.entries[key] = entry
		return RateResult{Allowed: true, Remaining: rl.cap - 1, ResetAt: entry.resetAt}
	}

	entry.count++
	remaining := rl.cap - entry.count
	if remaining < 0 {
		remaining = 0
	}
	return RateResult{
		Allowed:   entry.count <= rl.cap,
		Remaining: remaining,
		ResetAt:   entry.resetAt,
	}
}

// Sweep removes expired entries, bounding memory to the number of
// distinct recently active client keys.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, entry := range rl.entries {
		if now.After(entry.resetAt) {
			delete(rl.entries, key)
		}
	}
}

// StartSweeper runs Sweep on the given interval until stop is closed.
func (rl *RateLimiter) StartSweeper(stop <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rl.Sweep()
			}
		}
	}()
}

// RateLimitMiddleware rejects over-cap requests with 429 and a
// Retry-After computed from the window reset.
func RateLimitMiddleware(rl *RateLimiter, m *metrics.HTTPMetrics, auditLogger audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m != nil {
				m.RequestsTotal.Add(r.Context(), 1)
			}

			key := clientKey(r)
			result := rl.Check(key)

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			if !result.Allowed {
				if m != nil {
					m.RateLimitedTotal.Add(r.Context(), 1)
				}
				if auditLogger != nil {
					auditLogger.Log(r.Context(), audit.Event{
						Type:      audit.TypeRateLimited,
						Resource:  r.URL.Path,
						IPAddress: key,
					})
				}
				retryAfter := int(time.Until(result.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey derives the rate-limit bucket key: first hop of
// X-Forwarded-For, then X-Real-IP, then a shared "unknown" sentinel.
// All clients presenting neither header collapse into one bucket; whether
// that is intentional (trusted internal traffic) is unresolved upstream,
// so the behavior is kept rather than fixed.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return "unknown"
}
