package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fieldbook/backend/internal/server/httpx"
)

// idleBucketTTL is how long an unused per-IP bucket is kept.
const idleBucketTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond rate.Limit
	burst     int
	now       func() time.Time
}

// NewRateLimiter returns a limiter allowing perSecond requests per IP with the given burst.
// A non-positive perSecond disables limiting.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		now:       time.Now,
	}
}

// Allow reports whether ip may make a request now.
func (l *RateLimiter) Allow(ip string) bool {
	if l.perSecond <= 0 {
		return true
	}
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	l.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than idleBucketTTL and returns how many were dropped.
func (l *RateLimiter) Sweep() int {
	cutoff := l.now().Add(-idleBucketTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, ip)
			n++
		}
	}
	return n
}

// Limit rejects requests over the caller's budget with 429. ClientIP must run first.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIPFromContext(r.Context())) {
			w.Header().Set("Retry-After", "1")
			httpx.WriteJSON(w, http.StatusTooManyRequests, httpx.ErrorResponse{
				ErrorCode: "RATE_LIMITED",
				Message:   "rate limit exceeded",
				Path:      r.URL.Path,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
