// internal/api/auth/ratelimit.go
package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per authenticated caller.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[uuid.UUID]*callerLimiter
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps requests per second per caller with the given
// burst. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[uuid.UUID]*callerLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow reports whether userID may make another request now.
func (l *RateLimiter) Allow(userID uuid.UUID) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.limiters[userID]
	if !ok {
		c = &callerLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = c
	}
	c.lastSeen = now
	allowed := c.limiter.AllowN(now, 1)
	l.evictIdle(now)
	return allowed
}

// evictIdle drops buckets not used for l.idle, at most once per idle period.
// Called with mu held.
func (l *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for id, c := range l.limiters {
		if now.Sub(c.lastSeen) > l.idle {
			delete(l.limiters, id)
		}
	}
}

// Middleware answers 429 once the caller's bucket is empty. It must run after
// the auth Middleware.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if ok && !l.Allow(id.UserID) {
			w.Header().Set("Retry-After", "1")
			deny(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
