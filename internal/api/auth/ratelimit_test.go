package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerCaller(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	alice, bob := uuid.New(), uuid.New()
	assert.True(t, l.Allow(alice))
	assert.True(t, l.Allow(alice))
	assert.False(t, l.Allow(alice), "burst exhausted")
	assert.True(t, l.Allow(bob), "buckets are per caller")

	now = now.Add(time.Second)
	assert.True(t, l.Allow(alice), "one token refilled")
	assert.False(t, l.Allow(alice))
}

func TestRateLimiter_EvictsIdleCallers(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow(uuid.New())
	now = now.Add(11 * time.Minute)
	l.Allow(uuid.New())
	assert.Len(t, l.limiters, 1)
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, 1)
	id := uuid.New()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(id))
	}
	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow(id))
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(1, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	id := Identity{UserID: uuid.New()}

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/balances", nil)
		req = req.WithContext(WithIdentity(req.Context(), id))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call().Code)
	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}
