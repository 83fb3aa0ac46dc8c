package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRateLimiterWindow(t *testing.T) {
	limiter := NewLoginRateLimiter(3, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.allow("10.0.0.1", now.Add(time.Duration(i)*time.Second))
		assert.True(t, allowed, "hit %d", i)
	}

	allowed, retryAfter := limiter.allow("10.0.0.1", now.Add(3*time.Second))
	assert.False(t, allowed)
	assert.Equal(t, 57*time.Second, retryAfter, "window opens when the oldest hit ages out")

	// Other IPs are unaffected.
	allowed, _ = limiter.allow("10.0.0.2", now.Add(3*time.Second))
	assert.True(t, allowed)

	// Once the oldest hit leaves the window the IP may try again.
	allowed, _ = limiter.allow("10.0.0.1", now.Add(61*time.Second))
	assert.True(t, allowed)
}

func TestLoginRateLimiterMinimumRetryAfter(t *testing.T) {
	limiter := NewLoginRateLimiter(1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	allowed, _ := limiter.allow("10.0.0.1", now)
	require.True(t, allowed)

	allowed, retryAfter := limiter.allow("10.0.0.1", now.Add(59*time.Second+800*time.Millisecond))
	assert.False(t, allowed)
	assert.Equal(t, time.Second, retryAfter)
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := NewLoginRateLimiter(1, time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := limiter.Middleware(next)

	request := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.9")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, request().Code)

	second := request()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many login attempts"}`, second.Body.String())
}
