package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daap14/adminportal/internal/api/middleware"
)

func TestRateLimiter_PerIP(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 2, false)
	handler := limiter.Middleware(okHandler())

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/unified-login", nil)
		req.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"), "other clients keep their own bucket")
}

func TestRateLimiter_IgnoresForwardedForByDefault(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, false)
	handler := limiter.Middleware(okHandler())

	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/unified-login", nil)
		req.RemoteAddr = "198.51.100.7:5555"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.2"), "rotating the header does not open a new bucket")
}

func TestRateLimiter_TrustedForwardedFor(t *testing.T) {
	limiter := middleware.NewRateLimiter(1, 1, true)
	handler := limiter.Middleware(okHandler())

	send := func(xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("1.1.1.1, 203.0.113.9").Code)

	w := send("2.2.2.2, 203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "only the proxy-appended entry counts")
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("203.0.113.10").Code)
}

func TestRateLimiter_ConcurrentUse(t *testing.T) {
	limiter := middleware.NewRateLimiter(1000, 1000, false)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Allow("10.0.0.3")
		}()
	}
	wg.Wait()
}
