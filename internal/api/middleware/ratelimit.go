package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/daap14/adminportal/internal/api/response"
)

const (
	bucketTTL     = 5 * time.Minute
	pruneInterval = time.Minute
)

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
	lastPrune time.Time
	now       func() time.Time
	// trustForwardedFor keys buckets on X-Forwarded-For instead of the peer address.
	trustForwardedFor bool
}

// NewRateLimiter creates a limiter allowing perSecond requests per IP with
// burst. X-Forwarded-For is only read when trustForwardedFor is set, i.e. when
// the server runs behind a proxy that appends the real peer address.
func NewRateLimiter(perSecond, burst int, trustForwardedFor bool) *RateLimiter {
	return &RateLimiter{
		buckets:           make(map[string]*bucket),
		perSecond:         rate.Limit(perSecond),
		burst:             burst,
		now:               time.Now,
		trustForwardedFor: trustForwardedFor,
	}
}

// Allow consumes one token for ip.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > pruneInterval {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > bucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastPrune = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := l.clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(ip) {
			w.Header().Set("Retry-After", "1")
			response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please slow down", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the peer address, or the X-Forwarded-For entry added by
// the nearest proxy when that header is trusted. Earlier entries are client
// supplied and never used.
func (l *RateLimiter) clientIP(r *http.Request) string {
	if l.trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
				return last
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
