package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

const (
	DefaultEventRate  = rate.Limit(20)
	DefaultEventBurst = 50

	limiterIdleTTL  = 10 * time.Minute
	limiterCapacity = 10_000
)

// clientLimiter hands out one token bucket per client address. Idle
// buckets expire and the least recently used are evicted at capacity.
type clientLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limit: limit,
		burst: burst,
		limiters: ttlcache.New(
			ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
			ttlcache.WithCapacity[string, *rate.Limiter](limiterCapacity),
		),
	}
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if item := l.limiters.Get(key); item != nil {
		return item.Value()
	}
	l.limiters.DeleteExpired()
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Set(key, limiter, ttlcache.DefaultTTL)
	return limiter
}

// limiterKey is the caller's network address. Origin and Referer are
// client supplied and never select a bucket.
func limiterKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitMiddleware rejects callers that exceed their bucket with 429.
func (s *Server) RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.get(limiterKey(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, "rate_limited", "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
