package web

import (
	"net/http"
	stdsync "sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu       stdsync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newIPLimiter(requestsPerMinute int) *ipLimiter {
	burst := requestsPerMinute / 2
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[ip]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = limiter
	return limiter
}

// rateLimitMiddleware returns middleware that rate-limits by client IP.
// Runs after RealIP, so RemoteAddr reflects the originating client.
func rateLimitMiddleware(requestsPerMinute int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(requestsPerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.get(r.RemoteAddr).Allow() {
				w.Header().Set("Retry-After", time.Minute.String())
				writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
