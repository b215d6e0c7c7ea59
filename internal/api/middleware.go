package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rahulmindslate/nextclass-notify/internal/api/respond"
	"github.com/rahulmindslate/nextclass-notify/internal/config"
)

// --------------------------------------------------------------------------
// Request timing middleware
// --------------------------------------------------------------------------

// TimingMiddleware adds X-Process-Time header to all responses.
func TimingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		w.Header().Set("X-Process-Time", fmt.Sprintf("%.2fms", float64(time.Since(start).Microseconds())/1000.0))
	})
}

// --------------------------------------------------------------------------
// Rate limiting middleware (per-IP token bucket)
// --------------------------------------------------------------------------

// ipRateLimiter hands out one token bucket per client IP, sized from the
// RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW budget. The mobile app polls the
// status endpoint once a minute, so the per-IP rate is deliberately
// generous; the limiter exists to absorb misbehaving clients, not to shape
// normal traffic.
type ipRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	limit      rate.Limit
	burst      int
	retryAfter string // whole seconds of the configured window
}

func newIPRateLimiter(cfg *config.Config) *ipRateLimiter {
	// A burst of half the window budget keeps short spikes cheap. Clamp to
	// one token so a budget of a single request still admits that request.
	burst := cfg.RateLimitRequests / 2
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		buckets:    make(map[string]*rate.Limiter),
		limit:      rate.Limit(float64(cfg.RateLimitRequests) / cfg.RateLimitWindow.Seconds()),
		burst:      burst,
		retryAfter: strconv.Itoa(int(cfg.RateLimitWindow.Seconds())),
	}
}

func (l *ipRateLimiter) bucketFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[ip]; ok {
		return b
	}
	b := rate.NewLimiter(l.limit, l.burst)
	l.buckets[ip] = b
	return b
}

// RateLimitMiddleware returns middleware that rate-limits by client IP.
// Rejections carry a Retry-After of the configured window.
func RateLimitMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	limiter := newIPRateLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)
			if ip == "" {
				ip = r.RemoteAddr
			}

			if !limiter.bucketFor(ip).Allow() {
				w.Header().Set("Retry-After", limiter.retryAfter)
				respond.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
