package httputil

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting for the decision API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained per-client rate.
	RequestsPerSecond float64
	// Burst allows temporary bursts above the rate.
	Burst int
	// IdleTTL is how long an idle client's limiter is kept before the
	// sweep removes it. Defaults to 10 minutes.
	IdleTTL time.Duration
}

// RateLimiter tracks a token bucket per client key. Entries are swept
// lazily on access so the map does not grow without bound.
type RateLimiter struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a per-client rate limiter.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
	return &RateLimiter{
		cfg:       cfg,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

// Allow reports whether one request from the given client may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.cfg.IdleTTL {
		for k, c := range rl.clients {
			if now.Sub(c.lastSeen) > rl.cfg.IdleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst),
		}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.Allow()
}

// RateLimitMiddleware limits requests per client IP. Requests over the
// limit get 429 with a Retry-After hint.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !rl.Allow(key) {
				w.Header().Set("Retry-After", "1")
				WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the caller, preferring the proxy-supplied address.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
