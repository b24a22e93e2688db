package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/zhouzirui/z-chat/pkg/utils"
)

// RateLimiter caps requests per client IP within a fixed window.
type RateLimiter struct {
	mu     sync.Mutex
	hits   *cache.Cache
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per window. Expired counters are swept by the cache janitor.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   cache.New(window, 2*window),
		limit:  limit,
		window: window,
	}
}

// Allow records one hit for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// IncrementInt keeps the window's original expiration.
	n, err := rl.hits.IncrementInt(key, 1)
	if err != nil {
		rl.hits.Set(key, 1, rl.window)
		return true
	}
	return n <= rl.limit
}

// Middleware rejects callers over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			utils.RespondError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
