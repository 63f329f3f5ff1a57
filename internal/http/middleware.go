package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware adds security headers to all responses.
// The API only serves JSON, so nothing is allowed to load or frame it.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// RateLimiter limits how often a client may trigger an action within a
// sliding window. Used to throttle manual sync requests.
type RateLimiter struct {
	mu          sync.Mutex
	hits        map[string]*hitRecord
	limit       int
	window      time.Duration
	stopCleanup chan struct{}
	now         func() time.Time
}

type hitRecord struct {
	count       int
	windowStart time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	Limit  int           // Requests allowed per window (default: 6)
	Window time.Duration // Window length (default: 1m)
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Limit <= 0 {
		cfg.Limit = 6
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	rl := &RateLimiter{
		hits:        make(map[string]*hitRecord),
		limit:       cfg.Limit,
		window:      cfg.Window,
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

// Allow records a hit for key and reports whether it is within the limit.
// When it is not, retryAfter is the time until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, ok := rl.hits[key]
	if !ok || now.Sub(record.windowStart) >= rl.window {
		rl.hits[key] = &hitRecord{count: 1, windowStart: now}
		return true, 0
	}

	if record.count >= rl.limit {
		return false, record.windowStart.Add(rl.window).Sub(now)
	}
	record.count++
	return true, 0
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, record := range rl.hits {
		if now.Sub(record.windowStart) >= rl.window {
			delete(rl.hits, key)
		}
	}
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.Allow(c.ClientIP())
		if !allowed {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many sync requests",
				Code:  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
