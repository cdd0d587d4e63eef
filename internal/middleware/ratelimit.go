package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Bucket names route groups to their limits.
const (
	BucketAuth    = "auth"
	BucketGeneral = "general"
	BucketAI      = "ai"
)

// RateLimit allows Requests per Window for one client IP. The limiter
// refills continuously, with the full window volume available as burst.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits matches the public API posture: tight on credential
// endpoints, tighter still on the LLM-backed extraction endpoint.
func DefaultLimits() map[string]RateLimit {
	return map[string]RateLimit{
		BucketAuth:    {Requests: 200, Window: 15 * time.Minute},
		BucketGeneral: {Requests: 1000, Window: 15 * time.Minute},
		BucketAI:      {Requests: 100, Window: 15 * time.Minute},
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per (bucket, client IP). A janitor
// goroutine drops visitors idle for a full window so the map stays
// bounded.
type RateLimiter struct {
	limits   map[string]RateLimit
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewRateLimiter(limits map[string]RateLimit) *RateLimiter {
	rl := &RateLimiter{
		limits:   limits,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	go rl.janitor()
	return rl
}

// Limit returns the middleware for one bucket. Unknown buckets pass
// everything through.
func (rl *RateLimiter) Limit(bucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, ok := rl.limits[bucket]
		if !ok {
			c.Next()
			return
		}
		if !rl.allow(bucket+":"+c.ClientIP(), cfg) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(key string, cfg RateLimit) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		perSecond := float64(cfg.Requests) / cfg.Window.Seconds()
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(perSecond), cfg.Requests)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()
	rl.mu.Unlock()
	return v.limiter.Allow()
}

func (rl *RateLimiter) janitor() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := rl.now().Add(-15 * time.Minute)
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}
