// rate_limiter.go - Per-client rate limiting for the pool daemon
package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"shielder/internal/metrics"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
	now          func() time.Time
}

func NewRateLimiter(maxTokens, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return newRateLimiterAt(maxTokens, refillRate, refillPeriod, time.Now)
}

func newRateLimiterAt(maxTokens, refillRate int, refillPeriod time.Duration, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   now(),
		refillPeriod: refillPeriod,
		now:          now,
	}
}

// Allow checks if a request is allowed and consumes a token if so
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if periods := int(now.Sub(rl.lastRefill) / rl.refillPeriod); periods > 0 {
		rl.tokens += periods * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillPeriod)
	}
	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// ClientRateLimiter keeps one bucket per client key.
type ClientRateLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*RateLimiter
	maxTokens    int
	refillRate   int
	refillPeriod time.Duration
	now          func() time.Time
}

func NewClientRateLimiter(cfg RateLimitConfig) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters:     make(map[string]*RateLimiter),
		maxTokens:    cfg.Burst,
		refillRate:   cfg.Refill,
		refillPeriod: cfg.Period,
		now:          time.Now,
	}
}

// Allow checks if a request from client is allowed
func (c *ClientRateLimiter) Allow(client string) bool {
	c.mu.Lock()
	limiter, ok := c.limiters[client]
	if !ok {
		limiter = newRateLimiterAt(c.maxTokens, c.refillRate, c.refillPeriod, c.now)
		c.limiters[client] = limiter
	}
	c.mu.Unlock()
	return limiter.Allow()
}

// Prune drops buckets that have been idle long enough to be full again.
func (c *ClientRateLimiter) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	idle := c.refillPeriod * time.Duration(c.maxTokens/c.refillRate+1)
	now := c.now()
	for key, l := range c.limiters {
		l.mu.Lock()
		stale := now.Sub(l.lastRefill) > idle
		l.mu.Unlock()
		if stale {
			delete(c.limiters, key)
		}
	}
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (c *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !c.Allow(ctx.ClientIP()) {
			metrics.RateLimited.Inc()
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
				"code":    "RATE_LIMITED",
			})
			return
		}
		ctx.Next()
	}
}
