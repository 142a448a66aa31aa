package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRateLimiterRefill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiterAt(3, 1, time.Second, clock.now)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "request %d", i)
	}
	assert.False(t, rl.Allow())

	clock.advance(1500 * time.Millisecond)
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	// Half a period is left over from the previous refill.
	clock.advance(500 * time.Millisecond)
	assert.True(t, rl.Allow())

	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow())
	}
	assert.False(t, rl.Allow(), "bucket is capped at its burst")
}

func TestClientRateLimiter(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewClientRateLimiter(RateLimitConfig{Burst: 1, Refill: 1, Period: time.Second})
	c.now = clock.now

	assert.True(t, c.Allow("10.0.0.1"))
	assert.False(t, c.Allow("10.0.0.1"))
	assert.True(t, c.Allow("10.0.0.2"), "clients have separate buckets")

	c.Prune()
	assert.Len(t, c.limiters, 2)

	clock.advance(time.Minute)
	c.Prune()
	assert.Empty(t, c.limiters)
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c := NewClientRateLimiter(RateLimitConfig{Burst: 2, Refill: 1, Period: time.Hour})
	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodGet, "/ping", nil)
		require.NoError(t, err)
		req.RemoteAddr = "192.0.2.7:5000"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
