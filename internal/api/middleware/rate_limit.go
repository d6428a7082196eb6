package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/athletics-sim/pkg/utils"
)

// ClientRateLimiter hands out one token bucket per client IP
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientRateLimiter allows perSecond requests per client with the given burst
func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

// Allow reports whether the client may proceed now
func (rl *ClientRateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanupLocked(now)

	cl, ok := rl.limiters[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[clientIP] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// cleanupLocked forgets clients idle for longer than rl.idle
func (rl *ClientRateLimiter) cleanupLocked(now time.Time) {
	for ip, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.limiters, ip)
		}
	}
}

// RateLimit rejects requests over the client's budget with 429
func RateLimit(rl *ClientRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			utils.SendRateLimited(c, "Too many simulation requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
