// In-memory token-bucket rate limiting. Each client gets a bucket that
// refills continuously at the configured per-minute rate; a request spends
// one token or gets a 429. Buckets untouched for staleAfter are evicted by a
// background loop.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// staleAfter is how long a bucket may sit idle before eviction reclaims it.
const staleAfter = 10 * time.Minute

// RateLimitConfig describes one limiter tier.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained refill rate.
	RequestsPerMinute int
	// BurstSize caps how many tokens a bucket can hold.
	BurstSize int
	// CleanupInterval is how often stale buckets are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig covers general API traffic.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200,
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig is the stricter tier for login and token endpoints.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// UploadRateLimitConfig is the tier for package publication.
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

type bucket struct {
	tokens  float64
	touched time.Time
}

// RateLimiter holds the per-client buckets for one tier.
type RateLimiter struct {
	config  RateLimitConfig
	rate    float64 // tokens per second
	buckets map[string]*bucket
	mu      sync.RWMutex
	stopCh  chan struct{}
}

// NewRateLimiter builds a limiter and starts its eviction loop. Call Stop
// when the limiter is no longer needed.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		rate:    float64(config.RequestsPerMinute) / 60.0,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}

	go rl.evictLoop()

	return rl
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictStale(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.touched) > staleAfter {
			delete(rl.buckets, key)
		}
	}
}

// Stop terminates the eviction loop.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// refilled returns the bucket's token count after catching up the refill
// since it was last touched, capped at the burst size.
func (rl *RateLimiter) refilled(b *bucket, now time.Time) float64 {
	return min(float64(rl.config.BurstSize), b.tokens+now.Sub(b.touched).Seconds()*rl.rate)
}

// Allow spends one token from the key's bucket, reporting whether the
// request may proceed. Unknown keys start with a full burst.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[key]
	if !ok {
		rl.buckets[key] = &bucket{
			tokens:  float64(rl.config.BurstSize) - 1,
			touched: now,
		}
		return true
	}

	b.tokens = rl.refilled(b, now)
	b.touched = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}

	return false
}

// RemainingTokens reports how many requests the key has left right now.
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	b, ok := rl.buckets[key]
	if !ok {
		return rl.config.BurstSize
	}

	return int(rl.refilled(b, time.Now()))
}

// RateLimitMiddleware enforces the limiter against each request, keyed by
// the authenticated user when one is present and by client IP otherwise.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientKey(c)

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.RemainingTokens(key)))

		c.Next()
	}
}

// clientKey picks the bucket for a request. Authenticated traffic is limited
// per user so NAT'd communities sharing an address don't starve each other;
// anonymous traffic falls back to the client IP.
func clientKey(c *gin.Context) string {
	if user, ok := CurrentUser(c); ok && user.ID != "" {
		return "user:" + user.ID
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
