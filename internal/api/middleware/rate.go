package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig sizes the per-client token buckets.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTTL forgets a client's bucket after this long without requests.
	// Zero keeps buckets forever.
	IdleTTL time.Duration
	// Exempt routes (gin full paths) skip limiting, e.g. health checks and
	// the metrics scrape.
	Exempt []string
}

// DefaultRateLimitConfig returns the console's limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		IdleTTL:           10 * time.Minute,
		Exempt:            []string{"/health", "/metrics"},
	}
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// buckets holds one limiter per client IP.
type buckets struct {
	cfg   RateLimitConfig
	mu    sync.Mutex
	byIP  map[string]*bucket
	swept time.Time
}

// wait reserves a token for ip and returns how long the caller would have to
// wait for it; zero means the request may proceed.
func (b *buckets) wait(ip string, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.IdleTTL > 0 && now.Sub(b.swept) > b.cfg.IdleTTL {
		for key, bk := range b.byIP {
			if now.Sub(bk.lastSeen) > b.cfg.IdleTTL {
				delete(b.byIP, key)
			}
		}
		b.swept = now
	}

	bk, ok := b.byIP[ip]
	if !ok {
		bk = &bucket{tokens: rate.NewLimiter(rate.Limit(b.cfg.RequestsPerSecond), b.cfg.Burst)}
		b.byIP[ip] = bk
	}
	bk.lastSeen = now

	r := bk.tokens.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

// RateLimit limits each client IP to its own token bucket. Rejected requests
// get 429 with Retry-After set to the whole seconds until a token frees up.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limits := &buckets{cfg: cfg, byIP: make(map[string]*bucket), swept: time.Now()}
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, route := range cfg.Exempt {
		exempt[route] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, skip := exempt[c.FullPath()]; skip {
			c.Next()
			return
		}

		if delay := limits.wait(c.ClientIP(), time.Now()); delay > 0 {
			seconds := int(math.Ceil(delay.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
