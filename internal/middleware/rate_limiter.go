package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/lifeline-health/donor-api/internal/handler"
)

type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
	// IdleTTL drops a client's limiter after this long without requests.
	IdleTTL time.Duration
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	config   RateLimiterConfig
	mu       sync.Mutex
	limiters *cache.Cache
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		config:   config,
		limiters: cache.New(config.IdleTTL, config.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters.Get(key); ok {
		rl.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.config.Rate, rl.config.Burst)
	rl.limiters.SetDefault(key, l)
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handler.NewErrorResponse("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
