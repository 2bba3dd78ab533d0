package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutConfig represents timeout middleware configuration
type TimeoutConfig struct {
	Duration time.Duration
	// SkipPrefixes are long-lived routes such as event streams.
	SkipPrefixes []string
}

// Timeout bounds the request context; services and stores observe the
// deadline through ctx.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Duration <= 0 {
			c.Next()
			return
		}
		for _, p := range config.SkipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Duration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
