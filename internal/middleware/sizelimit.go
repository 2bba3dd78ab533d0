package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize int64 // in bytes
	// Overrides raise the limit for specific routes, e.g. certificate uploads.
	Overrides map[string]int64
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize: 1 << 20, // 1MB
		Overrides: map[string]int64{
			"/api/v1/eligibility/check":   10 << 20, // 10MB
			"/api/v1/uploads/certificate": 10 << 20,
		},
	}
}

// SizeLimit rejects oversized bodies up front and caps the reader for
// bodies that lie about their length.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := config.MaxBodySize
		if override, ok := config.Overrides[c.Request.URL.Path]; ok {
			limit = override
		}
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				handler.NewErrorResponse(fmt.Sprintf("body size exceeds %d bytes", limit)))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
