package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/lifeline-health/donor-api/internal/handler"
)

// Logger returns a middleware that logs HTTP requests. Bodies are never
// logged since they carry passwords and certificate images.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		logger := log.With().
			Str("request_id", c.GetString(handler.ContextRequestID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent()).
			Logger()

		if p, ok := handler.Principal(c); ok {
			logger = logger.With().Str("account_id", p.AccountID.String()).Str("role", string(p.Role)).Logger()
		}

		switch {
		case statusCode >= 500:
			logger.Error().Msg("Server error")
		case statusCode >= 400:
			logger.Warn().Msg("Client error")
		default:
			logger.Info().Msg("Request processed")
		}
	}
}
