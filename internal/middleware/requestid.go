package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/pkg/logger"
)

const HeaderXRequestID = "X-Request-ID"

// RequestID adds a unique request ID to each request and to its context,
// where logger.WithContext picks it up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if rid == "" {
			rid = uuid.New().String()
		}

		c.Set(handler.ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), rid))
		c.Next()
	}
}
