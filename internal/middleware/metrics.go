package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/pkg/metrics"
)

// Metrics records request count and latency per matched route.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
