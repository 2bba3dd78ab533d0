package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig lists the browser origins allowed to call the API. Credentials
// are always allowed since the frontend authenticates with the token cookie.
type CORSConfig struct {
	Origins []string
	Methods []string
	Headers []string
	Expose  []string
	MaxAge  int
}

// DefaultCORSConfig allows origins; an empty list allows any origin.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		Origins: origins,
		Methods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		Headers: []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderXRequestID},
		Expose:  []string{"Content-Disposition", HeaderXRequestID},
		MaxAge:  86400,
	}
}

func CORS(config CORSConfig) gin.HandlerFunc {
	anyOrigin := len(config.Origins) == 0
	allowed := make(map[string]struct{}, len(config.Origins))
	for _, o := range config.Origins {
		if o == "*" {
			anyOrigin = true
		}
		allowed[o] = struct{}{}
	}

	fixed := [][2]string{
		{"Access-Control-Allow-Methods", strings.Join(config.Methods, ", ")},
		{"Access-Control-Allow-Headers", strings.Join(config.Headers, ", ")},
		{"Access-Control-Expose-Headers", strings.Join(config.Expose, ", ")},
		{"Access-Control-Max-Age", strconv.Itoa(config.MaxAge)},
		{"Access-Control-Allow-Credentials", "true"},
	}

	return func(c *gin.Context) {
		c.Header("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowed[origin]; ok || anyOrigin {
				// Echo the origin; "*" is not accepted with credentials.
				c.Header("Access-Control-Allow-Origin", origin)
				for _, h := range fixed {
					c.Header(h[0], h[1])
				}
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
