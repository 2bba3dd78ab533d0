package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/pkg/auth"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
)

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

// Authenticate verifies the access token, taken from the Authorization
// header or the token cookie, and attaches the caller to the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			c.Abort()
			return
		}

		claims, err := m.jwtSvc.ValidateToken(token)
		if err != nil {
			handler.RespondError(c, apperrors.Unauthorized(err))
			c.Abort()
			return
		}

		handler.SetPrincipal(c, claims.Principal())
		c.Next()
	}
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := handler.Principal(c)
		if !ok {
			handler.RespondError(c, apperrors.Unauthorized(nil))
			c.Abort()
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		handler.RespondError(c, apperrors.Forbidden("permission denied"))
		c.Abort()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(handler.TokenCookie); err == nil {
		return cookie
	}
	return ""
}
