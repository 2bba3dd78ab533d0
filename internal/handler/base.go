package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
)

// Context keys shared by middleware and handlers.
const (
	ContextRequestID = "request_id"
	ContextPrincipal = "principal"

	// TokenCookie carries the access token for browser clients.
	TokenCookie = "token"
)

// SetPrincipal stores the caller on the gin context and on the request
// context, where service loggers pick it up.
func SetPrincipal(c *gin.Context, p model.Principal) {
	c.Set(ContextPrincipal, p)
	if c.Request != nil {
		c.Request = c.Request.WithContext(logger.WithAccount(c.Request.Context(), p.AccountID.String(), string(p.Role)))
	}
}

// Principal returns the caller set by the auth middleware.
func Principal(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}

// MustPrincipal writes 401 and returns false when no caller is attached.
func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	p, ok := Principal(c)
	if !ok {
		RespondError(c, apperrors.Unauthorized(nil))
		return model.Principal{}, false
	}
	return p, true
}

// ParseID reads a uuid path parameter, writing 400 on failure.
func ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		RespondError(c, apperrors.BadRequest("invalid "+param, err))
		return uuid.Nil, false
	}
	return id, true
}
