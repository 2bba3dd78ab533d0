package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/service/account"
)

type Handler struct {
	svc           *account.Service
	tokenTTL      time.Duration
	secureCookies bool
}

func NewHandler(svc *account.Service, tokenTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{svc: svc, tokenTTL: tokenTTL, secureCookies: secureCookies}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
		auth.POST("/external", h.ExternalSignIn)
		auth.POST("/logout", h.Logout)
	}
}

func (h *Handler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.setCookie(c, resp.AccessToken)
	handler.RespondSuccess(c, http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.setCookie(c, resp.AccessToken)
	handler.RespondSuccess(c, http.StatusOK, resp)
}

func (h *Handler) ExternalSignIn(c *gin.Context) {
	var req model.ExternalSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	resp, err := h.svc.ExternalSignIn(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.setCookie(c, resp.AccessToken)
	handler.RespondSuccess(c, http.StatusOK, resp)
}

// Logout only clears the cookie; access tokens expire on their own.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(handler.TokenCookie, "", -1, "/", "", h.secureCookies, true)
	handler.RespondSuccess(c, http.StatusOK, "logged out successfully")
}

func (h *Handler) setCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(handler.TokenCookie, token, int(h.tokenTTL.Seconds()), "/", "", h.secureCookies, true)
}
