package hospital

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/service/account"
	"github.com/lifeline-health/donor-api/internal/service/request"
)

type Handler struct {
	accounts *account.Service
	requests *request.Service
}

func NewHandler(accounts *account.Service, requests *request.Service) *Handler {
	return &Handler{accounts: accounts, requests: requests}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	hospital := r.Group("/hospital", middleware.RequireRole(model.RoleHospital))
	{
		hospital.GET("/profile", h.Profile)
		hospital.GET("/requests", h.ListRequests)
	}

	requests := r.Group("/requests", middleware.RequireRole(model.RoleHospital))
	{
		requests.POST("/blood", h.RequestBlood)
		requests.POST("/organ", h.RequestOrgan)
	}
}

func (h *Handler) Profile(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	acct, err := h.accounts.Profile(ctx, p.AccountID, model.RoleHospital)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	requests, err := h.requests.ListForHospital(ctx, p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, model.HospitalProfile{Account: acct, Requests: *requests})
}

func (h *Handler) ListRequests(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	requests, err := h.requests.ListForHospital(c.Request.Context(), p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, requests)
}

func (h *Handler) RequestBlood(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	var in model.BloodRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	result, err := h.requests.RequestBlood(c.Request.Context(), p.AccountID, in)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, result)
}

func (h *Handler) RequestOrgan(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	var in model.OrganRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	result, err := h.requests.RequestOrgan(c.Request.Context(), p.AccountID, in)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, result)
}
