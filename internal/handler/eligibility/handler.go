package eligibility

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/service/eligibility"
)

type Handler struct {
	svc *eligibility.Service
}

func NewHandler(svc *eligibility.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/eligibility/check", h.Check)
}

func (h *Handler) Check(c *gin.Context) {
	var req model.EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	result, err := h.svc.Check(c.Request.Context(), req.Image)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, result)
}
