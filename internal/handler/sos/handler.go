package sos

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/service/sos"
)

type Handler struct {
	svc *sos.Service
}

func NewHandler(svc *sos.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/sos")
	{
		alerts.POST("/alerts", h.CreateAlert)

		hospital := alerts.Group("", middleware.RequireRole(model.RoleHospital))
		hospital.GET("/alerts", h.ListAlerts)
		hospital.PUT("/alerts/:id", h.UpdateAlert)
		hospital.GET("/stream", h.Stream)
	}
}

func (h *Handler) CreateAlert(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	var req model.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	broadcast, err := h.svc.CreateAlert(c.Request.Context(), p.AccountID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, broadcast)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	alerts, err := h.svc.ListAlerts(c.Request.Context(), p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, alerts)
}

func (h *Handler) UpdateAlert(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	alert, err := h.svc.UpdateAlert(c.Request.Context(), p.AccountID, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, alert)
}

// Stream pushes the caller's new alerts as server-sent events until the
// client disconnects.
func (h *Handler) Stream(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	alerts, err := h.svc.Stream(ctx, p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case alert, ok := <-alerts:
			if !ok {
				return false
			}
			c.SSEvent("sos", alert)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
