package bloodbank

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/service/account"
	"github.com/lifeline-health/donor-api/internal/service/appointment"
	"github.com/lifeline-health/donor-api/internal/service/request"
	"github.com/lifeline-health/donor-api/internal/service/stock"
)

// Handler serves the blood bank dashboard. Every route acts as the caller's
// own bank.
type Handler struct {
	accounts     *account.Service
	stock        *stock.Service
	appointments *appointment.Service
	requests     *request.Service
}

func NewHandler(accounts *account.Service, stock *stock.Service, appointments *appointment.Service, requests *request.Service) *Handler {
	return &Handler{
		accounts:     accounts,
		stock:        stock,
		appointments: appointments,
		requests:     requests,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bank := r.Group("/bloodbank", middleware.RequireRole(model.RoleBloodBank))
	{
		bank.GET("/profile", h.Profile)
		bank.PUT("/stock", h.UpdateStock)
		bank.GET("/appointments", h.ListAppointments)
		bank.PUT("/appointments/:id/complete", h.CompleteAppointment)
		bank.PUT("/appointments/:id/reject", h.RejectAppointment)
		bank.GET("/requests", h.ListRequests)
		bank.PUT("/requests/:id/fulfill", h.FulfillRequest)
		bank.PUT("/requests/:id/reject", h.RejectRequest)
	}
}

func (h *Handler) Profile(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	acct, err := h.accounts.Profile(ctx, p.AccountID, model.RoleBloodBank)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	levels, err := h.stock.Get(ctx, p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, model.BloodBankProfile{Account: acct, BloodStock: levels})
}

func (h *Handler) UpdateStock(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	var req model.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	levels, err := h.stock.Replace(c.Request.Context(), p.AccountID, req.BloodStock)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, levels)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	appointments, err := h.appointments.ListForBloodBank(c.Request.Context(), p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, appointments)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.CompleteAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	apt, err := h.appointments.Complete(c.Request.Context(), id, p.AccountID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) RejectAppointment(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	apt, err := h.appointments.Reject(c.Request.Context(), id, p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) ListRequests(c *gin.Context) {
	requests, err := h.requests.ListOpenBlood(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, requests)
}

func (h *Handler) FulfillRequest(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.FulfillRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	fulfilled, err := h.requests.Fulfill(c.Request.Context(), id, p.AccountID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, fulfilled)
}

func (h *Handler) RejectRequest(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	rejected, err := h.requests.Reject(c.Request.Context(), id, p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, rejected)
}
