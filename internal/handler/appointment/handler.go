package appointment

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/service/appointment"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", middleware.RequireRole(model.RoleNormalUser), h.Book)
		appointments.GET("/mine", middleware.RequireRole(model.RoleNormalUser), h.ListMine)
		appointments.GET("/:id", h.Get)
		appointments.GET("/:id/receipt", h.Receipt)
	}
}

func (h *Handler) Book(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	result, err := h.service.Book(c.Request.Context(), p.AccountID, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusCreated, result)
}

func (h *Handler) ListMine(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	appointments, err := h.service.ListForDonor(c.Request.Context(), p.AccountID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, appointments)
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id, p)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.RespondSuccess(c, http.StatusOK, apt)
}

func (h *Handler) Receipt(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	path, err := h.service.ReceiptPath(c.Request.Context(), id, p)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.FileAttachment(path, fmt.Sprintf("receipt-%s.pdf", id))
}
