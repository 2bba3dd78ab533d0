package uploads

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/storage"
)

type Handler struct {
	store  storage.Uploader
	logger *logger.Logger
}

func NewHandler(store storage.Uploader, log *logger.Logger) *Handler {
	return &Handler{store: store, logger: log}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/uploads/certificate", h.UploadCertificate)
}

// UploadCertificate hosts a medical certificate image for the caller.
func (h *Handler) UploadCertificate(c *gin.Context) {
	p, ok := handler.MustPrincipal(c)
	if !ok {
		return
	}

	var req model.CertificateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.RespondBindError(c, err)
		return
	}

	url, err := h.store.Upload(c.Request.Context(), req.Image)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	h.logger.WithContext(c.Request.Context()).Info("certificate uploaded", "account_id", p.AccountID.String())
	handler.RespondSuccess(c, http.StatusOK, model.UploadResponse{URL: url})
}
