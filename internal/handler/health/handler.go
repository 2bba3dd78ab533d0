package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is satisfied by the repository store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store    Pinger
	registry *prometheus.Registry
}

// NewHandler serves metrics from registry; a nil registry disables /metrics.
func NewHandler(store Pinger, registry *prometheus.Registry) *Handler {
	return &Handler{
		store:    store,
		registry: registry,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
		if h.registry != nil {
			health.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
		}
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "Database connection failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
