package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	public    []Handler
	protected []Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RequestTimeout   time.Duration
	CORSConfig       middleware.CORSConfig
	Security         middleware.SecurityConfig
	SizeLimit        middleware.SizeLimitConfig
	Metrics          *metrics.Metrics
}

// NewRouter builds the engine and its global middleware chain. public
// handlers are mounted without authentication; protected handlers get the
// caller attached and gate roles themselves.
func NewRouter(auth *middleware.AuthMiddleware, public, protected []Handler, config RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	r := &Router{
		engine:    engine,
		auth:      auth,
		public:    public,
		protected: protected,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(config.Metrics),
		middleware.Timeout(middleware.TimeoutConfig{
			Duration:     config.RequestTimeout,
			SkipPrefixes: []string{"/api/v1/sos/stream"},
		}),
		middleware.SecurityHeaders(config.Security),
		middleware.SizeLimit(config.SizeLimit),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	for _, h := range r.public {
		h.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.protected {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
