package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/handler"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthEngine(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	jwtSvc := auth.NewJWTService("secret", "donor-api", time.Hour)
	token, err := jwtSvc.GenerateAccessToken(&model.Account{
		Base:  model.Base{ID: uuid.New()},
		Email: "bank@example.com",
		Role:  model.RoleBloodBank,
	})
	require.NoError(t, err)

	r := gin.New()
	r.Use(NewAuthMiddleware(jwtSvc).Authenticate())
	r.GET("/any", func(c *gin.Context) {
		p, _ := handler.Principal(c)
		c.String(http.StatusOK, string(p.Role))
	})
	r.GET("/hospital", RequireRole(model.RoleHospital), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, token
}

func TestAuthenticate(t *testing.T) {
	r, token := newAuthEngine(t)

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: handler.TokenCookie, Value: token}) }, http.StatusOK},
		{"malformed header", func(req *http.Request) { req.Header.Set("Authorization", token) }, http.StatusUnauthorized},
		{"bad token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/any", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "BloodBank", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r, token := newAuthEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/hospital", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestRateLimitPerClient(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1}).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestRequestIDEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(handler.ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(SizeLimit(SizeLimitConfig{MaxBodySize: 8}))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(DefaultCORSConfig([]string{"http://localhost:5173"})))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(DefaultSecurityConfig(true)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
}
