package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appointmentHandler "github.com/lifeline-health/donor-api/internal/handler/appointment"
	authHandler "github.com/lifeline-health/donor-api/internal/handler/auth"
	"github.com/lifeline-health/donor-api/internal/handler/bloodbank"
	"github.com/lifeline-health/donor-api/internal/handler/health"
	"github.com/lifeline-health/donor-api/internal/handler/hospital"
	sosHandler "github.com/lifeline-health/donor-api/internal/handler/sos"
	"github.com/lifeline-health/donor-api/internal/handler/uploads"
	"github.com/lifeline-health/donor-api/internal/handler/users"
	"github.com/lifeline-health/donor-api/internal/middleware"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository/memory"
	accountService "github.com/lifeline-health/donor-api/internal/service/account"
	appointmentService "github.com/lifeline-health/donor-api/internal/service/appointment"
	"github.com/lifeline-health/donor-api/internal/service/notification"
	requestService "github.com/lifeline-health/donor-api/internal/service/request"
	sosService "github.com/lifeline-health/donor-api/internal/service/sos"
	stockService "github.com/lifeline-health/donor-api/internal/service/stock"
	"github.com/lifeline-health/donor-api/pkg/auth"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging"
	"github.com/lifeline-health/donor-api/pkg/receipt"
	"github.com/lifeline-health/donor-api/pkg/security"
	"github.com/lifeline-health/donor-api/pkg/storage"
	"github.com/lifeline-health/donor-api/pkg/validator"
)

type stubMatcher struct{}

func (stubMatcher) MatchBlood(context.Context, string, model.Location) ([]model.Donor, error) {
	return []model.Donor{{Name: "Donor One", Phone: "9000000000"}}, nil
}

func (stubMatcher) MatchOrgan(context.Context, string, model.Location) ([]model.Donor, error) {
	return []model.Donor{}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t      *testing.T
	server http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	require.NoError(t, validator.RegisterGin())

	log := logger.NewNop()
	store := memory.NewStore()
	broker := messaging.NewLocalBroker()
	receipts, err := receipt.NewPDFRenderer(t.TempDir())
	require.NoError(t, err)
	jwtSvc := auth.NewJWTService("test-secret", "donor-api", time.Hour)
	uploader, err := storage.NewLocalStore(t.TempDir(), "/uploads/certificates")
	require.NoError(t, err)

	// External sign-in stays disabled without a provider.
	accounts := accountService.NewService(store, security.NewBcryptHasher(4), jwtSvc, nil, log)
	stock := stockService.NewService(store, log, nil)
	appointments := appointmentService.NewService(store, receipts, notification.NewService(nil, nil, log), broker, log, nil)
	requests := requestService.NewService(store, stubMatcher{}, broker, log, nil)
	alerts := sosService.NewService(store, broker, log, nil)

	r := NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		[]Handler{
			health.NewHandler(store, nil),
			authHandler.NewHandler(accounts, time.Hour, false),
		},
		[]Handler{
			users.NewHandler(accounts),
			appointmentHandler.NewHandler(appointments),
			bloodbank.NewHandler(accounts, stock, appointments, requests),
			hospital.NewHandler(accounts, requests),
			sosHandler.NewHandler(alerts),
			uploads.NewHandler(uploader, log),
		},
		RouterConfig{
			RequestTimeout: 5 * time.Second,
			CORSConfig:     middleware.DefaultCORSConfig(nil),
			Security:       middleware.DefaultSecurityConfig(false),
			SizeLimit:      middleware.DefaultSizeLimitConfig(),
		},
	)
	r.Setup()
	return &testAPI{t: t, server: r.Engine()}
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.server.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func (a *testAPI) signUp(role model.Role, email string) (string, model.Account) {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/auth/signup", "", map[string]interface{}{
		"name":     string(role) + " account",
		"email":    email,
		"password": "long-enough-password",
		"role":     role,
	})
	require.Equal(a.t, http.StatusCreated, code, env.Message)

	var resp struct {
		AccessToken string        `json:"access_token"`
		Account     model.Account `json:"account"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp.AccessToken, resp.Account
}

func TestDonationFlow(t *testing.T) {
	api := newTestAPI(t)
	bankToken, bank := api.signUp(model.RoleBloodBank, "bank@example.com")
	hospitalToken, _ := api.signUp(model.RoleHospital, "hospital@example.com")
	userToken, _ := api.signUp(model.RoleNormalUser, "donor@example.com")

	code, env := api.do(http.MethodPut, "/api/v1/bloodbank/stock", bankToken, map[string]interface{}{
		"blood_stock": map[string]int{"O+": 4},
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = api.do(http.MethodPost, "/api/v1/appointments", userToken, map[string]interface{}{
		"blood_bank_id": bank.ID,
		"type":          "blood",
		"date":          "2026-11-01T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var booking model.BookingResult
	require.NoError(t, json.Unmarshal(env.Data, &booking))
	assert.Equal(t, model.AppointmentStatusScheduled, booking.Appointment.Status)

	code, env = api.do(http.MethodPut, "/api/v1/bloodbank/appointments/"+booking.Appointment.ID.String()+"/complete", bankToken,
		map[string]interface{}{"blood_type": "O+", "units_collected": 2})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = api.do(http.MethodPut, "/api/v1/bloodbank/appointments/"+booking.Appointment.ID.String()+"/reject", bankToken, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(http.MethodGet, "/api/v1/bloodbank/profile", bankToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var profile model.BloodBankProfile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, 6, profile.BloodStock["O+"])

	code, env = api.do(http.MethodPost, "/api/v1/requests/blood", hospitalToken, map[string]interface{}{
		"blood_group": "O+",
		"quantity":    5,
		"location":    map[string]float64{"latitude": 19.07, "longitude": 72.87},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var result model.BloodRequestResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Fulfilled)
	require.NotNil(t, result.BloodBank)
	assert.Equal(t, bank.ID, result.BloodBank.ID)

	code, env = api.do(http.MethodPut, "/api/v1/bloodbank/requests/"+result.Request.ID.String()+"/fulfill", bankToken,
		map[string]interface{}{"blood_type": "O+", "quantity": 5})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = api.do(http.MethodGet, "/api/v1/bloodbank/profile", bankToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, 1, profile.BloodStock["O+"])

	code, env = api.do(http.MethodGet, "/api/v1/appointments/mine", userToken, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var mine []model.Appointment
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, model.AppointmentStatusCompleted, mine[0].Status)
}

func TestAccessControl(t *testing.T) {
	api := newTestAPI(t)
	userToken, _ := api.signUp(model.RoleNormalUser, "donor@example.com")

	code, _ := api.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodGet, "/api/v1/users/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := api.do(http.MethodPost, "/api/v1/requests/blood", userToken, map[string]interface{}{
		"blood_group": "O+",
		"quantity":    1,
		"location":    map[string]float64{"latitude": 1, "longitude": 2},
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "error", env.Status)

	code, _ = api.do(http.MethodGet, "/api/v1/users/me", userToken, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	hospitalToken, _ := api.signUp(model.RoleHospital, "hospital@example.com")

	code, env := api.do(http.MethodPost, "/api/v1/requests/blood", hospitalToken, map[string]interface{}{
		"blood_group": "Z+",
		"quantity":    1,
		"location":    map[string]float64{"latitude": 1, "longitude": 2},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "BloodGroup")

	code, _ = api.do(http.MethodPut, "/api/v1/bloodbank/appointments/not-a-uuid/complete", hospitalToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestSOSBroadcastAndHealth(t *testing.T) {
	api := newTestAPI(t)
	h1Token, _ := api.signUp(model.RoleHospital, "h1@example.com")
	api.signUp(model.RoleHospital, "h2@example.com")
	userToken, _ := api.signUp(model.RoleNormalUser, "caller@example.com")

	code, env := api.do(http.MethodPost, "/api/v1/sos/alerts", userToken, map[string]interface{}{
		"emergency_type": "accident",
		"urgency":        "critical",
		"location":       map[string]float64{"latitude": 1, "longitude": 2},
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var broadcast model.Broadcast
	require.NoError(t, json.Unmarshal(env.Data, &broadcast))
	assert.Len(t, broadcast.Delivered, 2)

	code, env = api.do(http.MethodGet, "/api/v1/sos/alerts", h1Token, nil)
	require.Equal(t, http.StatusOK, code)
	var alerts []model.SOSAlert
	require.NoError(t, json.Unmarshal(env.Data, &alerts))
	assert.Len(t, alerts, 1)

	code, _ = api.do(http.MethodGet, "/api/v1/sos/alerts", userToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestExternalSignInDisabledWithoutProvider(t *testing.T) {
	api := newTestAPI(t)
	api.signUp(model.RoleNormalUser, "owner@example.com")

	// a bare email is not accepted as proof of identity
	code, _ := api.do(http.MethodPost, "/api/v1/auth/external", "", map[string]string{
		"name":  "Intruder",
		"email": "owner@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := api.do(http.MethodPost, "/api/v1/auth/external", "", map[string]string{"id_token": "anything"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Empty(t, env.Data)
}

func TestCertificateUpload(t *testing.T) {
	api := newTestAPI(t)
	userToken, _ := api.signUp(model.RoleNormalUser, "donor@example.com")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	body := map[string]string{"image": base64.StdEncoding.EncodeToString(png)}

	code, _ := api.do(http.MethodPost, "/api/v1/uploads/certificate", "", body)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := api.do(http.MethodPost, "/api/v1/uploads/certificate", userToken, body)
	require.Equal(t, http.StatusOK, code, env.Message)
	var resp model.UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Regexp(t, `^/uploads/certificates/.+\.png$`, resp.URL)
}
