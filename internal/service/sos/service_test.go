package sos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository/memory"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging"
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	user   *model.Account
	h1, h2 *model.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	user := &model.Account{Role: model.RoleNormalUser, Name: "U2", Email: "u2@x.test", PasswordHash: "x"}
	h1 := &model.Account{Role: model.RoleHospital, Name: "H1", Email: "h1@x.test", PasswordHash: "x"}
	h2 := &model.Account{Role: model.RoleHospital, Name: "H2", Email: "h2@x.test", PasswordHash: "x"}
	bank := &model.Account{Role: model.RoleBloodBank, Name: "B", Email: "b@x.test", PasswordHash: "x"}
	for _, a := range []*model.Account{user, h1, h2, bank} {
		require.NoError(t, store.Accounts().Create(ctx, a))
	}
	return &fixture{
		svc:   NewService(store, messaging.NewLocalBroker(), logger.NewNop(), nil),
		store: store,
		user:  user,
		h1:    h1,
		h2:    h2,
	}
}

func alertRequest() model.CreateAlertRequest {
	lat, lng := 28.61, 77.2
	return model.CreateAlertRequest{
		EmergencyType: "accident",
		Urgency:       "critical",
		Description:   "two-vehicle collision",
		Location:      &model.LocationInput{Latitude: &lat, Longitude: &lng},
	}
}

func TestCreateAlert_OneCopyPerHospital(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.CreateAlert(context.Background(), f.user.ID, alertRequest())
	require.NoError(t, err)

	require.Len(t, b.Delivered, 2)
	assert.Zero(t, b.Failed)
	assert.NotEqual(t, b.Delivered[0].ID, b.Delivered[1].ID)
	assert.Equal(t, b.CorrelationID, b.Delivered[0].CorrelationID)
	assert.Equal(t, b.CorrelationID, b.Delivered[1].CorrelationID)
	assert.Equal(t, model.AlertStatusActive, b.Delivered[0].Status)
}

func TestUpdateAlert_ChangesOnlyOwnCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateAlert(ctx, f.user.ID, alertRequest())
	require.NoError(t, err)

	h1Alerts, err := f.svc.ListAlerts(ctx, f.h1.ID)
	require.NoError(t, err)
	require.Len(t, h1Alerts, 1)

	dispatched := model.AlertStatusDispatched
	yes := true
	updated, err := f.svc.UpdateAlert(ctx, f.h1.ID, h1Alerts[0].ID, model.UpdateAlertRequest{Status: &dispatched, AmbulanceDispatched: &yes})
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusDispatched, updated.Status)
	assert.True(t, updated.AmbulanceDispatched)

	h2Alerts, err := f.svc.ListAlerts(ctx, f.h2.ID)
	require.NoError(t, err)
	require.Len(t, h2Alerts, 1)
	assert.Equal(t, model.AlertStatusActive, h2Alerts[0].Status)
	assert.False(t, h2Alerts[0].AmbulanceDispatched)
}

func TestUpdateAlert_OtherHospitalsCopyIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateAlert(ctx, f.user.ID, alertRequest())
	require.NoError(t, err)

	var h1Copy *model.SOSAlert
	for _, a := range b.Delivered {
		if a.HospitalID == f.h1.ID {
			h1Copy = a
		}
	}
	require.NotNil(t, h1Copy)

	resolved := model.AlertStatusResolved
	_, err = f.svc.UpdateAlert(ctx, f.h2.ID, h1Copy.ID, model.UpdateAlertRequest{Status: &resolved})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestCreateAlert_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateAlert(context.Background(), uuid.New(), alertRequest())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStream_DeliversOwnAlerts(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := f.svc.Stream(ctx, f.h2.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateAlert(ctx, f.user.ID, alertRequest())
	require.NoError(t, err)

	select {
	case alert := <-stream:
		assert.Equal(t, f.h2.ID, alert.HospitalID)
		assert.Equal(t, "critical", alert.Urgency)
	case <-time.After(time.Second):
		t.Fatal("no alert streamed")
	}
}
