package receipt

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeline-health/donor-api/internal/model"
)

func TestRender_WritesPDF(t *testing.T) {
	r, err := NewPDFRenderer(t.TempDir())
	require.NoError(t, err)

	appt := &model.Appointment{
		Type:   model.DonationTypeBlood,
		Date:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status: model.AppointmentStatusScheduled,
	}
	appt.ID = uuid.New()

	locator, err := r.Render(context.Background(), Data{
		Appointment: appt,
		Donor:       model.Contact{Name: "Asha", Phone: "9876543210", BloodGroup: "O+"},
		BloodBank:   model.Contact{Name: "City Blood Bank"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/appointments/"+appt.ID.String()+"/receipt", locator)

	path, err := r.Path(appt.ID)
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, len(body) > 4 && string(body[:4]) == "%PDF")
}

func TestPath_Missing(t *testing.T) {
	r, err := NewPDFRenderer(t.TempDir())
	require.NoError(t, err)

	_, err = r.Path(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
