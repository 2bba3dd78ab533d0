package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeline-health/donor-api/internal/model"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
)

type alertRepository struct {
	BaseRepository
}

const alertColumns = `
	id, correlation_id, hospital_id, user_id, emergency_type, urgency, description,
	latitude AS "location.latitude", longitude AS "location.longitude", city AS "location.city",
	timestamp, status, ambulance_dispatched, created_at, updated_at`

func (r *alertRepository) Create(ctx context.Context, alert *model.SOSAlert) error {
	query := `
		INSERT INTO sos_alerts (
			id, correlation_id, hospital_id, user_id, emergency_type, urgency, description,
			latitude, longitude, city, timestamp, status, ambulance_dispatched,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	now := time.Now().UTC()
	alert.CreatedAt = now
	alert.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.CorrelationID,
		alert.HospitalID,
		alert.UserID,
		alert.EmergencyType,
		alert.Urgency,
		alert.Description,
		alert.Location.Latitude,
		alert.Location.Longitude,
		alert.Location.City,
		alert.Timestamp,
		alert.Status,
		alert.AmbulanceDispatched,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sos alert: %w", err)
	}
	return nil
}

// Get only finds alerts held by the given hospital.
func (r *alertRepository) Get(ctx context.Context, hospitalID, alertID uuid.UUID) (*model.SOSAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM sos_alerts WHERE id = $1 AND hospital_id = $2`

	var alert model.SOSAlert
	if err := sqlx.GetContext(ctx, r.db, &alert, query, alertID, hospitalID); err != nil {
		return nil, notFoundOr(err, "sos alert", "get sos alert")
	}
	return &alert, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *model.SOSAlert) error {
	query := `
		UPDATE sos_alerts
		SET status = $1, ambulance_dispatched = $2, updated_at = $3
		WHERE id = $4 AND hospital_id = $5
	`
	alert.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		alert.Status,
		alert.AmbulanceDispatched,
		alert.UpdatedAt,
		alert.ID,
		alert.HospitalID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sos alert: %w", err)
	}
	return checkAffected(result, apperrors.NotFound("sos alert", nil))
}

func (r *alertRepository) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*model.SOSAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM sos_alerts WHERE hospital_id = $1 ORDER BY timestamp DESC`

	var alerts []*model.SOSAlert
	if err := sqlx.SelectContext(ctx, r.db, &alerts, query, hospitalID); err != nil {
		return nil, fmt.Errorf("failed to list sos alerts: %w", err)
	}
	return alerts, nil
}
