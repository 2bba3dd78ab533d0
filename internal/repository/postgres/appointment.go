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

type appointmentRepository struct {
	BaseRepository
}

const appointmentColumns = `
	a.id, a.donor_id, a.blood_bank_id, a.type, a.date, a.status,
	a.blood_type, a.units_collected, a.donation_date, a.receipt_url,
	a.created_at, a.updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, donor_id, blood_bank_id, type, date, status,
			receipt_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.DonorID,
		appointment.BloodBankID,
		appointment.Type,
		appointment.Date,
		appointment.Status,
		appointment.ReceiptURL,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, "")
}

func (r *appointmentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *appointmentRepository) get(ctx context.Context, id uuid.UUID, lock string) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments a WHERE a.id = $1` + lock

	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.db, &appointment, query, id); err != nil {
		return nil, notFoundOr(err, "appointment", "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Transition(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus) error {
	query := `
		UPDATE appointments
		SET status = $1, blood_type = $2, units_collected = $3, donation_date = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	appointment.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Status,
		appointment.BloodType,
		appointment.UnitsCollected,
		appointment.DonationDate,
		appointment.UpdatedAt,
		appointment.ID,
		from,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return checkAffected(result, apperrors.InvalidState(fmt.Sprintf("appointment is no longer %s", from)))
}

func (r *appointmentRepository) SetReceiptURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `UPDATE appointments SET receipt_url = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, url, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set receipt url: %w", err)
	}
	return checkAffected(result, apperrors.NotFound("appointment", nil))
}

func (r *appointmentRepository) ListByBloodBank(ctx context.Context, bloodBankID uuid.UUID) ([]*model.AppointmentView, error) {
	query := `
		SELECT ` + appointmentColumns + `,
			d.id AS "donor.id", d.name AS "donor.name", d.phone AS "donor.phone",
			d.blood_group AS "donor.blood_group",
			d.latitude AS "donor.location.latitude", d.longitude AS "donor.location.longitude",
			d.city AS "donor.location.city"
		FROM appointments a
		JOIN accounts d ON d.id = a.donor_id
		WHERE a.blood_bank_id = $1
		ORDER BY a.date ASC, a.created_at ASC
	`
	var appointments []*model.AppointmentView
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, bloodBankID); err != nil {
		return nil, fmt.Errorf("failed to list blood bank appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments a WHERE a.donor_id = $1 ORDER BY a.created_at ASC`

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, donorID); err != nil {
		return nil, fmt.Errorf("failed to list donation history: %w", err)
	}
	return appointments, nil
}
