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

type requestRepository struct {
	BaseRepository
}

const requestColumns = `
	r.id, r.hospital_id, r.kind, r.blood_group, r.organ_type, r.quantity,
	r.latitude AS "location.latitude", r.longitude AS "location.longitude", r.city AS "location.city",
	r.status, r.reserved_by, r.fulfilled_by, r.fulfilled_date,
	r.fulfilled_blood_type, r.fulfilled_quantity, r.rejected_by,
	r.created_at, r.updated_at`

func (r *requestRepository) Create(ctx context.Context, request *model.Request) error {
	query := `
		INSERT INTO requests (
			id, hospital_id, kind, blood_group, organ_type, quantity,
			latitude, longitude, city, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.HospitalID,
		request.Kind,
		request.BloodGroup,
		request.OrganType,
		request.Quantity,
		request.Location.Latitude,
		request.Location.Longitude,
		request.Location.City,
		request.Status,
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (r *requestRepository) Get(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return r.get(ctx, id, "")
}

func (r *requestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *requestRepository) get(ctx context.Context, id uuid.UUID, lock string) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests r WHERE r.id = $1` + lock

	var request model.Request
	if err := sqlx.GetContext(ctx, r.db, &request, query, id); err != nil {
		return nil, notFoundOr(err, "request", "get request")
	}
	return &request, nil
}

func (r *requestRepository) ListByHospital(ctx context.Context, hospitalID uuid.UUID) ([]*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests r WHERE r.hospital_id = $1 ORDER BY r.created_at ASC`

	var requests []*model.Request
	if err := sqlx.SelectContext(ctx, r.db, &requests, query, hospitalID); err != nil {
		return nil, fmt.Errorf("failed to list hospital requests: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) ListByKind(ctx context.Context, kind model.RequestKind) ([]*model.RequestView, error) {
	query := `
		SELECT ` + requestColumns + `,
			h.id AS "hospital.id", h.name AS "hospital.name", h.phone AS "hospital.phone",
			h.blood_group AS "hospital.blood_group",
			h.latitude AS "hospital.location.latitude", h.longitude AS "hospital.location.longitude",
			h.city AS "hospital.location.city"
		FROM requests r
		JOIN accounts h ON h.id = r.hospital_id
		WHERE r.kind = $1
		ORDER BY r.created_at ASC
	`
	var requests []*model.RequestView
	if err := sqlx.SelectContext(ctx, r.db, &requests, query, kind); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

func (r *requestRepository) MarkReserved(ctx context.Context, id, bloodBankID uuid.UUID) error {
	query := `UPDATE requests SET reserved_by = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, bloodBankID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark request reserved: %w", err)
	}
	return checkAffected(result, apperrors.NotFound("request", nil))
}

func (r *requestRepository) Resolve(ctx context.Context, request *model.Request) error {
	query := `
		UPDATE requests
		SET status = $1, fulfilled_by = $2, fulfilled_date = $3,
			fulfilled_blood_type = $4, fulfilled_quantity = $5, rejected_by = $6,
			updated_at = $7
		WHERE id = $8 AND status = 'pending'
	`
	request.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		request.Status,
		request.FulfilledBy,
		request.FulfilledDate,
		request.FulfilledBloodType,
		request.FulfilledQuantity,
		request.RejectedBy,
		request.UpdatedAt,
		request.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve request: %w", err)
	}
	return checkAffected(result, apperrors.InvalidState("request is no longer pending"))
}
