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

type accountRepository struct {
	BaseRepository
}

const accountColumns = `
	id, role, name, email, password_hash, external, age, sex, blood_group, phone,
	latitude AS "location.latitude", longitude AS "location.longitude", city AS "location.city",
	can_donate_blood, can_donate_organ, profile_completed, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (
			id, role, name, email, password_hash, external, age, sex, blood_group, phone,
			latitude, longitude, city, can_donate_blood, can_donate_organ, profile_completed,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Role,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.External,
		account.Age,
		account.Sex,
		account.BloodGroup,
		account.Phone,
		account.Location.Latitude,
		account.Location.Longitude,
		account.Location.City,
		account.CanDonateBlood,
		account.CanDonateOrgan,
		account.ProfileCompleted,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("account already exists")
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account model.Account
	if err := sqlx.GetContext(ctx, r.db, &account, query, id); err != nil {
		return nil, notFoundOr(err, "account", "get account")
	}
	return &account, nil
}

func (r *accountRepository) GetByEmailAndRole(ctx context.Context, email string, role model.Role) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 AND role = $2`

	var account model.Account
	if err := sqlx.GetContext(ctx, r.db, &account, query, email, role); err != nil {
		return nil, notFoundOr(err, "account", "get account by email")
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, age = $2, sex = $3, blood_group = $4, phone = $5,
			latitude = $6, longitude = $7, city = $8,
			can_donate_blood = $9, can_donate_organ = $10, profile_completed = $11,
			updated_at = $12
		WHERE id = $13
	`
	account.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		account.Name,
		account.Age,
		account.Sex,
		account.BloodGroup,
		account.Phone,
		account.Location.Latitude,
		account.Location.Longitude,
		account.Location.City,
		account.CanDonateBlood,
		account.CanDonateOrgan,
		account.ProfileCompleted,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return checkAffected(result, apperrors.NotFound("account", nil))
}

func (r *accountRepository) ListByRole(ctx context.Context, role model.Role) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE role = $1 ORDER BY created_at, id`

	var accounts []*model.Account
	if err := sqlx.SelectContext(ctx, r.db, &accounts, query, role); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}
