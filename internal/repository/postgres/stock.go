package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeline-health/donor-api/internal/model"
)

type stockRepository struct {
	BaseRepository
}

func (r *stockRepository) Get(ctx context.Context, bloodBankID uuid.UUID) (model.BloodStock, error) {
	query := `SELECT blood_group, units FROM blood_stock WHERE blood_bank_id = $1`

	var entries []model.StockEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, bloodBankID); err != nil {
		return nil, fmt.Errorf("failed to get blood stock: %w", err)
	}

	stock := make(model.BloodStock, len(entries))
	for _, e := range entries {
		stock[e.BloodGroup] = e.Units
	}
	return stock, nil
}

func (r *stockRepository) Increment(ctx context.Context, bloodBankID uuid.UUID, group string, delta, capacity int) (int, error) {
	query := `
		INSERT INTO blood_stock (blood_bank_id, blood_group, units, updated_at)
		VALUES ($1, $2, LEAST(GREATEST($3::int, 0), $4::int), $5)
		ON CONFLICT (blood_bank_id, blood_group) DO UPDATE
		SET units = LEAST(GREATEST(blood_stock.units + $3::int, 0), $4::int),
			updated_at = EXCLUDED.updated_at
		RETURNING units
	`
	var units int
	delta = boundDelta(delta, capacity)
	if err := sqlx.GetContext(ctx, r.db, &units, query, bloodBankID, group, delta, capacity, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to increment blood stock: %w", err)
	}
	return units, nil
}

func (r *stockRepository) Decrement(ctx context.Context, bloodBankID uuid.UUID, group string, delta int) (int, error) {
	query := `
		INSERT INTO blood_stock (blood_bank_id, blood_group, units, updated_at)
		VALUES ($1, $2, 0, $4)
		ON CONFLICT (blood_bank_id, blood_group) DO UPDATE
		SET units = GREATEST(blood_stock.units - $3::int, 0),
			updated_at = EXCLUDED.updated_at
		RETURNING units
	`
	var units int
	delta = boundDelta(delta, model.StockCapacity)
	if err := sqlx.GetContext(ctx, r.db, &units, query, bloodBankID, group, delta, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to decrement blood stock: %w", err)
	}
	return units, nil
}

// boundDelta limits delta to +-capacity. Stored units never leave
// [0, capacity], so the result of the update is unchanged while the
// parameter always fits the int4 column.
func boundDelta(delta, capacity int) int {
	if delta > capacity {
		return capacity
	}
	if delta < -capacity {
		return -capacity
	}
	return delta
}

// reserveAttempts bounds the retries after a candidate row changed while the
// statement waited for its lock.
const reserveAttempts = 3

func (r *stockRepository) Reserve(ctx context.Context, group string, quantity int) (uuid.UUID, int, bool, error) {
	if quantity > model.StockCapacity {
		return uuid.Nil, 0, false, nil
	}
	// The first pass skips rows held by other transactions. Later passes wait
	// for them; each statement takes a fresh snapshot under READ COMMITTED.
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		lock := "FOR UPDATE OF s"
		if attempt == 0 {
			lock += " SKIP LOCKED"
		}
		id, units, ok, err := r.reserve(ctx, group, quantity, lock)
		if err != nil || ok {
			return id, units, ok, err
		}
	}
	return uuid.Nil, 0, false, nil
}

func (r *stockRepository) reserve(ctx context.Context, group string, quantity int, lock string) (uuid.UUID, int, bool, error) {
	query := `
		WITH candidate AS (
			SELECT s.blood_bank_id
			FROM blood_stock s
			JOIN accounts a ON a.id = s.blood_bank_id
			WHERE s.blood_group = $1 AND s.units >= $2 AND a.role = 'BloodBank'
			ORDER BY a.created_at, a.id
			LIMIT 1
			` + lock + `
		)
		UPDATE blood_stock
		SET units = blood_stock.units - $2, updated_at = $3
		FROM candidate
		WHERE blood_stock.blood_bank_id = candidate.blood_bank_id
			AND blood_stock.blood_group = $1
			AND blood_stock.units >= $2
		RETURNING blood_stock.blood_bank_id, blood_stock.units
	`
	var row struct {
		BloodBankID uuid.UUID `db:"blood_bank_id"`
		Units       int       `db:"units"`
	}
	err := sqlx.GetContext(ctx, r.db, &row, query, group, quantity, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, 0, false, nil
	}
	if err != nil {
		return uuid.Nil, 0, false, fmt.Errorf("failed to reserve blood stock: %w", err)
	}
	return row.BloodBankID, row.Units, true, nil
}

// Replace overwrites every entry of one blood bank. Run it inside WithTx.
func (r *stockRepository) Replace(ctx context.Context, bloodBankID uuid.UUID, stock model.BloodStock) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blood_stock WHERE blood_bank_id = $1`, bloodBankID); err != nil {
		return fmt.Errorf("failed to clear blood stock: %w", err)
	}

	query := `INSERT INTO blood_stock (blood_bank_id, blood_group, units, updated_at) VALUES ($1, $2, $3, $4)`
	now := time.Now().UTC()
	for _, group := range model.BloodGroups {
		units, ok := stock[group]
		if !ok {
			continue
		}
		if _, err := r.db.ExecContext(ctx, query, bloodBankID, group, model.ClampUnits(units), now); err != nil {
			return fmt.Errorf("failed to store blood stock: %w", err)
		}
	}
	return nil
}
