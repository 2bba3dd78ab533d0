package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lifeline-health/donor-api/internal/repository"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
)

const uniqueViolation = "23505"

// BaseRepository carries the connection or transaction repositories run on.
type BaseRepository struct {
	db sqlx.ExtContext
}

// Store is the Postgres implementation of repository.Store.
type Store struct {
	BaseRepository
	conn *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{BaseRepository: BaseRepository{db: db}, conn: db}
}

func (s *Store) Accounts() repository.AccountRepository {
	return &accountRepository{s.BaseRepository}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{s.BaseRepository}
}

func (s *Store) Stock() repository.StockRepository {
	return &stockRepository{s.BaseRepository}
}

func (s *Store) Requests() repository.RequestRepository {
	return &requestRepository{s.BaseRepository}
}

func (s *Store) Alerts() repository.AlertRepository {
	return &alertRepository{s.BaseRepository}
}

func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.PingContext(ctx)
}

// WithTx executes a function within a transaction. Calls nested inside an
// open transaction reuse it.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.conn == nil {
		return fn(s)
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{BaseRepository: BaseRepository{db: tx}}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func notFoundOr(err error, resource, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func checkAffected(result sql.Result, onZero error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return onZero
	}
	return nil
}
