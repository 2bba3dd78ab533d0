package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

type Service struct {
	store   repository.Store
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(store repository.Store, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: log, metrics: m}
}

// Bind returns a copy of the service that reads and writes through store,
// typically the Store of an open transaction.
func (s *Service) Bind(store repository.Store) *Service {
	bound := *s
	bound.store = store
	return &bound
}

// Increment adds delta units, clamped into [0, StockCapacity], and returns the new value.
func (s *Service) Increment(ctx context.Context, bloodBankID uuid.UUID, group string, delta int) (int, error) {
	if err := s.validate(ctx, bloodBankID, group, delta); err != nil {
		return 0, err
	}
	units, err := s.store.Stock().Increment(ctx, bloodBankID, group, delta, model.StockCapacity)
	if err != nil {
		return 0, err
	}
	s.metrics.StockAdjusted("increment", group)
	return units, nil
}

// Decrement removes up to delta units; insufficient stock floors at zero.
func (s *Service) Decrement(ctx context.Context, bloodBankID uuid.UUID, group string, delta int) (int, error) {
	if err := s.validate(ctx, bloodBankID, group, delta); err != nil {
		return 0, err
	}
	units, err := s.store.Stock().Decrement(ctx, bloodBankID, group, delta)
	if err != nil {
		return 0, err
	}
	s.metrics.StockAdjusted("decrement", group)
	return units, nil
}

// Get returns every blood group, zero-filled.
func (s *Service) Get(ctx context.Context, bloodBankID uuid.UUID) (model.BloodStock, error) {
	if _, err := s.bloodBank(ctx, bloodBankID); err != nil {
		return nil, err
	}
	stored, err := s.store.Stock().Get(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}
	out := make(model.BloodStock, len(model.BloodGroups))
	for _, g := range model.BloodGroups {
		out[g] = stored[g]
	}
	return out, nil
}

// Replace overwrites the bank's whole ledger; values are clamped.
func (s *Service) Replace(ctx context.Context, bloodBankID uuid.UUID, stock model.BloodStock) (model.BloodStock, error) {
	for g := range stock {
		if !model.ValidBloodGroup(g) {
			return nil, apperrors.BadRequest(fmt.Sprintf("unknown blood group %q", g), nil)
		}
	}
	if _, err := s.bloodBank(ctx, bloodBankID); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		return tx.Stock().Replace(ctx, bloodBankID, stock)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.StockAdjusted("replace", "all")
	s.logger.WithContext(ctx).Info("blood stock replaced", "blood_bank_id", bloodBankID.String())
	return s.Get(ctx, bloodBankID)
}

func (s *Service) validate(ctx context.Context, bloodBankID uuid.UUID, group string, delta int) error {
	if !model.ValidBloodGroup(group) {
		return apperrors.BadRequest(fmt.Sprintf("unknown blood group %q", group), nil)
	}
	if delta < 0 {
		return apperrors.BadRequest("delta must not be negative", nil)
	}
	_, err := s.bloodBank(ctx, bloodBankID)
	return err
}

func (s *Service) bloodBank(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.store.Accounts().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.Role != model.RoleBloodBank {
		return nil, apperrors.NotFound("blood bank", nil)
	}
	return account, nil
}
