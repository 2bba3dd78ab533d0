package request

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	"github.com/lifeline-health/donor-api/internal/service/stock"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/matching"
	"github.com/lifeline-health/donor-api/pkg/messaging"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const (
	EventBloodRequested = "request.blood.created"
	EventOrganRequested = "request.organ.created"
	EventResolved       = "request.resolved"
)

type Service struct {
	store   repository.Store
	ledger  *stock.Service
	matcher matching.Client
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(store repository.Store, matcher matching.Client, broker messaging.Broker,
	log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		ledger:  stock.NewService(store, log, m),
		matcher: matcher,
		broker:  broker,
		logger:  log,
		metrics: m,
	}
}

// RequestBlood records a pending request, then tries to take the units from
// the first blood bank holding enough; otherwise it asks donor matching.
func (s *Service) RequestBlood(ctx context.Context, hospitalID uuid.UUID, in model.BloodRequestInput) (*model.BloodRequestResult, error) {
	if !model.ValidBloodGroup(in.BloodGroup) {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown blood group %q", in.BloodGroup), nil)
	}
	if in.Quantity < 1 {
		return nil, apperrors.BadRequest("quantity must be at least 1", nil)
	}
	location, err := requireLocation(in.Location)
	if err != nil {
		return nil, err
	}
	if _, err := s.hospital(ctx, hospitalID); err != nil {
		return nil, err
	}

	req := &model.Request{
		HospitalID: hospitalID,
		Kind:       model.RequestKindBlood,
		BloodGroup: in.BloodGroup,
		Quantity:   in.Quantity,
		Location:   location,
		Status:     model.RequestStatusPending,
	}
	if err := s.store.Requests().Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create blood request: %w", err)
	}
	s.publish(ctx, EventBloodRequested, req)

	log := s.logger.WithContext(ctx)
	var (
		bankID    uuid.UUID
		remaining int
		ok        bool
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		bankID, remaining, ok, err = tx.Stock().Reserve(ctx, in.BloodGroup, in.Quantity)
		if err != nil || !ok {
			return err
		}
		return tx.Requests().MarkReserved(ctx, req.ID, bankID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reserve blood stock: %w", err)
	}

	if ok {
		req.ReservedBy = &bankID
		bank, err := s.store.Accounts().Get(ctx, bankID)
		if err != nil {
			return nil, fmt.Errorf("failed to get blood bank: %w", err)
		}
		s.metrics.BloodRequest("stock")
		s.metrics.StockAdjusted("reserve", in.BloodGroup)
		log.Info("blood request served from stock",
			"request_id", req.ID.String(),
			"blood_bank_id", bankID.String(),
			"remaining", remaining,
		)
		contact := bank.Contact()
		contact.BloodGroup = ""
		return &model.BloodRequestResult{Request: req, Fulfilled: true, BloodBank: &contact}, nil
	}

	donors, err := s.matcher.MatchBlood(ctx, in.BloodGroup, location)
	if err != nil {
		s.metrics.BloodRequest("matching_failed")
		return nil, err
	}
	s.metrics.BloodRequest("donors")
	log.Info("blood request routed to donor matching", "request_id", req.ID.String(), "candidates", len(donors))
	return &model.BloodRequestResult{Request: req, Donors: donors}, nil
}

// RequestOrgan records a pending request and always delegates to matching.
func (s *Service) RequestOrgan(ctx context.Context, hospitalID uuid.UUID, in model.OrganRequestInput) (*model.OrganRequestResult, error) {
	if in.OrganType == "" {
		return nil, apperrors.BadRequest("organ_type is required", nil)
	}
	location, err := requireLocation(in.Location)
	if err != nil {
		return nil, err
	}
	if _, err := s.hospital(ctx, hospitalID); err != nil {
		return nil, err
	}

	req := &model.Request{
		HospitalID: hospitalID,
		Kind:       model.RequestKindOrgan,
		OrganType:  in.OrganType,
		Location:   location,
		Status:     model.RequestStatusPending,
	}
	if err := s.store.Requests().Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create organ request: %w", err)
	}
	s.publish(ctx, EventOrganRequested, req)

	donors, err := s.matcher.MatchOrgan(ctx, in.OrganType, location)
	if err != nil {
		return nil, err
	}
	return &model.OrganRequestResult{Request: req, Donors: donors}, nil
}

func (s *Service) ListForHospital(ctx context.Context, hospitalID uuid.UUID) (*model.HospitalRequests, error) {
	reqs, err := s.store.Requests().ListByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	out := &model.HospitalRequests{BloodRequests: []*model.Request{}, OrganRequests: []*model.Request{}}
	for _, r := range reqs {
		if r.Kind == model.RequestKindBlood {
			out.BloodRequests = append(out.BloodRequests, r)
		} else {
			out.OrganRequests = append(out.OrganRequests, r)
		}
	}
	return out, nil
}

// ListOpenBlood shows blood banks every hospital's blood requests.
func (s *Service) ListOpenBlood(ctx context.Context) ([]*model.RequestView, error) {
	views, err := s.store.Requests().ListByKind(ctx, model.RequestKindBlood)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []*model.RequestView{}
	}
	return views, nil
}

// Fulfill marks a pending blood request fulfilled by the acting bank and
// debits its ledger, floored at zero, in one transaction. A request that was
// already served from the bank's stock at creation is not debited again, and
// only that bank may fulfil it.
func (s *Service) Fulfill(ctx context.Context, id, actingBankID uuid.UUID, in model.FulfillRequestInput) (*model.Request, error) {
	if !model.ValidBloodGroup(in.BloodType) {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown blood group %q", in.BloodType), nil)
	}
	if in.Quantity < 1 {
		return nil, apperrors.BadRequest("quantity must be at least 1", nil)
	}
	fulfilled := time.Now().UTC()
	if in.FulfilledDate != nil && !in.FulfilledDate.IsZero() {
		fulfilled = in.FulfilledDate.UTC()
	}

	var req *model.Request
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		req, err = s.pendingBlood(ctx, tx, id, actingBankID)
		if err != nil {
			return err
		}

		bloodType, quantity := in.BloodType, in.Quantity
		req.Status = model.RequestStatusFulfilled
		req.FulfilledBy = &actingBankID
		req.FulfilledDate = &fulfilled
		req.FulfilledBloodType = &bloodType
		req.FulfilledQuantity = &quantity
		if err := tx.Requests().Resolve(ctx, req); err != nil {
			return err
		}

		if req.ReservedBy != nil {
			return nil
		}
		if _, err := s.ledger.Bind(tx).Decrement(ctx, actingBankID, in.BloodType, in.Quantity); err != nil {
			return fmt.Errorf("failed to debit blood stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("blood request fulfilled",
		"request_id", id.String(),
		"blood_bank_id", actingBankID.String(),
		"debited", req.ReservedBy == nil,
	)
	s.publish(ctx, EventResolved, req)
	return req, nil
}

// Reject closes a pending blood request on behalf of the acting bank. Units
// reserved at creation go back to the reserving bank.
func (s *Service) Reject(ctx context.Context, id, actingBankID uuid.UUID) (*model.Request, error) {
	var req *model.Request
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		req, err = s.pendingBlood(ctx, tx, id, actingBankID)
		if err != nil {
			return err
		}
		req.Status = model.RequestStatusRejected
		req.RejectedBy = &actingBankID
		if err := tx.Requests().Resolve(ctx, req); err != nil {
			return err
		}

		if req.ReservedBy == nil {
			return nil
		}
		if _, err := s.ledger.Bind(tx).Increment(ctx, *req.ReservedBy, req.BloodGroup, req.Quantity); err != nil {
			return fmt.Errorf("failed to return reserved blood stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).Info("request rejected", "request_id", id.String(), "blood_bank_id", actingBankID.String())
	s.publish(ctx, EventResolved, req)
	return req, nil
}

// pendingBlood loads a request a blood bank may still act on.
func (s *Service) pendingBlood(ctx context.Context, tx repository.Store, id, actingBankID uuid.UUID) (*model.Request, error) {
	req, err := tx.Requests().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Kind != model.RequestKindBlood {
		return nil, apperrors.BadRequest("only blood requests are handled by blood banks", nil)
	}
	if req.Status != model.RequestStatusPending {
		return nil, apperrors.InvalidState(fmt.Sprintf("request is already %s", req.Status))
	}
	if req.ReservedBy != nil && *req.ReservedBy != actingBankID {
		return nil, apperrors.Forbidden("request was supplied by another blood bank")
	}
	return req, nil
}

func (s *Service) hospital(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.store.Accounts().Get(ctx, id)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if err != nil || account.Role != model.RoleHospital {
		return nil, apperrors.NotFound("hospital", err)
	}
	return account, nil
}

func requireLocation(in *model.LocationInput) (model.Location, error) {
	if in == nil || in.Latitude == nil || in.Longitude == nil {
		return model.Location{}, apperrors.BadRequest("location with latitude and longitude is required", nil)
	}
	return in.ToLocation(), nil
}

func (s *Service) publish(ctx context.Context, eventType string, req *model.Request) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, messaging.ChannelRequests, messaging.Message{Type: eventType, Payload: req}); err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to publish request event", "type", eventType)
	}
}
