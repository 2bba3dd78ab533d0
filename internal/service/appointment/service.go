package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	"github.com/lifeline-health/donor-api/internal/service/notification"
	"github.com/lifeline-health/donor-api/internal/service/stock"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging"
	"github.com/lifeline-health/donor-api/pkg/metrics"
	"github.com/lifeline-health/donor-api/pkg/receipt"
)

// DefaultUnitsCollected applies when a completion omits the unit count.
const DefaultUnitsCollected = 1

const (
	EventBooked    = "appointment.booked"
	EventCompleted = "appointment.completed"
	EventCancelled = "appointment.cancelled"
)

type Service struct {
	store    repository.Store
	ledger   *stock.Service
	receipts receipt.Renderer
	notifSvc notification.Service
	broker   messaging.Broker
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(store repository.Store, receipts receipt.Renderer, notifSvc notification.Service,
	broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		ledger:   stock.NewService(store, log, m),
		receipts: receipts,
		notifSvc: notifSvc,
		broker:   broker,
		logger:   log,
		metrics:  m,
	}
}

// Book schedules a donation. Receipt, message and event are best effort and
// never undo the booking.
func (s *Service) Book(ctx context.Context, donorID uuid.UUID, req model.BookAppointmentRequest) (*model.BookingResult, error) {
	if !req.Type.Valid() {
		return nil, apperrors.BadRequest("type must be blood or organ", nil)
	}
	if req.Date.IsZero() {
		return nil, apperrors.BadRequest("date is required", nil)
	}

	donor, err := s.store.Accounts().Get(ctx, donorID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("donor", err)
		}
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	bank, err := s.store.Accounts().Get(ctx, req.BloodBankID)
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to get blood bank: %w", err)
	}
	if err != nil || bank.Role != model.RoleBloodBank {
		return nil, apperrors.NotFound("blood bank", err)
	}

	apt := &model.Appointment{
		DonorID:     donor.ID,
		BloodBankID: bank.ID,
		Type:        req.Type,
		Date:        req.Date.UTC(),
		Status:      model.AppointmentStatusScheduled,
	}
	if err := s.store.Appointments().Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	s.metrics.AppointmentTransition(string(model.AppointmentStatusScheduled))

	log := s.logger.WithContext(ctx)
	log.Info("appointment booked", "appointment_id", apt.ID.String(), "blood_bank_id", bank.ID.String())

	receiptURL, err := s.receipts.Render(ctx, receipt.Data{
		Appointment: apt,
		Donor:       donor.Contact(),
		DonorEmail:  donor.Email,
		BloodBank:   bank.Contact(),
	})
	if err != nil {
		log.Error(err, "receipt rendering failed", "appointment_id", apt.ID.String())
	} else if err := s.store.Appointments().SetReceiptURL(ctx, apt.ID, receiptURL); err != nil {
		log.Error(err, "failed to store receipt url", "appointment_id", apt.ID.String())
	} else {
		apt.ReceiptURL = receiptURL
	}

	s.notifyBooking(ctx, donor, bank, apt)
	s.publish(ctx, EventBooked, apt)

	return &model.BookingResult{Appointment: apt, ReceiptURL: apt.ReceiptURL}, nil
}

// Complete closes a scheduled appointment and credits the acting bank's
// ledger, both in one transaction.
func (s *Service) Complete(ctx context.Context, id, actingBankID uuid.UUID, req model.CompleteAppointmentRequest) (*model.Appointment, error) {
	completion, err := normalizeCompletion(req, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	var apt *model.Appointment
	var units int
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		apt, err = s.transition(ctx, tx, id, actingBankID, model.AppointmentStatusCompleted, func(a *model.Appointment) {
			a.BloodType = &completion.BloodType
			a.UnitsCollected = &completion.UnitsCollected
			a.DonationDate = &completion.DonationDate
		})
		if err != nil {
			return err
		}

		units, err = s.ledger.Bind(tx).Increment(ctx, actingBankID, completion.BloodType, completion.UnitsCollected)
		if err != nil {
			return fmt.Errorf("failed to credit blood stock: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentTransition(string(model.AppointmentStatusCompleted))
	s.logger.WithContext(ctx).Info("appointment completed",
		"appointment_id", apt.ID.String(),
		"blood_type", completion.BloodType,
		"units_collected", completion.UnitsCollected,
		"stock_units", units,
	)
	s.publish(ctx, EventCompleted, apt)
	return apt, nil
}

// Reject cancels a scheduled appointment. Stock is never touched.
func (s *Service) Reject(ctx context.Context, id, actingBankID uuid.UUID) (*model.Appointment, error) {
	var apt *model.Appointment
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		apt, err = s.transition(ctx, tx, id, actingBankID, model.AppointmentStatusCancelled, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AppointmentTransition(string(model.AppointmentStatusCancelled))
	s.logger.WithContext(ctx).Info("appointment rejected", "appointment_id", apt.ID.String())
	s.publish(ctx, EventCancelled, apt)
	return apt, nil
}

func (s *Service) transition(ctx context.Context, tx repository.Store, id, actingBankID uuid.UUID,
	to model.AppointmentStatus, apply func(*model.Appointment)) (*model.Appointment, error) {
	apt, err := tx.Appointments().GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.BloodBankID != actingBankID {
		return nil, apperrors.Forbidden("appointment belongs to another blood bank")
	}
	if apt.Status.Terminal() {
		return nil, apperrors.InvalidState(fmt.Sprintf("appointment is already %s", apt.Status))
	}

	from := apt.Status
	apt.Status = to
	if apply != nil {
		apply(apt)
	}
	if err := tx.Appointments().Transition(ctx, apt, from); err != nil {
		return nil, err
	}
	return apt, nil
}

// Get returns an appointment to its donor or its blood bank.
func (s *Service) Get(ctx context.Context, id uuid.UUID, caller model.Principal) (*model.Appointment, error) {
	apt, err := s.store.Appointments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.DonorID != caller.AccountID && apt.BloodBankID != caller.AccountID {
		return nil, apperrors.Forbidden("not a party to this appointment")
	}
	return apt, nil
}

func (s *Service) ListForBloodBank(ctx context.Context, bloodBankID uuid.UUID) ([]*model.AppointmentView, error) {
	views, err := s.store.Appointments().ListByBloodBank(ctx, bloodBankID)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []*model.AppointmentView{}
	}
	return views, nil
}

// ListForDonor is the donor's donation history.
func (s *Service) ListForDonor(ctx context.Context, donorID uuid.UUID) ([]*model.Appointment, error) {
	apts, err := s.store.Appointments().ListByDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if apts == nil {
		apts = []*model.Appointment{}
	}
	return apts, nil
}

// ReceiptPath returns the rendered receipt file for a party to the appointment.
func (s *Service) ReceiptPath(ctx context.Context, id uuid.UUID, caller model.Principal) (string, error) {
	if _, err := s.Get(ctx, id, caller); err != nil {
		return "", err
	}
	path, err := s.receipts.Path(id)
	if errors.Is(err, receipt.ErrNotFound) {
		return "", apperrors.NotFound("receipt", err)
	}
	return path, err
}

func normalizeCompletion(req model.CompleteAppointmentRequest, now time.Time) (model.Completion, error) {
	if !model.ValidBloodGroup(req.BloodType) {
		return model.Completion{}, apperrors.BadRequest(fmt.Sprintf("unknown blood group %q", req.BloodType), nil)
	}
	c := model.Completion{
		BloodType:      req.BloodType,
		UnitsCollected: DefaultUnitsCollected,
		DonationDate:   now,
	}
	if req.UnitsCollected != nil {
		if *req.UnitsCollected < 0 {
			return model.Completion{}, apperrors.BadRequest("units_collected must not be negative", nil)
		}
		c.UnitsCollected = *req.UnitsCollected
	}
	if req.DonationDate != nil && !req.DonationDate.IsZero() {
		c.DonationDate = req.DonationDate.UTC()
	}
	return c, nil
}

func (s *Service) notifyBooking(ctx context.Context, donor, bank *model.Account, apt *model.Appointment) {
	text := fmt.Sprintf("Hi %s, your %s donation appointment at %s on %s is booked.",
		donor.Name, apt.Type, bank.Name, apt.Date.Format("02 Jan 2006 15:04"))
	if apt.ReceiptURL != "" {
		text += " Receipt: " + apt.ReceiptURL
	}

	var notes []*model.Notification
	if donor.Phone != "" {
		notes = append(notes, &model.Notification{Channel: model.ChannelSMS, Recipient: donor.Phone, Content: text})
	}
	if donor.Email != "" {
		notes = append(notes, &model.Notification{
			Channel:   model.ChannelEmail,
			Recipient: donor.Email,
			Subject:   "Donation appointment booked",
			Content:   text,
		})
	}

	for _, n := range notes {
		if err := s.notifSvc.Send(ctx, n); err != nil && !errors.Is(err, notification.ErrChannelDisabled) {
			s.logger.WithContext(ctx).Error(err, "booking notification failed",
				"appointment_id", apt.ID.String(), "channel", string(n.Channel))
		}
	}
}

func (s *Service) publish(ctx context.Context, eventType string, apt *model.Appointment) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, messaging.ChannelAppointments, messaging.Message{Type: eventType, Payload: apt}); err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to publish appointment event", "type", eventType)
	}
}
