package sos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	apperrors "github.com/lifeline-health/donor-api/pkg/errors"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const EventAlertCreated = "sos.alert.created"

type Service struct {
	store   repository.Store
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(store repository.Store, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, broker: broker, logger: log, metrics: m}
}

// CreateAlert writes one independent copy per hospital. Copies share only
// the correlation id; a failed write leaves the other copies in place.
func (s *Service) CreateAlert(ctx context.Context, userID uuid.UUID, req model.CreateAlertRequest) (*model.Broadcast, error) {
	if req.EmergencyType == "" || req.Urgency == "" {
		return nil, apperrors.BadRequest("emergency_type and urgency are required", nil)
	}
	if req.Location == nil || req.Location.Latitude == nil || req.Location.Longitude == nil {
		return nil, apperrors.BadRequest("location with latitude and longitude is required", nil)
	}
	if _, err := s.store.Accounts().Get(ctx, userID); err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, err
	}

	hospitals, err := s.store.Accounts().ListByRole(ctx, model.RoleHospital)
	if err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}

	log := s.logger.WithContext(ctx)
	broadcast := &model.Broadcast{CorrelationID: uuid.New(), Delivered: []*model.SOSAlert{}}
	for _, h := range hospitals {
		alert := &model.SOSAlert{
			CorrelationID: broadcast.CorrelationID,
			HospitalID:    h.ID,
			UserID:        userID,
			EmergencyType: req.EmergencyType,
			Urgency:       req.Urgency,
			Description:   req.Description,
			Location:      req.Location.ToLocation(),
			Timestamp:     timestamp,
			Status:        model.AlertStatusActive,
		}
		if err := s.store.Alerts().Create(ctx, alert); err != nil {
			broadcast.Failed++
			log.Error(err, "failed to deliver sos alert", "hospital_id", h.ID.String(),
				"correlation_id", broadcast.CorrelationID.String())
			continue
		}
		broadcast.Delivered = append(broadcast.Delivered, alert)
		s.publish(ctx, alert)
	}

	s.metrics.SOSDelivery("delivered", len(broadcast.Delivered))
	s.metrics.SOSDelivery("failed", broadcast.Failed)
	log.Info("sos broadcast",
		"correlation_id", broadcast.CorrelationID.String(),
		"delivered", len(broadcast.Delivered),
		"failed", broadcast.Failed,
	)
	return broadcast, nil
}

// UpdateAlert patches the acting hospital's own copy only.
func (s *Service) UpdateAlert(ctx context.Context, hospitalID, alertID uuid.UUID, req model.UpdateAlertRequest) (*model.SOSAlert, error) {
	alert, err := s.store.Alerts().Get(ctx, hospitalID, alertID)
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		switch *req.Status {
		case model.AlertStatusActive, model.AlertStatusAcknowledged, model.AlertStatusDispatched, model.AlertStatusResolved:
			alert.Status = *req.Status
		default:
			return nil, apperrors.BadRequest(fmt.Sprintf("unknown alert status %q", *req.Status), nil)
		}
	}
	if req.AmbulanceDispatched != nil {
		alert.AmbulanceDispatched = *req.AmbulanceDispatched
	}

	if err := s.store.Alerts().Update(ctx, alert); err != nil {
		return nil, err
	}
	s.logger.WithContext(ctx).Info("sos alert updated",
		"alert_id", alertID.String(),
		"status", string(alert.Status),
		"ambulance_dispatched", alert.AmbulanceDispatched,
	)
	return alert, nil
}

// ListAlerts returns the hospital's copies, newest first.
func (s *Service) ListAlerts(ctx context.Context, hospitalID uuid.UUID) ([]*model.SOSAlert, error) {
	alerts, err := s.store.Alerts().ListByHospital(ctx, hospitalID)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []*model.SOSAlert{}
	}
	return alerts, nil
}

// Stream delivers new alerts addressed to hospitalID until ctx ends.
func (s *Service) Stream(ctx context.Context, hospitalID uuid.UUID) (<-chan *model.SOSAlert, error) {
	if s.broker == nil {
		return nil, apperrors.UpstreamUnavailable("broker", nil)
	}
	raw, err := s.broker.Subscribe(ctx, messaging.ChannelSOSAlerts)
	if err != nil {
		return nil, apperrors.UpstreamUnavailable("broker", err)
	}

	out := make(chan *model.SOSAlert, 16)
	go func() {
		defer close(out)
		for payload := range raw {
			var msg struct {
				Type    string         `json:"type"`
				Payload model.SOSAlert `json:"payload"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil || msg.Type != EventAlertCreated {
				continue
			}
			if msg.Payload.HospitalID != hospitalID {
				continue
			}
			alert := msg.Payload
			select {
			case out <- &alert:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Service) publish(ctx context.Context, alert *model.SOSAlert) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, messaging.ChannelSOSAlerts, messaging.Message{Type: EventAlertCreated, Payload: alert}); err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to publish sos alert", "alert_id", alert.ID.String())
	}
}
