package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/internal/repository"
	"github.com/lifeline-health/donor-api/internal/service/notification"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/messaging"
	"github.com/lifeline-health/donor-api/pkg/metrics"
)

type SOSNotifierConfig struct {
	RetryAttempts int
	RetryDelay    time.Duration
}

// SOSNotifier texts each hospital when its copy of an SOS alert is created.
type SOSNotifier struct {
	store    repository.Store
	broker   messaging.Broker
	notifier notification.Service
	config   SOSNotifierConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewSOSNotifier(
	store repository.Store,
	broker messaging.Broker,
	notifier notification.Service,
	config SOSNotifierConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *SOSNotifier {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	return &SOSNotifier{
		store:    store,
		broker:   broker,
		notifier: notifier,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start consumes alerts until ctx is cancelled or the subscription closes.
func (n *SOSNotifier) Start(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, messaging.ChannelSOSAlerts)
	if err != nil {
		return fmt.Errorf("failed to subscribe to sos alerts: %w", err)
	}

	n.logger.Info("Starting sos notifier")
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("Shutting down sos notifier")
			return nil
		case payload, ok := <-messages:
			if !ok {
				return nil
			}
			if err := n.handle(ctx, payload); err != nil {
				n.metrics.SOSDelivery("sms_failed", 1)
				n.logger.Error(err, "Failed to notify hospital")
				continue
			}
		}
	}
}

func (n *SOSNotifier) handle(ctx context.Context, payload []byte) error {
	var msg struct {
		Type    string         `json:"type"`
		Payload model.SOSAlert `json:"payload"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("failed to decode alert: %w", err)
	}
	alert := msg.Payload

	hospital, err := n.store.Accounts().Get(ctx, alert.HospitalID)
	if err != nil {
		return fmt.Errorf("failed to load hospital %s: %w", alert.HospitalID, err)
	}
	if hospital.Phone == "" {
		n.logger.Debug("hospital has no phone, skipping", "hospital_id", hospital.ID.String())
		return nil
	}

	note := &model.Notification{
		Channel:   model.ChannelSMS,
		Recipient: hospital.Phone,
		Content:   AlertText(&alert),
	}
	err = retry(ctx, n.config.RetryAttempts, n.config.RetryDelay, func() error {
		return n.notifier.Send(ctx, note)
	})
	if errors.Is(err, notification.ErrChannelDisabled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to send sms for alert %s: %w", alert.ID, err)
	}
	n.metrics.SOSDelivery("sms_sent", 1)
	return nil
}

// AlertText is the message body hospitals receive.
func AlertText(a *model.SOSAlert) string {
	text := fmt.Sprintf("SOS (%s): %s at %.5f,%.5f", a.Urgency, a.EmergencyType, a.Location.Latitude, a.Location.Longitude)
	if a.Location.City != "" {
		text += " (" + a.Location.City + ")"
	}
	if a.Description != "" {
		text += ". " + a.Description
	}
	return text
}

func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || errors.Is(err, notification.ErrChannelDisabled) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
