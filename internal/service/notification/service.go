package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/lifeline-health/donor-api/internal/email"
	"github.com/lifeline-health/donor-api/internal/model"
	"github.com/lifeline-health/donor-api/pkg/logger"
	"github.com/lifeline-health/donor-api/pkg/notify"
)

// ErrChannelDisabled is returned for a channel with no configured sender.
var ErrChannelDisabled = errors.New("notification channel disabled")

type Service interface {
	Send(ctx context.Context, notification *model.Notification) error
}

type service struct {
	sms    notify.SMSSender
	email  email.Service
	logger *logger.Logger
}

// NewService accepts nil senders; their channel is then disabled.
func NewService(sms notify.SMSSender, emailSvc email.Service, log *logger.Logger) Service {
	return &service{sms: sms, email: emailSvc, logger: log}
}

// Send delivers one message once. Delivery is best effort; nothing is retried.
func (s *service) Send(ctx context.Context, notification *model.Notification) error {
	if err := validateNotification(notification); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	var err error
	switch notification.Channel {
	case model.ChannelSMS:
		if s.sms == nil {
			return ErrChannelDisabled
		}
		err = s.sms.Send(ctx, notification.Recipient, notification.Content)
	case model.ChannelEmail:
		if s.email == nil {
			return ErrChannelDisabled
		}
		err = s.email.SendCustom(ctx, notification.Recipient, notification.Subject, notification.Content)
	default:
		err = fmt.Errorf("unsupported channel: %s", notification.Channel)
	}
	if err != nil {
		return err
	}

	s.logger.WithContext(ctx).Debug("notification sent", "channel", string(notification.Channel))
	return nil
}

func validateNotification(notification *model.Notification) error {
	if notification.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if notification.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if notification.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}
