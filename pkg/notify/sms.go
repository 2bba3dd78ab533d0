// Package notify sends text messages through a Twilio-compatible Messages API.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lifeline-health/donor-api/pkg/metrics"
)

const collaborator = "sms"

type SMSSender interface {
	Send(ctx context.Context, phone, body string) error
}

type SMSConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	// ToPrefix is prepended to bare phone numbers, e.g. "whatsapp:+91".
	ToPrefix string
	Timeout  time.Duration
}

type twilioSender struct {
	http    *resty.Client
	cfg     SMSConfig
	metrics *metrics.Metrics
}

func NewSMSSender(cfg SMSConfig, m *metrics.Metrics) SMSSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &twilioSender{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout).
			SetBasicAuth(cfg.AccountSID, cfg.AuthToken),
		cfg:     cfg,
		metrics: m,
	}
}

// Address applies the configured prefix unless phone already carries one.
func (s *twilioSender) Address(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+") || strings.Contains(phone, ":") {
		return phone
	}
	return s.cfg.ToPrefix + phone
}

func (s *twilioSender) Send(ctx context.Context, phone, body string) error {
	if phone == "" {
		return fmt.Errorf("no phone number")
	}
	start := time.Now()
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"From": s.cfg.From,
			"To":   s.Address(phone),
			"Body": body,
		}).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", s.cfg.AccountSID))
	if err == nil && resp.IsError() {
		err = fmt.Errorf("messages api returned %d: %s", resp.StatusCode(), resp.String())
	}
	s.metrics.ObserveUpstream(collaborator, start, err)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
