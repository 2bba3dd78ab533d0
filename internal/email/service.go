package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer dialer
	from   string
}

func NewSMTPService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
