// Package email sends notification email over SMTP.
package email

import (
	"context"
	"fmt"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender implements notification.EmailSender with gomail.
type Sender struct {
	from   string
	dialer dialer
}

func NewSender(cfg Config) *Sender {
	return &Sender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *Sender) SendEmail(ctx context.Context, e notification.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(buildMessage(s.from, e)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", e.To, err)
	}
	return nil
}

func buildMessage(from string, e notification.Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	switch {
	case e.Text != "" && e.HTML != "":
		m.SetBody("text/plain", e.Text)
		m.AddAlternative("text/html", e.HTML)
	case e.HTML != "":
		m.SetBody("text/html", e.HTML)
	default:
		m.SetBody("text/plain", e.Text)
	}
	return m
}
