// Package sms sends text messages through Twilio.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
}

type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender implements notification.SMSSender. Calls go through a circuit
// breaker; while it is open every send fails at once and the dispatcher
// falls back to email.
type Sender struct {
	api     messageAPI
	from    string
	breaker *gobreaker.CircuitBreaker
}

func NewSender(cfg Config, logger *logrus.Entry) *Sender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newSender(client.Api, cfg.From, logger)
}

func newSender(api messageAPI, from string, logger *logrus.Entry) *Sender {
	entry := logger.WithField("component", "sms")
	return &Sender{
		api:  api,
		from: from,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "twilio",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				entry.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("SMS circuit breaker state changed")
			},
		}),
	}
}

func (s *Sender) SendSMS(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		params := &openapi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(s.from)
		params.SetBody(body)
		return s.api.CreateMessage(params)
	})
	if err != nil {
		return fmt.Errorf("failed to send sms to %s: %w", to, err)
	}
	return nil
}
