// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"

	"github.com/sirupsen/logrus"
)

// DefaultDispatchTimeout bounds a single provider call.
const DefaultDispatchTimeout = 15 * time.Second

// DispatchOptions controls channel selection for one send.
type DispatchOptions struct {
	Preferred notification.Channel
	// NoFallback restricts the send to the preferred channel.
	NoFallback bool
}

// Sender is what workflow executors dispatch through.
type Sender interface {
	Send(ctx context.Context, v *volunteer.Volunteer, msg notification.Message, opts DispatchOptions) notification.Result
}

// Dispatcher sends a message on the preferred channel and falls back to
// the other channel when the first one is unusable or fails. Opt-outs are
// authoritative: an opted-out channel is never handed to its provider.
type Dispatcher struct {
	email   notification.EmailSender
	sms     notification.SMSSender
	timeout time.Duration
	logger  *logrus.Entry
}

// NewDispatcher builds a dispatcher. Either sender may be nil, which makes
// that channel report not_configured.
func NewDispatcher(email notification.EmailSender, sms notification.SMSSender, timeout time.Duration, logger *logrus.Entry) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Dispatcher{
		email:   email,
		sms:     sms,
		timeout: timeout,
		logger:  logger.WithField("component", "dispatcher"),
	}
}

// Send never returns an error; failures come back as a reason code.
func (d *Dispatcher) Send(ctx context.Context, v *volunteer.Volunteer, msg notification.Message, opts DispatchOptions) notification.Result {
	if v == nil {
		return notification.Result{Reason: notification.ReasonLookupFailed}
	}
	preferred := opts.Preferred
	if preferred == "" {
		preferred = notification.ChannelEmail
	}
	order := []notification.Channel{preferred}
	if !opts.NoFallback {
		order = append(order, secondaryOf(preferred))
	}

	reasons := make([]notification.Reason, 0, len(order))
	for _, ch := range order {
		err := d.try(ctx, ch, v, msg)
		if err == nil {
			return notification.Result{Sent: true, Channel: ch}
		}
		reason := notification.ReasonOf(err)
		reasons = append(reasons, reason)
		entry := d.logger.WithFields(logrus.Fields{
			"recipient_id": v.ID,
			"channel":      ch,
			"reason":       reason,
		})
		if reason == notification.ReasonSendFailed {
			entry.WithError(err).Warn("Dispatch attempt failed")
		} else {
			entry.Debug("Channel unusable for recipient")
		}
	}
	return notification.Result{Channel: preferred, Reason: summarize(reasons)}
}

func (d *Dispatcher) try(ctx context.Context, ch notification.Channel, v *volunteer.Volunteer, msg notification.Message) error {
	switch ch {
	case notification.ChannelSMS:
		if !v.Preferences.SMSAlerts {
			return notification.ErrOptedOut
		}
		to := volunteer.E164(v.Phone)
		if to == "" {
			return notification.ErrNoContactMethod
		}
		if d.sms == nil {
			return notification.ErrNotConfigured
		}
		body := msg.SMS
		if body == "" {
			body = msg.Text
		}
		return d.call(ctx, func(ctx context.Context) error {
			return d.sms.SendSMS(ctx, to, body)
		})
	case notification.ChannelEmail:
		if !v.Preferences.EmailAlerts {
			return notification.ErrOptedOut
		}
		if v.Email == "" {
			return notification.ErrNoContactMethod
		}
		if d.email == nil {
			return notification.ErrNotConfigured
		}
		return d.call(ctx, func(ctx context.Context) error {
			return d.email.SendEmail(ctx, notification.Email{
				To:      v.Email,
				Subject: msg.Subject,
				HTML:    msg.HTML,
				Text:    msg.Text,
			})
		})
	default:
		return fmt.Errorf("%w: unknown channel %q", notification.ErrNotConfigured, ch)
	}
}

// call runs one provider request under the dispatch timeout. A timeout is
// a send failure, not a hang.
func (d *Dispatcher) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx) }()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		if errors.Is(err, notification.ErrNotConfigured) {
			return err
		}
		return fmt.Errorf("%w: %v", notification.ErrSendFailed, err)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", notification.ErrSendFailed, ctx.Err())
	}
}

func secondaryOf(ch notification.Channel) notification.Channel {
	if ch == notification.ChannelSMS {
		return notification.ChannelEmail
	}
	return notification.ChannelSMS
}

// summarize picks the reason reported when no channel delivered.
func summarize(reasons []notification.Reason) notification.Reason {
	priority := []notification.Reason{
		notification.ReasonSendFailed,
		notification.ReasonOptedOut,
		notification.ReasonNotConfigured,
		notification.ReasonNoContactMethod,
	}
	for _, p := range priority {
		for _, r := range reasons {
			if r == p {
				return p
			}
		}
	}
	return notification.ReasonNoContactMethod
}
