package notification

import "context"

// Message is the rendered content of one notification. SMS carries the
// short body used on the SMS channel; Subject/HTML/Text feed email.
type Message struct {
	Subject string
	HTML    string
	Text    string
	SMS     string
}

// Email is a single outbound email.
type Email struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers email through a provider.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) error
}

// SMSSender delivers a text message to an E.164 number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Result is what a dispatch attempt produced. Reason is empty when Sent.
type Result struct {
	Sent    bool
	Channel Channel
	Reason  Reason
}
