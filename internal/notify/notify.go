package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDeliveryFailed wraps every delivery failure reported by a Sender.
var ErrDeliveryFailed = errors.New("email delivery failed")

// Message is a single outbound HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers email. Failures are recoverable: callers persist state first.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records deliveries in the log instead of sending them. Message
// bodies carry codes and links, so only the envelope is logged.
type LogSender struct{}

// Send logs the recipient and subject.
func (LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("email delivery skipped, no mail transport configured", "to", msg.To, "subject", msg.Subject)
	return nil
}
