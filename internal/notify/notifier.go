package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/internal/bookings"
	"github.com/statelyrides/chauffeur/pkg/logger"
)

// SMSSender delivers one SMS message.
type SMSSender interface {
	Send(to, body string) (string, error)
}

// EmailSender delivers one plain text email.
type EmailSender interface {
	Send(to, subject, body string) error
}

// Notifier sends booking messages to passengers. Every send runs in its own
// goroutine detached from the request lifecycle; failures are logged and
// never reach the caller. Either channel may be nil when disabled.
type Notifier struct {
	sms   SMSSender
	email EmailSender
}

// NewNotifier creates a notifier; pass nil for disabled channels.
func NewNotifier(sms SMSSender, email EmailSender) *Notifier {
	return &Notifier{sms: sms, email: email}
}

// BookingConfirmed tells the passenger their ride is confirmed.
func (n *Notifier) BookingConfirmed(ctx context.Context, b *bookings.Booking) {
	pickup := b.PickupAt.Format("Mon, Jan 2 at 3:04 PM MST")
	body := fmt.Sprintf("Hi %s, your ride %s is confirmed for %s. Total: $%.2f.",
		b.Passenger.Name, b.BookingReference, pickup, b.TotalAmount)
	subject := fmt.Sprintf("Ride %s confirmed", b.BookingReference)

	n.dispatch(ctx, b, subject, body)
}

// BookingCancelled tells the passenger about the cancellation and refund.
func (n *Notifier) BookingCancelled(ctx context.Context, b *bookings.Booking) {
	body := fmt.Sprintf("Hi %s, your ride %s has been cancelled.",
		b.Passenger.Name, b.BookingReference)
	if b.Cancellation != nil && b.Cancellation.RefundAmount > 0 {
		body = fmt.Sprintf("%s A refund of $%.2f (%.0f%%) is on its way.",
			body, b.Cancellation.RefundAmount, b.Cancellation.RefundPct)
	}
	subject := fmt.Sprintf("Ride %s cancelled", b.BookingReference)

	n.dispatch(ctx, b, subject, body)
}

func (n *Notifier) dispatch(ctx context.Context, b *bookings.Booking, subject, body string) {
	// Detach from the request context so an early response does not cancel
	// the send, but keep its values for correlated logs.
	detached := context.WithoutCancel(ctx)

	go func() {
		log := logger.WithContext(detached).With(
			zap.String("booking_id", b.ID.String()),
			zap.String("booking_reference", b.BookingReference),
		)

		if n.sms != nil && b.Passenger.Phone != "" {
			if sid, err := n.sms.Send(b.Passenger.Phone, body); err != nil {
				log.Warn("failed to send SMS", zap.Error(err))
			} else {
				log.Info("SMS sent", zap.String("message_sid", sid))
			}
		}

		if n.email != nil && b.Passenger.Email != "" {
			if err := n.email.Send(b.Passenger.Email, subject, body); err != nil {
				log.Warn("failed to send email", zap.Error(err))
			} else {
				log.Info("email sent", zap.String("to", b.Passenger.Email))
			}
		}
	}()
}
