package payments

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"

	"github.com/statelyrides/chauffeur/internal/bookings"
)

// StripeProcessor creates PaymentIntents for booking totals. Authorization
// and capture are handled by the payment flow downstream; booking code only
// records the intent ID.
type StripeProcessor struct {
	apiKey string
}

// NewStripeProcessor creates a new Stripe payment processor
func NewStripeProcessor(apiKey string) *StripeProcessor {
	stripe.Key = apiKey
	return &StripeProcessor{apiKey: apiKey}
}

// CreatePaymentIntent opens a PaymentIntent for the booking total.
func (s *StripeProcessor) CreatePaymentIntent(_ context.Context, b *bookings.Booking, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toCents(b.TotalAmount)),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(fmt.Sprintf("Chauffeured ride %s", b.BookingReference)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("booking_id", b.ID.String())
	params.AddMetadata("booking_reference", b.BookingReference)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent: %w", err)
	}

	return pi.ID, nil
}

// RefundPaymentIntent issues a partial or full refund against an intent.
func (s *StripeProcessor) RefundPaymentIntent(_ context.Context, paymentIntentID string, amount float64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(toCents(amount)),
	}

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create refund: %w", err)
	}

	return r.ID, nil
}

// toCents converts a dollar amount to Stripe's integer cents.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
