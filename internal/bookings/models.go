package bookings

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions is the legal state machine. COMPLETED and CANCELLED are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Passenger is the contact travelling on the booking.
type Passenger struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// ModificationRecord is one applied change to a booking. Records are
// append-only and ordered by AppliedAt.
type ModificationRecord struct {
	OldQuoteID uuid.UUID `json:"old_quote_id"`
	NewQuoteID uuid.UUID `json:"new_quote_id"`
	OldTotal   float64   `json:"old_total"`
	NewTotal   float64   `json:"new_total"`
	Note       string    `json:"note,omitempty"`
	AppliedAt  time.Time `json:"applied_at"`
}

// CancellationRecord captures the refund outcome of a cancellation.
type CancellationRecord struct {
	Reason       string    `json:"reason"`
	RefundPct    float64   `json:"refund_pct"`
	RefundAmount float64   `json:"refund_amount"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

// Booking ties a locked quote to a passenger and walks the lifecycle state
// machine. PickupAt and TotalAmount are denormalized from the active quote so
// policy checks and event payloads never need a quote read.
type Booking struct {
	ID               uuid.UUID            `json:"id"`
	UserID           uuid.UUID            `json:"user_id"`
	QuoteID          uuid.UUID            `json:"quote_id"`
	BookingReference string               `json:"booking_reference"`
	Status           Status               `json:"status"`
	Passenger        Passenger            `json:"passenger"`
	PickupAt         time.Time            `json:"pickup_at"`
	GratuityPct      float64              `json:"gratuity_pct"`
	GratuityAmount   float64              `json:"gratuity_amount"`
	TotalAmount      float64              `json:"total_amount"`
	PaymentIntentID  string               `json:"payment_intent_id,omitempty"`
	Modifications    []ModificationRecord `json:"modifications"`
	Cancellation     *CancellationRecord  `json:"cancellation,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// HoursUntilPickup is the (possibly negative) lead time before pickup.
func (b *Booking) HoursUntilPickup(now time.Time) float64 {
	return b.PickupAt.Sub(now).Hours()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
