package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// QuoteComposedData is emitted when the composer prices a trip request.
type QuoteComposedData struct {
	QuoteID          uuid.UUID `json:"quote_id"`
	BookingReference string    `json:"booking_reference"`
	ServiceType      string    `json:"service_type"`
	PickupAddress    string    `json:"pickup_address"`
	DropoffAddress   string    `json:"dropoff_address,omitempty"`
	PickupAt         time.Time `json:"pickup_at"`
	Total            float64   `json:"total"`
	Currency         string    `json:"currency"`
	ValidUntil       time.Time `json:"valid_until"`
	ComposedAt       time.Time `json:"composed_at"`
}

// QuoteLockedData is emitted when a quote is consumed by a booking.
type QuoteLockedData struct {
	QuoteID          uuid.UUID `json:"quote_id"`
	BookingReference string    `json:"booking_reference"`
	Total            float64   `json:"total"`
	LockedAt         time.Time `json:"locked_at"`
}

// BookingCreatedData is emitted when a booking enters PENDING.
type BookingCreatedData struct {
	BookingID        uuid.UUID `json:"booking_id"`
	UserID           uuid.UUID `json:"user_id"`
	QuoteID          uuid.UUID `json:"quote_id"`
	BookingReference string    `json:"booking_reference"`
	TotalAmount      float64   `json:"total_amount"`
	PickupAt         time.Time `json:"pickup_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// BookingConfirmedData is emitted on PENDING -> CONFIRMED.
type BookingConfirmedData struct {
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// BookingStartedData is emitted on CONFIRMED -> IN_PROGRESS.
type BookingStartedData struct {
	BookingID uuid.UUID `json:"booking_id"`
	UserID    uuid.UUID `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

// BookingModifiedData is emitted when a modification is applied.
type BookingModifiedData struct {
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	OldQuoteID  uuid.UUID `json:"old_quote_id"`
	NewQuoteID  uuid.UUID `json:"new_quote_id"`
	TotalAmount float64   `json:"total_amount"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// BookingCancelledData is emitted on cancellation with the refund outcome.
type BookingCancelledData struct {
	BookingID    uuid.UUID `json:"booking_id"`
	UserID       uuid.UUID `json:"user_id"`
	Reason       string    `json:"reason"`
	RefundPct    float64   `json:"refund_pct"`
	RefundAmount float64   `json:"refund_amount"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

// BookingCompletedData is emitted when a trip finishes.
type BookingCompletedData struct {
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	TotalAmount float64   `json:"total_amount"`
	CompletedAt time.Time `json:"completed_at"`
}
