package quotes

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/statelyrides/chauffeur/internal/directions"
	"github.com/statelyrides/chauffeur/internal/enhancements"
	"github.com/statelyrides/chauffeur/internal/rules"
)

// TripRequest is the full set of inputs that produce a quote. Stored with the
// quote so a refresh can recompose from the same inputs.
type TripRequest struct {
	ServiceType    rules.ServiceType    `json:"service_type"`
	Pickup         directions.Location  `json:"pickup"`
	Dropoff        *directions.Location `json:"dropoff,omitempty"`
	PickupDateTime time.Time            `json:"pickup_datetime"`
	ReturnDateTime *time.Time           `json:"return_datetime,omitempty"`
	DurationHours  *int                 `json:"duration_hours,omitempty"`
	Enhancements   enhancements.Request `json:"enhancements"`
}

// ChargeLine is one applied surcharge, discount or tax.
type ChargeLine struct {
	RuleID *uuid.UUID `json:"rule_id,omitempty"`
	Label  string     `json:"label"`
	Amount float64    `json:"amount"`
}

// Breakdown is the ordered price composition of a quote. All amounts are
// rounded to cents.
type Breakdown struct {
	BaseRate       float64      `json:"base_rate"`
	DistanceCharge float64      `json:"distance_charge"`
	TimeCharge     float64      `json:"time_charge"`
	Surcharges     []ChargeLine `json:"surcharges"`
	Discounts      []ChargeLine `json:"discounts"`
	Subtotal       float64      `json:"subtotal"`
	TaxLines       []ChargeLine `json:"tax_lines"`
	AirportFee     float64      `json:"airport_fee"`
	Total          float64      `json:"total"`
}

// Quote is an immutable, time-limited priced trip proposal. A changed input
// produces a new quote; nothing mutates an existing one except the lock flag.
type Quote struct {
	ID               uuid.UUID              `json:"id"`
	BookingReference string                 `json:"booking_reference"`
	Request          TripRequest            `json:"request"`
	DistanceMiles    float64                `json:"distance_miles"`
	DurationMinutes  float64                `json:"duration_minutes"`
	Breakdown        Breakdown              `json:"breakdown"`
	Enhancements     enhancements.Breakdown `json:"enhancements"`
	Currency         string                 `json:"currency"`
	Trail            []rules.TrailEntry     `json:"trail"`
	ValidUntil       time.Time              `json:"valid_until"`
	Locked           bool                   `json:"locked"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Expired reports whether the quote's validity window has passed.
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ValidUntil)
}

// GrandTotal is the trip total plus enhancement costs, the amount a booking
// starts from before gratuity.
func (q *Quote) GrandTotal() float64 {
	return q.Breakdown.Total + q.Enhancements.Total
}

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewBookingReference mints a customer-facing reference like
// SR-20260831-K7M2QD. The alphabet omits easily confused characters.
func NewBookingReference(now time.Time) string {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// fall back to a time-derived index.
			suffix[i] = referenceAlphabet[int(now.UnixNano()>>uint(i*5))%len(referenceAlphabet)]
			continue
		}
		suffix[i] = referenceAlphabet[n.Int64()]
	}
	return fmt.Sprintf("SR-%s-%s", now.Format("20060102"), suffix)
}
