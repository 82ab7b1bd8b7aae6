package enhancements

// Request captures the customer's optional add-on elections for one trip.
type Request struct {
	TripProtection bool           `json:"trip_protection"`
	MeetAndGreet   bool           `json:"meet_and_greet"`
	LuggageCount   int            `json:"luggage_count" validate:"min=0,max=20"`
	SpecialItems   []string       `json:"special_items"` // e.g. ski, golf, bicycle
	VehicleUpgrade string         `json:"vehicle_upgrade" validate:"omitempty,vehicle_class"`
	ChildSeats     map[string]int `json:"child_seats"` // seat type -> count
	ExtraStops     int            `json:"extra_stops" validate:"min=0"`
}

// Line is one add-on's contribution to the total.
type Line struct {
	Code     string  `json:"code"`
	Label    string  `json:"label"`
	Quantity int     `json:"quantity"`
	Amount   float64 `json:"amount"`
}

// Breakdown is the full enhancement cost result. Lines are independent and
// additive; no line depends on another.
type Breakdown struct {
	Total float64 `json:"total"`
	Lines []Line  `json:"lines"`
}

// PriceBook holds the flat prices and thresholds for every add-on. A zero
// PriceBook is not usable; construct with DefaultPriceBook and override.
type PriceBook struct {
	TripProtection  float64            `json:"trip_protection"`
	MeetAndGreet    float64            `json:"meet_and_greet"`
	FreeLuggage     int                `json:"free_luggage"`
	PerExtraBag     float64            `json:"per_extra_bag"`
	SpecialHandling map[string]float64 `json:"special_handling"`
	UpgradePct      map[string]float64 `json:"upgrade_pct"` // vehicle class -> % of base amount
	ChildSeat       map[string]float64 `json:"child_seat"`  // seat type -> per-seat price
	PerExtraStop    float64            `json:"per_extra_stop"`
	MaxExtraStops   int                `json:"max_extra_stops"`
}

// DefaultPriceBook returns the standard add-on pricing.
func DefaultPriceBook() PriceBook {
	return PriceBook{
		TripProtection: 15.00,
		MeetAndGreet:   25.00,
		FreeLuggage:    2,
		PerExtraBag:    5.00,
		SpecialHandling: map[string]float64{
			"ski":        10.00,
			"golf":       10.00,
			"bicycle":    20.00,
			"wheelchair": 0.00,
			"pet":        15.00,
		},
		UpgradePct: map[string]float64{
			"suv":      25.0,
			"sprinter": 50.0,
			"stretch":  75.0,
		},
		ChildSeat: map[string]float64{
			"infant":  12.00,
			"toddler": 12.00,
			"booster": 8.00,
		},
		PerExtraStop:  10.00,
		MaxExtraStops: 3,
	}
}
