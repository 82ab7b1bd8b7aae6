package enhancements

import (
	"fmt"
	"math"
	"sort"

	"github.com/statelyrides/chauffeur/pkg/common"
)

// Calculator prices optional add-ons. Each election contributes an
// independent additive line; the rule engine is never involved because these
// are customer choices, not market-driven adjustments.
type Calculator struct {
	prices PriceBook
}

// NewCalculator creates a calculator with the given price book.
func NewCalculator(prices PriceBook) *Calculator {
	return &Calculator{prices: prices}
}

// Calculate prices the elected add-ons. baseAmount is the booking's base
// trip amount, used only for the vehicle upgrade percentage.
func (c *Calculator) Calculate(req Request, baseAmount float64) (Breakdown, error) {
	var b Breakdown

	if req.LuggageCount < 0 || req.ExtraStops < 0 {
		return b, common.NewValidationError("luggage_count and extra_stops must not be negative")
	}
	if req.ExtraStops > c.prices.MaxExtraStops {
		return b, common.NewValidationError(fmt.Sprintf("at most %d extra stops are allowed", c.prices.MaxExtraStops))
	}

	if req.TripProtection {
		b.add(Line{Code: "trip_protection", Label: "Trip protection", Quantity: 1, Amount: c.prices.TripProtection})
	}

	if req.MeetAndGreet {
		b.add(Line{Code: "meet_and_greet", Label: "Meet and greet", Quantity: 1, Amount: c.prices.MeetAndGreet})
	}

	if extra := req.LuggageCount - c.prices.FreeLuggage; extra > 0 {
		b.add(Line{
			Code:     "extra_luggage",
			Label:    fmt.Sprintf("Extra luggage (%d bags beyond %d free)", extra, c.prices.FreeLuggage),
			Quantity: extra,
			Amount:   float64(extra) * c.prices.PerExtraBag,
		})
	}

	for _, item := range req.SpecialItems {
		price, ok := c.prices.SpecialHandling[item]
		if !ok {
			return Breakdown{}, common.NewValidationError(fmt.Sprintf("unknown special handling item %q", item))
		}
		b.add(Line{
			Code:     "special_handling",
			Label:    fmt.Sprintf("Special handling: %s", item),
			Quantity: 1,
			Amount:   price,
		})
	}

	if req.VehicleUpgrade != "" {
		pct, ok := c.prices.UpgradePct[req.VehicleUpgrade]
		if !ok {
			return Breakdown{}, common.NewValidationError(fmt.Sprintf("unknown vehicle upgrade %q", req.VehicleUpgrade))
		}
		// Percentage of the base booking amount, not of the enhancement
		// subtotal.
		b.add(Line{
			Code:     "vehicle_upgrade",
			Label:    fmt.Sprintf("Vehicle upgrade: %s", req.VehicleUpgrade),
			Quantity: 1,
			Amount:   baseAmount * pct / 100,
		})
	}

	// Deterministic line order for map-backed elections.
	seatTypes := make([]string, 0, len(req.ChildSeats))
	for seatType := range req.ChildSeats {
		seatTypes = append(seatTypes, seatType)
	}
	sort.Strings(seatTypes)
	for _, seatType := range seatTypes {
		count := req.ChildSeats[seatType]
		if count <= 0 {
			continue
		}
		price, ok := c.prices.ChildSeat[seatType]
		if !ok {
			return Breakdown{}, common.NewValidationError(fmt.Sprintf("unknown child seat type %q", seatType))
		}
		b.add(Line{
			Code:     "child_seat",
			Label:    fmt.Sprintf("Child seat: %s", seatType),
			Quantity: count,
			Amount:   float64(count) * price,
		})
	}

	if req.ExtraStops > 0 {
		b.add(Line{
			Code:     "extra_stops",
			Label:    fmt.Sprintf("Additional stops (%d)", req.ExtraStops),
			Quantity: req.ExtraStops,
			Amount:   float64(req.ExtraStops) * c.prices.PerExtraStop,
		})
	}

	b.Total = round2(b.Total)
	return b, nil
}

func (b *Breakdown) add(line Line) {
	line.Amount = round2(line.Amount)
	b.Lines = append(b.Lines, line)
	b.Total += line.Amount
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
