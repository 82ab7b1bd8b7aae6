package quotes

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/statelyrides/chauffeur/internal/calendar"
	"github.com/statelyrides/chauffeur/internal/directions"
	"github.com/statelyrides/chauffeur/internal/enhancements"
	"github.com/statelyrides/chauffeur/internal/rules"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/config"
	"github.com/statelyrides/chauffeur/pkg/validation"
)

// RuleSource supplies a consistent rule snapshot for one compose call.
type RuleSource interface {
	LoadSnapshot(ctx context.Context, serviceType rules.ServiceType) (*rules.Snapshot, error)
}

// CalendarSource supplies the availability calendar snapshot.
type CalendarSource interface {
	LoadSnapshot(ctx context.Context) (*calendar.Snapshot, error)
}

// Composer turns a trip request into a fully priced quote. Rule and calendar
// state are read once per call so nothing changes between passes, and the
// route oracle is called once with its result treated as immutable input.
type Composer struct {
	ruleSource     RuleSource
	calendarSource CalendarSource
	oracle         directions.Oracle
	addons         *enhancements.Calculator
	cfg            *config.PricingConfig
	now            func() time.Time
}

// NewComposer wires the quote composer.
func NewComposer(ruleSource RuleSource, calendarSource CalendarSource, oracle directions.Oracle, addons *enhancements.Calculator, cfg *config.PricingConfig) *Composer {
	return &Composer{
		ruleSource:     ruleSource,
		calendarSource: calendarSource,
		oracle:         oracle,
		addons:         addons,
		cfg:            cfg,
		now:            time.Now,
	}
}

// Compose validates the request, resolves the route, and runs the pricing
// passes in their fixed order: base_rate, distance_multiplier,
// time_multiplier, surcharge, discount, then tax and the airport fee.
func (c *Composer) Compose(ctx context.Context, req TripRequest) (*Quote, error) {
	start := time.Now()
	quote, err := c.compose(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	composeTotal.WithLabelValues(string(req.ServiceType), outcome).Inc()
	composeDuration.WithLabelValues(string(req.ServiceType)).Observe(time.Since(start).Seconds())

	return quote, err
}

func (c *Composer) compose(ctx context.Context, req TripRequest) (*Quote, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}

	ruleSnap, err := c.ruleSource.LoadSnapshot(ctx, req.ServiceType)
	if err != nil {
		return nil, err
	}
	calSnap, err := c.calendarSource.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	status := calendar.IsOpenAt(calSnap, req.PickupDateTime)
	if !status.Open {
		return nil, common.NewValidationError(fmt.Sprintf("pickup time is outside operating hours (%s)", status.Reason))
	}

	route, err := c.resolveRoute(ctx, req)
	if err != nil {
		return nil, err
	}
	if route.Miles() > c.cfg.ServiceRadiusMiles {
		return nil, common.NewOutOfServiceAreaError(fmt.Sprintf(
			"trip distance %.1f mi exceeds the %.0f mi service radius", route.Miles(), c.cfg.ServiceRadiusMiles))
	}

	holiday, isHoliday := calSnap.HolidayFor(calSnap.Localize(req.PickupDateTime))
	facts := c.buildFacts(req, route, isHoliday)

	now := c.now().UTC()
	breakdown, trail := c.price(ruleSnap, req, facts, holiday, isHoliday, now)

	addons, err := c.addons.Calculate(req.Enhancements, breakdown.Subtotal)
	if err != nil {
		return nil, err
	}

	quote := &Quote{
		ID:               uuid.New(),
		BookingReference: NewBookingReference(now),
		Request:          req,
		DistanceMiles:    round2(route.Miles()),
		DurationMinutes:  round2(route.Minutes()),
		Breakdown:        breakdown,
		Enhancements:     addons,
		Currency:         c.cfg.Currency,
		Trail:            trail,
		ValidUntil:       now.Add(c.cfg.QuoteTTL()),
		CreatedAt:        now,
	}

	return quote, nil
}

func (c *Composer) validate(req TripRequest) error {
	if !rules.ValidServiceType(req.ServiceType) {
		return common.NewValidationError(fmt.Sprintf("unknown service type %q", req.ServiceType))
	}
	if req.PickupDateTime.IsZero() {
		return common.NewValidationError("pickup_datetime is required")
	}
	if err := validation.ValidateCoordinates(req.Pickup.Latitude, req.Pickup.Longitude); err != nil {
		return common.NewValidationError("pickup: " + err.Error())
	}
	if req.Dropoff != nil {
		if err := validation.ValidateCoordinates(req.Dropoff.Latitude, req.Dropoff.Longitude); err != nil {
			return common.NewValidationError("dropoff: " + err.Error())
		}
	}

	switch req.ServiceType {
	case rules.ServiceOneWay:
		if req.Dropoff == nil {
			return common.NewValidationError("one-way trips require a dropoff location")
		}
	case rules.ServiceRoundTrip:
		if req.Dropoff == nil {
			return common.NewValidationError("roundtrip trips require a dropoff location")
		}
		if req.ReturnDateTime == nil {
			return common.NewValidationError("roundtrip trips require a return_datetime")
		}
		if !req.ReturnDateTime.After(req.PickupDateTime) {
			return common.NewValidationError("return_datetime must be after pickup_datetime")
		}
	case rules.ServiceHourly:
		if req.DurationHours == nil {
			return common.NewValidationError("hourly trips require duration_hours")
		}
		if *req.DurationHours < 2 || *req.DurationHours > 8 {
			return common.NewValidationError("duration_hours must be between 2 and 8")
		}
	}

	return nil
}

// resolveRoute performs the single oracle call for the quote. Hourly trips
// without a dropoff have no route; their pricing is driven by the booked
// hours instead.
func (c *Composer) resolveRoute(ctx context.Context, req TripRequest) (directions.RouteResult, error) {
	if req.Dropoff == nil {
		return directions.RouteResult{}, nil
	}

	route, err := c.oracle.Route(ctx, req.Pickup, *req.Dropoff)
	if err != nil {
		return directions.RouteResult{}, common.NewInternalError("failed to resolve trip route", err)
	}

	if req.ServiceType == rules.ServiceRoundTrip {
		route.Meters *= 2
		route.Seconds *= 2
	}

	return route, nil
}

func (c *Composer) buildFacts(req TripRequest, route directions.RouteResult, isHoliday bool) rules.Context {
	pickup := req.PickupDateTime
	weekday := int(pickup.Weekday())

	durationHours := route.Seconds / 3600
	durationMinutes := route.Minutes()
	if req.ServiceType == rules.ServiceHourly && req.DurationHours != nil {
		durationHours = float64(*req.DurationHours)
		durationMinutes = durationHours * 60
	}

	return rules.Context{
		"service_type":     string(req.ServiceType),
		"day_of_week":      weekday,
		"hour_of_day":      pickup.Hour(),
		"is_weekend":       weekday == 0 || weekday == 6,
		"is_holiday":       isHoliday,
		"is_airport":       req.Pickup.IsAirport || (req.Dropoff != nil && req.Dropoff.IsAirport),
		"distance_miles":   route.Miles(),
		"duration_minutes": durationMinutes,
		"duration_hours":   durationHours,
	}
}

func (c *Composer) price(snap *rules.Snapshot, req TripRequest, facts rules.Context, holiday calendar.Holiday, isHoliday bool, now time.Time) (Breakdown, []rules.TrailEntry) {
	var b Breakdown
	var trail []rules.TrailEntry

	base := rules.Apply(snap, req.ServiceType, rules.RuleTypeBaseRate, facts, 0, now)
	trail = append(trail, base.Trail...)
	b.BaseRate = round2(base.Amount)
	running := base.Amount

	dist := rules.Apply(snap, req.ServiceType, rules.RuleTypeDistanceMultiplier, facts, running, now)
	trail = append(trail, dist.Trail...)
	b.DistanceCharge = round2(dist.Amount - running)
	running = dist.Amount

	tc := rules.Apply(snap, req.ServiceType, rules.RuleTypeTimeMultiplier, facts, running, now)
	trail = append(trail, tc.Trail...)
	b.TimeCharge = round2(tc.Amount - running)
	running = tc.Amount

	sur := rules.Apply(snap, req.ServiceType, rules.RuleTypeSurcharge, facts, running, now)
	trail = append(trail, sur.Trail...)
	for i := range sur.Trail {
		entry := sur.Trail[i]
		b.Surcharges = append(b.Surcharges, ChargeLine{RuleID: &entry.RuleID, Label: entry.Name, Amount: round2(entry.Delta)})
	}
	running = sur.Amount

	// Calendar-driven holiday surcharge applies after rule surcharges, on the
	// surcharge-adjusted amount.
	if isHoliday && holiday.SurchargePct != nil && *holiday.SurchargePct > 0 {
		delta := running * *holiday.SurchargePct / 100
		b.Surcharges = append(b.Surcharges, ChargeLine{Label: fmt.Sprintf("Holiday surcharge: %s", holiday.Name), Amount: round2(delta)})
		running += delta
	}

	disc := rules.Apply(snap, req.ServiceType, rules.RuleTypeDiscount, facts, running, now)
	trail = append(trail, disc.Trail...)
	for i := range disc.Trail {
		entry := disc.Trail[i]
		b.Discounts = append(b.Discounts, ChargeLine{RuleID: &entry.RuleID, Label: entry.Name, Amount: round2(entry.Delta)})
	}
	running = disc.Amount

	b.Subtotal = round2(running)

	tax := round2(b.Subtotal * c.cfg.TaxRatePct / 100)
	b.TaxLines = append(b.TaxLines, ChargeLine{Label: fmt.Sprintf("Tax (%.2f%%)", c.cfg.TaxRatePct), Amount: tax})

	if req.Pickup.IsAirport || (req.Dropoff != nil && req.Dropoff.IsAirport) {
		b.AirportFee = round2(c.cfg.AirportFee)
	}

	b.Total = round2(b.Subtotal + tax + b.AirportFee)
	return b, trail
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
