package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRule(name string, ruleType RuleType, priority int, calc Calculation, conds ...Condition) PricingRule {
	return PricingRule{
		ID:          uuid.New(),
		Name:        name,
		RuleType:    ruleType,
		ServiceType: ServiceOneWay,
		Priority:    priority,
		IsActive:    true,
		Conditions:  conds,
		Calculation: calc,
	}
}

func TestApply_Deterministic(t *testing.T) {
	snap := &Snapshot{Rules: []PricingRule{
		newRule("base", RuleTypeBaseRate, 0, Calculation{Type: CalcFixed, Value: 20}),
		newRule("weekend bump", RuleTypeBaseRate, 10, Calculation{Type: CalcPercentage, Value: 10}),
	}}
	ctx := Context{"distance_miles": 10.0}
	now := time.Now()

	first := Apply(snap, ServiceOneWay, RuleTypeBaseRate, ctx, 0, now)
	for i := 0; i < 20; i++ {
		again := Apply(snap, ServiceOneWay, RuleTypeBaseRate, ctx, 0, now)
		assert.Equal(t, first, again)
	}
	assert.InDelta(t, 22.0, first.Amount, 1e-9)
}

func TestApply_PriorityOrderingAndCompounding(t *testing.T) {
	r1 := newRule("fuel surcharge", RuleTypeSurcharge, 1, Calculation{Type: CalcFixed, Value: 10})
	r2 := newRule("peak surcharge", RuleTypeSurcharge, 2, Calculation{Type: CalcPercentage, Value: 50})

	snap := &Snapshot{Rules: []PricingRule{r2, r1}} // store order deliberately reversed
	res := Apply(snap, ServiceOneWay, RuleTypeSurcharge, Context{}, 100, time.Now())

	require.Len(t, res.Trail, 2)
	assert.Equal(t, "fuel surcharge", res.Trail[0].Name)
	assert.Equal(t, "peak surcharge", res.Trail[1].Name)

	// (100 + 10) * 1.5, not 100*1.5 + 10
	assert.InDelta(t, 165.0, res.Amount, 1e-9)

	// Flipping the priorities changes the result: compounding percentages are
	// not commutative with fixed adds.
	r1.Priority, r2.Priority = 2, 1
	snap = &Snapshot{Rules: []PricingRule{r1, r2}}
	flipped := Apply(snap, ServiceOneWay, RuleTypeSurcharge, Context{}, 100, time.Now())
	assert.InDelta(t, 160.0, flipped.Amount, 1e-9)
	assert.NotEqual(t, res.Amount, flipped.Amount)
}

func TestApply_PriorityTieBreaksOnID(t *testing.T) {
	a := newRule("alpha", RuleTypeSurcharge, 5, Calculation{Type: CalcFixed, Value: 1})
	b := newRule("beta", RuleTypeSurcharge, 5, Calculation{Type: CalcFixed, Value: 2})

	res1 := Apply(&Snapshot{Rules: []PricingRule{a, b}}, ServiceOneWay, RuleTypeSurcharge, Context{}, 0, time.Now())
	res2 := Apply(&Snapshot{Rules: []PricingRule{b, a}}, ServiceOneWay, RuleTypeSurcharge, Context{}, 0, time.Now())

	assert.Equal(t, res1.Trail, res2.Trail)
}

func TestApply_EffectiveWindowBoundaryInclusive(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := newRule("summer rate", RuleTypeBaseRate, 0, Calculation{Type: CalcFixed, Value: 30})
	rule.EffectiveFrom = &at
	snap := &Snapshot{Rules: []PricingRule{rule}}

	atFrom := Apply(snap, ServiceOneWay, RuleTypeBaseRate, Context{}, 0, at)
	assert.Len(t, atFrom.Trail, 1, "rule must match at exactly effective_from")

	before := Apply(snap, ServiceOneWay, RuleTypeBaseRate, Context{}, 0, at.Add(-time.Second))
	assert.Empty(t, before.Trail, "rule must not match one second before effective_from")
}

func TestApply_EffectiveToInclusive(t *testing.T) {
	until := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
	rule := newRule("june promo", RuleTypeDiscount, 0, Calculation{Type: CalcPercentage, Value: -10})
	rule.EffectiveTo = &until
	snap := &Snapshot{Rules: []PricingRule{rule}}

	assert.Len(t, Apply(snap, ServiceOneWay, RuleTypeDiscount, Context{}, 100, until).Trail, 1)
	assert.Empty(t, Apply(snap, ServiceOneWay, RuleTypeDiscount, Context{}, 100, until.Add(time.Second)).Trail)
}

func TestApply_InactiveAndWrongTypeSkipped(t *testing.T) {
	inactive := newRule("disabled", RuleTypeSurcharge, 0, Calculation{Type: CalcFixed, Value: 100})
	inactive.IsActive = false
	wrongType := newRule("discount", RuleTypeDiscount, 0, Calculation{Type: CalcFixed, Value: -5})
	wrongService := newRule("hourly only", RuleTypeSurcharge, 0, Calculation{Type: CalcFixed, Value: 7})
	wrongService.ServiceType = ServiceHourly

	snap := &Snapshot{Rules: []PricingRule{inactive, wrongType, wrongService}}
	res := Apply(snap, ServiceOneWay, RuleTypeSurcharge, Context{}, 50, time.Now())

	assert.Empty(t, res.Trail)
	assert.InDelta(t, 50.0, res.Amount, 1e-9)
}

func TestApply_ConditionOperators(t *testing.T) {
	ctx := Context{
		"day_of_week":    5,
		"hour_of_day":    22,
		"distance_miles": 42.0,
		"is_holiday":     true,
		"service_type":   "ONE_WAY",
	}

	tests := []struct {
		name  string
		cond  Condition
		match bool
	}{
		{"equals number", Condition{Field: "day_of_week", Operator: OpEquals, Value: float64(5)}, true},
		{"equals number mismatch", Condition{Field: "day_of_week", Operator: OpEquals, Value: float64(6)}, false},
		{"equals bool", Condition{Field: "is_holiday", Operator: OpEquals, Value: true}, true},
		{"equals string", Condition{Field: "service_type", Operator: OpEquals, Value: "ONE_WAY"}, true},
		{"greater_than", Condition{Field: "distance_miles", Operator: OpGreaterThan, Value: float64(40)}, true},
		{"greater_than equal is false", Condition{Field: "distance_miles", Operator: OpGreaterThan, Value: float64(42)}, false},
		{"less_than", Condition{Field: "hour_of_day", Operator: OpLessThan, Value: float64(23)}, true},
		{"in", Condition{Field: "day_of_week", Operator: OpIn, Value: []interface{}{float64(5), float64(6)}}, true},
		{"in miss", Condition{Field: "day_of_week", Operator: OpIn, Value: []interface{}{float64(0), float64(6)}}, false},
		{"between inclusive low", Condition{Field: "hour_of_day", Operator: OpBetween, Value: []interface{}{float64(22), float64(23)}}, true},
		{"between inclusive high", Condition{Field: "hour_of_day", Operator: OpBetween, Value: []interface{}{float64(20), float64(22)}}, true},
		{"between outside", Condition{Field: "hour_of_day", Operator: OpBetween, Value: []interface{}{float64(0), float64(6)}}, false},
		{"unknown field never matches", Condition{Field: "temperature", Operator: OpEquals, Value: float64(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := newRule("probe", RuleTypeSurcharge, 0, Calculation{Type: CalcFixed, Value: 1}, tt.cond)
			res := Apply(&Snapshot{Rules: []PricingRule{rule}}, ServiceOneWay, RuleTypeSurcharge, ctx, 0, time.Now())
			if tt.match {
				assert.Len(t, res.Trail, 1)
			} else {
				assert.Empty(t, res.Trail)
			}
		})
	}
}

func TestApply_AllConditionsMustMatch(t *testing.T) {
	rule := newRule("friday night", RuleTypeSurcharge, 0, Calculation{Type: CalcPercentage, Value: 15},
		Condition{Field: "day_of_week", Operator: OpEquals, Value: float64(5)},
		Condition{Field: "hour_of_day", Operator: OpBetween, Value: []interface{}{float64(18), float64(23)}},
	)
	snap := &Snapshot{Rules: []PricingRule{rule}}

	match := Apply(snap, ServiceOneWay, RuleTypeSurcharge, Context{"day_of_week": 5, "hour_of_day": 20}, 100, time.Now())
	assert.Len(t, match.Trail, 1)

	partial := Apply(snap, ServiceOneWay, RuleTypeSurcharge, Context{"day_of_week": 5, "hour_of_day": 9}, 100, time.Now())
	assert.Empty(t, partial.Trail)
}

func TestApply_PerUnitCalculations(t *testing.T) {
	ctx := Context{"distance_miles": 12.5, "duration_minutes": 90.0, "duration_hours": 3.0}
	snap := &Snapshot{Rules: []PricingRule{
		newRule("per mile", RuleTypeDistanceMultiplier, 1, Calculation{Type: CalcPerMile, Value: 2}),
		newRule("per minute", RuleTypeDistanceMultiplier, 2, Calculation{Type: CalcPerMinute, Value: 0.5}),
		newRule("per hour", RuleTypeDistanceMultiplier, 3, Calculation{Type: CalcPerHour, Value: 40}),
	}}

	res := Apply(snap, ServiceOneWay, RuleTypeDistanceMultiplier, ctx, 0, time.Now())
	require.Len(t, res.Trail, 3)
	assert.InDelta(t, 25.0, res.Trail[0].Delta, 1e-9)
	assert.InDelta(t, 45.0, res.Trail[1].Delta, 1e-9)
	assert.InDelta(t, 120.0, res.Trail[2].Delta, 1e-9)
	assert.InDelta(t, 190.0, res.Amount, 1e-9)
}

func TestApply_PerUnitMissingFactAddsNothing(t *testing.T) {
	snap := &Snapshot{Rules: []PricingRule{
		newRule("per mile", RuleTypeDistanceMultiplier, 1, Calculation{Type: CalcPerMile, Value: 2}),
	}}

	res := Apply(snap, ServiceOneWay, RuleTypeDistanceMultiplier, Context{}, 50, time.Now())
	require.Len(t, res.Trail, 1)
	assert.InDelta(t, 0.0, res.Trail[0].Delta, 1e-9)
	assert.InDelta(t, 50.0, res.Amount, 1e-9)
}

func TestApply_NoConditionsAlwaysMatches(t *testing.T) {
	rule := newRule("flat base", RuleTypeBaseRate, 0, Calculation{Type: CalcFixed, Value: 20})
	res := Apply(&Snapshot{Rules: []PricingRule{rule}}, ServiceOneWay, RuleTypeBaseRate, Context{}, 0, time.Now())
	require.Len(t, res.Trail, 1)
	assert.InDelta(t, 20.0, res.Amount, 1e-9)
}
