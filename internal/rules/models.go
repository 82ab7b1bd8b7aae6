package rules

import (
	"time"

	"github.com/google/uuid"
)

// RuleType determines at which pass of quote composition a rule applies.
type RuleType string

const (
	RuleTypeBaseRate           RuleType = "base_rate"
	RuleTypeDistanceMultiplier RuleType = "distance_multiplier"
	RuleTypeTimeMultiplier     RuleType = "time_multiplier"
	RuleTypeSurcharge          RuleType = "surcharge"
	RuleTypeDiscount           RuleType = "discount"

	// RuleTypeRefund rules are evaluated at cancellation time over a
	// hours_until_pickup context, not during quote composition.
	RuleTypeRefund RuleType = "refund"
)

// EvaluationOrder is the fixed pass order used during quote composition.
var EvaluationOrder = []RuleType{
	RuleTypeBaseRate,
	RuleTypeDistanceMultiplier,
	RuleTypeTimeMultiplier,
	RuleTypeSurcharge,
	RuleTypeDiscount,
}

// ServiceType is the trip shape a rule applies to.
type ServiceType string

const (
	ServiceOneWay    ServiceType = "ONE_WAY"
	ServiceRoundTrip ServiceType = "ROUNDTRIP"
	ServiceHourly    ServiceType = "HOURLY"
)

// ValidServiceType reports whether s is a known service type.
func ValidServiceType(s ServiceType) bool {
	switch s {
	case ServiceOneWay, ServiceRoundTrip, ServiceHourly:
		return true
	}
	return false
}

// CalcType is the closed set of calculation variants.
type CalcType string

const (
	CalcFixed      CalcType = "fixed"
	CalcPercentage CalcType = "percentage"
	CalcPerMile    CalcType = "per_mile"
	CalcPerMinute  CalcType = "per_minute"
	CalcPerHour    CalcType = "per_hour"
)

// Calculation is a tagged variant: the type selects how Value is applied to
// the running amount. Validated when the rule is saved, so evaluation never
// sees a malformed calculation.
type Calculation struct {
	Type  CalcType `json:"type"`
	Value float64  `json:"value"`
}

// Operator is the closed set of condition operators.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpBetween     Operator = "between"
)

// Condition tests one context fact. Value holds a scalar for equals and the
// numeric comparisons, a list for in, and an inclusive [low, high] pair for
// between.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// PricingRule is an admin-configured pricing adjustment. Rules are soft
// deactivated via IsActive rather than deleted, so trails referencing them
// stay resolvable.
type PricingRule struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	RuleType      RuleType    `json:"rule_type"`
	ServiceType   ServiceType `json:"service_type"`
	Priority      int         `json:"priority"` // 0-100, lower applied first
	IsActive      bool        `json:"is_active"`
	EffectiveFrom *time.Time  `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time  `json:"effective_to,omitempty"`
	Conditions    []Condition `json:"conditions"`
	Calculation   Calculation `json:"calculation"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// EffectiveAt reports whether the rule's effective window covers now. Both
// bounds are inclusive; an absent bound is open-ended.
func (r *PricingRule) EffectiveAt(now time.Time) bool {
	if r.EffectiveFrom != nil && now.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && now.After(*r.EffectiveTo) {
		return false
	}
	return true
}

// TrailEntry records one rule's contribution to a price.
type TrailEntry struct {
	RuleID uuid.UUID `json:"rule_id"`
	Name   string    `json:"name"`
	Delta  float64   `json:"delta"`
}

// Context is the flat bag of trip facts rules are evaluated against.
// Well-known fields: service_type, day_of_week, hour_of_day, is_weekend,
// is_holiday, distance_miles, duration_minutes, duration_hours.
type Context map[string]interface{}

// Snapshot is the rule set read once at the start of a compose call, so a
// concurrent rule edit cannot change pricing between passes.
type Snapshot struct {
	Rules    []PricingRule `json:"rules"`
	LoadedAt time.Time     `json:"loaded_at"`
}
