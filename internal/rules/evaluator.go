package rules

import (
	"sort"
	"time"
)

// Result is the outcome of one evaluation pass.
type Result struct {
	Amount float64      `json:"amount"`
	Trail  []TrailEntry `json:"trail"`
}

// Apply runs one pass of rule evaluation: it selects the active rules of the
// given type whose effective window covers now and whose conditions all match
// the context, orders them by priority ascending with rule id as a
// deterministic tie-break, and folds their calculations over the running
// amount. Fixed adds a constant; percentage compounds against the current
// running amount; per_mile, per_minute and per_hour multiply the rule value
// by the corresponding context fact and add. Every application appends a
// trail entry with the rule's delta.
func Apply(snap *Snapshot, serviceType ServiceType, ruleType RuleType, ctx Context, baseAmount float64, now time.Time) Result {
	matched := make([]PricingRule, 0, 4)
	for _, rule := range snap.Rules {
		if rule.RuleType != ruleType || rule.ServiceType != serviceType {
			continue
		}
		if !rule.IsActive || !rule.EffectiveAt(now) {
			continue
		}
		if !conditionsMatch(rule.Conditions, ctx) {
			continue
		}
		matched = append(matched, rule)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	amount := baseAmount
	trail := make([]TrailEntry, 0, len(matched))
	for _, rule := range matched {
		delta := calculate(rule.Calculation, ctx, amount)
		amount += delta
		trail = append(trail, TrailEntry{RuleID: rule.ID, Name: rule.Name, Delta: delta})
	}

	return Result{Amount: amount, Trail: trail}
}

func calculate(calc Calculation, ctx Context, running float64) float64 {
	switch calc.Type {
	case CalcFixed:
		return calc.Value
	case CalcPercentage:
		return running * calc.Value / 100
	case CalcPerMile:
		return calc.Value * ctxFloat(ctx, "distance_miles")
	case CalcPerMinute:
		return calc.Value * ctxFloat(ctx, "duration_minutes")
	case CalcPerHour:
		return calc.Value * ctxFloat(ctx, "duration_hours")
	}
	// Unreachable for rules that passed save-time validation.
	return 0
}

// conditionsMatch reports whether every condition holds against the context.
// A rule with no conditions always matches.
func conditionsMatch(conditions []Condition, ctx Context) bool {
	for _, cond := range conditions {
		fact, ok := ctx[cond.Field]
		if !ok {
			return false
		}
		if !conditionMatches(cond, fact) {
			return false
		}
	}
	return true
}

func conditionMatches(cond Condition, fact interface{}) bool {
	switch cond.Operator {
	case OpEquals:
		return valuesEqual(fact, cond.Value)
	case OpGreaterThan:
		f, okF := toFloat(fact)
		v, okV := toFloat(cond.Value)
		return okF && okV && f > v
	case OpLessThan:
		f, okF := toFloat(fact)
		v, okV := toFloat(cond.Value)
		return okF && okV && f < v
	case OpIn:
		list, ok := cond.Value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range list {
			if valuesEqual(fact, item) {
				return true
			}
		}
		return false
	case OpBetween:
		pair, ok := cond.Value.([]interface{})
		if !ok || len(pair) != 2 {
			return false
		}
		f, okF := toFloat(fact)
		low, okL := toFloat(pair[0])
		high, okH := toFloat(pair[1])
		return okF && okL && okH && f >= low && f <= high
	}
	return false
}

// valuesEqual compares a context fact to a rule value. JSON decoding turns
// all numbers into float64, so numeric facts of any Go integer type must
// still compare equal.
func valuesEqual(fact, value interface{}) bool {
	if f, ok := toFloat(fact); ok {
		if v, okV := toFloat(value); okV {
			return f == v
		}
		return false
	}
	switch f := fact.(type) {
	case string:
		v, ok := value.(string)
		return ok && f == v
	case bool:
		v, ok := value.(bool)
		return ok && f == v
	}
	return fact == value
}

// ctxFloat reads a numeric fact from the context, zero when absent or
// non-numeric so a per-unit rule without its fact contributes nothing.
func ctxFloat(ctx Context, key string) float64 {
	v, _ := toFloat(ctx[key])
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
