package rules

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/pkg/cache"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/logger"
)

// Service manages pricing rules. Structural validation happens here at save
// time, so the evaluator never has to handle malformed rules.
type Service struct {
	repo  *Repository
	cache *cache.Manager
}

// NewService creates a new rules service
func NewService(repo *Repository, cacheManager *cache.Manager) *Service {
	return &Service{repo: repo, cache: cacheManager}
}

// LoadSnapshot reads the effective rule set for a service type once. Callers
// composing a quote hold the snapshot for the whole calculation so rules
// cannot change between passes.
func (s *Service) LoadSnapshot(ctx context.Context, serviceType ServiceType) (*Snapshot, error) {
	if s.cache != nil {
		var snap Snapshot
		if err := s.cache.Get(ctx, cache.Keys.RuleSnapshot(string(serviceType)), &snap); err == nil {
			return &snap, nil
		}
	}

	now := time.Now().UTC()
	effective, err := s.repo.ListEffective(ctx, serviceType, now)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Rules: effective, LoadedAt: now}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.Keys.RuleSnapshot(string(serviceType)), snap, cache.TTL.Short()); err != nil {
			logger.WithContext(ctx).Warn("failed to cache rule snapshot", zap.Error(err))
		}
	}

	return snap, nil
}

// CreateRule validates and persists a new rule
func (s *Service) CreateRule(ctx context.Context, rule *PricingRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}
	rule.ID = uuid.New()

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return err
	}
	s.invalidateSnapshots(ctx)
	return nil
}

// UpdateRule validates and rewrites an existing rule
func (s *Service) UpdateRule(ctx context.Context, rule *PricingRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return err
	}
	s.invalidateSnapshots(ctx)
	return nil
}

// DeactivateRule soft-deactivates a rule
func (s *Service) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetRuleActive(ctx, id, false); err != nil {
		return err
	}
	s.invalidateSnapshots(ctx)
	return nil
}

// ActivateRule re-activates a rule
func (s *Service) ActivateRule(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetRuleActive(ctx, id, true); err != nil {
		return err
	}
	s.invalidateSnapshots(ctx)
	return nil
}

// GetRule fetches a single rule
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*PricingRule, error) {
	return s.repo.GetRuleByID(ctx, id)
}

// ListRules returns a page of rules, optionally filtered by service type
func (s *Service) ListRules(ctx context.Context, serviceType *ServiceType, limit, offset int) ([]PricingRule, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListRules(ctx, serviceType, limit, offset)
}

func (s *Service) invalidateSnapshots(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := []string{
		cache.Keys.RuleSnapshot(string(ServiceOneWay)),
		cache.Keys.RuleSnapshot(string(ServiceRoundTrip)),
		cache.Keys.RuleSnapshot(string(ServiceHourly)),
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.WithContext(ctx).Warn("failed to invalidate rule snapshots", zap.Error(err))
	}
}

// validateRule enforces the structural invariants for a rule.
func validateRule(rule *PricingRule) error {
	if rule.Name == "" {
		return common.NewRuleConfigError("rule name is required")
	}

	switch rule.RuleType {
	case RuleTypeBaseRate, RuleTypeDistanceMultiplier, RuleTypeTimeMultiplier, RuleTypeSurcharge, RuleTypeDiscount, RuleTypeRefund:
	default:
		return common.NewRuleConfigError(fmt.Sprintf("unknown rule type %q", rule.RuleType))
	}

	if !ValidServiceType(rule.ServiceType) {
		return common.NewRuleConfigError(fmt.Sprintf("unknown service type %q", rule.ServiceType))
	}

	if rule.Priority < 0 || rule.Priority > 100 {
		return common.NewRuleConfigError("priority must be between 0 and 100")
	}

	if rule.EffectiveFrom != nil && rule.EffectiveTo != nil && rule.EffectiveTo.Before(*rule.EffectiveFrom) {
		return common.NewRuleConfigError("effective_to must not precede effective_from")
	}

	if err := validateCalculation(rule.Calculation); err != nil {
		return err
	}

	for i, cond := range rule.Conditions {
		if err := validateCondition(cond); err != nil {
			return common.NewRuleConfigError(fmt.Sprintf("condition %d: %s", i, err.Error()))
		}
	}

	return nil
}

func validateCalculation(calc Calculation) error {
	switch calc.Type {
	case CalcFixed, CalcPercentage, CalcPerMile, CalcPerMinute, CalcPerHour:
	default:
		return common.NewRuleConfigError(fmt.Sprintf("unknown calculation type %q", calc.Type))
	}

	if math.IsNaN(calc.Value) || math.IsInf(calc.Value, 0) {
		return common.NewRuleConfigError("calculation value must be a finite number")
	}
	if calc.Type == CalcPercentage && calc.Value < -100 {
		return common.NewRuleConfigError("percentage below -100 would produce a negative amount")
	}

	return nil
}

func validateCondition(cond Condition) error {
	if cond.Field == "" {
		return fmt.Errorf("field is required")
	}

	switch cond.Operator {
	case OpEquals:
		switch cond.Value.(type) {
		case string, bool, float64, int:
			return nil
		}
		return fmt.Errorf("equals requires a scalar value")
	case OpGreaterThan, OpLessThan:
		if _, ok := toFloat(cond.Value); !ok {
			return fmt.Errorf("%s requires a numeric value", cond.Operator)
		}
		return nil
	case OpIn:
		list, ok := cond.Value.([]interface{})
		if !ok || len(list) == 0 {
			return fmt.Errorf("in requires a non-empty list")
		}
		return nil
	case OpBetween:
		pair, ok := cond.Value.([]interface{})
		if !ok || len(pair) != 2 {
			return fmt.Errorf("between requires a [low, high] pair")
		}
		low, okL := toFloat(pair[0])
		high, okH := toFloat(pair[1])
		if !okL || !okH {
			return fmt.Errorf("between bounds must be numeric")
		}
		if low > high {
			return fmt.Errorf("between low bound exceeds high bound")
		}
		return nil
	}
	return fmt.Errorf("unknown operator %q", cond.Operator)
}
