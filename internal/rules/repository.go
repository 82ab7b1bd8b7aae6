package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statelyrides/chauffeur/pkg/common"
)

// Repository handles database operations for pricing rules. Conditions and
// calculation are stored as JSONB.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new rules repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateRule inserts a new pricing rule
func (r *Repository) CreateRule(ctx context.Context, rule *PricingRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}
	calculation, err := json.Marshal(rule.Calculation)
	if err != nil {
		return fmt.Errorf("failed to marshal calculation: %w", err)
	}

	query := `
		INSERT INTO pricing_rules (
			id, name, rule_type, service_type, priority, is_active,
			effective_from, effective_to, conditions, calculation
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rule.ID,
		rule.Name,
		rule.RuleType,
		rule.ServiceType,
		rule.Priority,
		rule.IsActive,
		rule.EffectiveFrom,
		rule.EffectiveTo,
		conditions,
		calculation,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pricing rule: %w", err)
	}

	return nil
}

// UpdateRule rewrites an existing pricing rule
func (r *Repository) UpdateRule(ctx context.Context, rule *PricingRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal conditions: %w", err)
	}
	calculation, err := json.Marshal(rule.Calculation)
	if err != nil {
		return fmt.Errorf("failed to marshal calculation: %w", err)
	}

	query := `
		UPDATE pricing_rules
		SET name = $2, rule_type = $3, service_type = $4, priority = $5,
			is_active = $6, effective_from = $7, effective_to = $8,
			conditions = $9, calculation = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rule.ID,
		rule.Name,
		rule.RuleType,
		rule.ServiceType,
		rule.Priority,
		rule.IsActive,
		rule.EffectiveFrom,
		rule.EffectiveTo,
		conditions,
		calculation,
	).Scan(&rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewNotFoundError("pricing rule not found", nil)
		}
		return fmt.Errorf("failed to update pricing rule: %w", err)
	}

	return nil
}

// SetRuleActive soft-activates or soft-deactivates a rule. Rules are never
// hard-deleted while historical quotes reference them.
func (r *Repository) SetRuleActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pricing_rules SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("failed to set rule active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("pricing rule not found", nil)
	}
	return nil
}

// GetRuleByID retrieves a rule by id
func (r *Repository) GetRuleByID(ctx context.Context, id uuid.UUID) (*PricingRule, error) {
	query := selectColumns + ` FROM pricing_rules WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("pricing rule not found", nil)
		}
		return nil, fmt.Errorf("failed to get pricing rule: %w", err)
	}
	return rule, nil
}

// ListRules returns a page of rules with the unpaged total, optionally
// filtered by service type.
func (r *Repository) ListRules(ctx context.Context, serviceType *ServiceType, limit, offset int) ([]PricingRule, int64, error) {
	where := ``
	args := []interface{}{}
	if serviceType != nil {
		where = ` WHERE service_type = $1`
		args = append(args, *serviceType)
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM pricing_rules`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rules: %w", err)
	}

	query := fmt.Sprintf(`%s FROM pricing_rules%s ORDER BY rule_type, priority, id LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	list, err := r.queryRules(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// ListEffective returns active rules for a service type whose effective
// window covers now. Both window bounds are inclusive.
func (r *Repository) ListEffective(ctx context.Context, serviceType ServiceType, now time.Time) ([]PricingRule, error) {
	query := selectColumns + `
		FROM pricing_rules
		WHERE service_type = $1
		  AND is_active = true
		  AND (effective_from IS NULL OR effective_from <= $2)
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY rule_type, priority, id
	`

	return r.queryRules(ctx, query, serviceType, now)
}

const selectColumns = `
	SELECT id, name, rule_type, service_type, priority, is_active,
		   effective_from, effective_to, conditions, calculation,
		   created_at, updated_at`

func (r *Repository) queryRules(ctx context.Context, query string, args ...interface{}) ([]PricingRule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	defer rows.Close()

	var result []PricingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
		}
		result = append(result, *rule)
	}

	return result, rows.Err()
}

func scanRule(row pgx.Row) (*PricingRule, error) {
	rule := &PricingRule{}
	var conditions, calculation []byte

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.RuleType,
		&rule.ServiceType,
		&rule.Priority,
		&rule.IsActive,
		&rule.EffectiveFrom,
		&rule.EffectiveTo,
		&conditions,
		&calculation,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}
	if err := json.Unmarshal(calculation, &rule.Calculation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calculation: %w", err)
	}

	return rule, nil
}
