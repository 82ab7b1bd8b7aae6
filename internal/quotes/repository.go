package quotes

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

// Repository handles database operations for quotes. The structured parts of
// a quote (request, breakdown, enhancements, trail) are stored as JSONB since
// they are written once and only ever read back whole.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new quotes repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateQuote persists a freshly composed quote
func (r *Repository) CreateQuote(ctx context.Context, q *Quote) error {
	request, err := json.Marshal(q.Request)
	if err != nil {
		return fmt.Errorf("failed to marshal quote request: %w", err)
	}
	breakdown, err := json.Marshal(q.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal quote breakdown: %w", err)
	}
	addons, err := json.Marshal(q.Enhancements)
	if err != nil {
		return fmt.Errorf("failed to marshal quote enhancements: %w", err)
	}
	trail, err := json.Marshal(q.Trail)
	if err != nil {
		return fmt.Errorf("failed to marshal quote trail: %w", err)
	}

	query := `
		INSERT INTO quotes (
			id, booking_reference, request, distance_miles, duration_minutes,
			breakdown, enhancements, currency, trail, valid_until, locked, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.Exec(ctx, query,
		q.ID,
		q.BookingReference,
		request,
		q.DistanceMiles,
		q.DurationMinutes,
		breakdown,
		addons,
		q.Currency,
		trail,
		q.ValidUntil,
		q.Locked,
		q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}

	return nil
}

// GetQuoteByID retrieves a quote regardless of expiry; expiry policy lives in
// the service layer.
func (r *Repository) GetQuoteByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	query := `
		SELECT id, booking_reference, request, distance_miles, duration_minutes,
			   breakdown, enhancements, currency, trail, valid_until, locked, created_at
		FROM quotes
		WHERE id = $1
	`

	q := &Quote{}
	var request, breakdown, addons, trail []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&q.ID,
		&q.BookingReference,
		&request,
		&q.DistanceMiles,
		&q.DurationMinutes,
		&breakdown,
		&addons,
		&q.Currency,
		&trail,
		&q.ValidUntil,
		&q.Locked,
		&q.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("quote not found", nil)
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if err := json.Unmarshal(request, &q.Request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote request: %w", err)
	}
	if err := json.Unmarshal(breakdown, &q.Breakdown); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote breakdown: %w", err)
	}
	if err := json.Unmarshal(addons, &q.Enhancements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quote enhancements: %w", err)
	}
	if len(trail) > 0 {
		if err := json.Unmarshal(trail, &q.Trail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quote trail: %w", err)
		}
	}

	return q, nil
}

// TryLockQuote atomically marks an unlocked, unexpired quote as locked.
// Returns true when this call acquired the lock.
func (r *Repository) TryLockQuote(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes
		SET locked = true
		WHERE id = $1 AND locked = false AND valid_until >= $2
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to lock quote: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteExpiredUnlocked removes unlocked quotes whose validity lapsed before
// the cutoff. Locked quotes are frozen pricing history and never reaped.
func (r *Repository) DeleteExpiredUnlocked(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM quotes
		WHERE locked = false AND valid_until < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired quotes: %w", err)
	}

	return tag.RowsAffected(), nil
}
