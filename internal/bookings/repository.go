package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statelyrides/chauffeur/pkg/common"
)

// Repository handles database operations for bookings. Passenger details,
// the modification log and the cancellation record are stored as JSONB.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new bookings repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const bookingColumns = `
	id, user_id, quote_id, booking_reference, status, passenger,
	pickup_at, gratuity_pct, gratuity_amount, total_amount,
	payment_intent_id, modifications, cancellation, created_at, updated_at
`

// CreateBooking persists a new PENDING booking.
func (r *Repository) CreateBooking(ctx context.Context, b *Booking) error {
	passenger, err := json.Marshal(b.Passenger)
	if err != nil {
		return fmt.Errorf("failed to marshal passenger: %w", err)
	}
	modifications, err := json.Marshal(b.Modifications)
	if err != nil {
		return fmt.Errorf("failed to marshal modifications: %w", err)
	}

	query := `
		INSERT INTO bookings (
			id, user_id, quote_id, booking_reference, status, passenger,
			pickup_at, gratuity_pct, gratuity_amount, total_amount,
			payment_intent_id, modifications, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Exec(ctx, query,
		b.ID,
		b.UserID,
		b.QuoteID,
		b.BookingReference,
		b.Status,
		passenger,
		b.PickupAt,
		b.GratuityPct,
		b.GratuityAmount,
		b.TotalAmount,
		b.PaymentIntentID,
		modifications,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.NewConflictError("quote is already attached to a booking")
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetBookingByID retrieves a booking by its ID
func (r *Repository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("booking not found", nil)
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// ListBookingsByUser returns a user's bookings, newest first.
func (r *Repository) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *booking)
	}

	return bookings, rows.Err()
}

// UpdateStatus moves a booking between states with the expected current
// status as a guard. Returns false when the guard did not match, so callers
// can distinguish a lost race from a missing row.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, now, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// ApplyModification swaps the active quote, re-denormalizes the pickup time
// and total, and appends to the modification log in one statement. Guarded on
// the booking still pointing at the quote the caller modified from.
func (r *Repository) ApplyModification(ctx context.Context, b *Booking, oldQuoteID uuid.UUID) (bool, error) {
	modifications, err := json.Marshal(b.Modifications)
	if err != nil {
		return false, fmt.Errorf("failed to marshal modifications: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET quote_id = $1, pickup_at = $2, gratuity_pct = $3, gratuity_amount = $4,
		    total_amount = $5, modifications = $6, updated_at = $7
		WHERE id = $8 AND quote_id = $9 AND status IN ($10, $11)
	`,
		b.QuoteID,
		b.PickupAt,
		b.GratuityPct,
		b.GratuityAmount,
		b.TotalAmount,
		modifications,
		b.UpdatedAt,
		b.ID,
		oldQuoteID,
		StatusPending,
		StatusConfirmed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to apply booking modification: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RecordCancellation moves the booking to CANCELLED with its refund outcome,
// guarded on a cancellable current status.
func (r *Repository) RecordCancellation(ctx context.Context, id uuid.UUID, record *CancellationRecord, now time.Time) (bool, error) {
	cancellation, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cancellation: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1, cancellation = $2, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`, StatusCancelled, cancellation, now, id, StatusPending, StatusConfirmed)
	if err != nil {
		return false, fmt.Errorf("failed to record cancellation: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SetPaymentIntent stores the payment handoff reference.
func (r *Repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET payment_intent_id = $1, updated_at = $2
		WHERE id = $3
	`, paymentIntentID, now, id)
	if err != nil {
		return fmt.Errorf("failed to set payment intent: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	b := &Booking{}
	var passenger, modifications []byte
	var cancellation []byte

	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.QuoteID,
		&b.BookingReference,
		&b.Status,
		&passenger,
		&b.PickupAt,
		&b.GratuityPct,
		&b.GratuityAmount,
		&b.TotalAmount,
		&b.PaymentIntentID,
		&modifications,
		&cancellation,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(passenger, &b.Passenger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal passenger: %w", err)
	}
	if len(modifications) > 0 {
		if err := json.Unmarshal(modifications, &b.Modifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal modifications: %w", err)
		}
	}
	if len(cancellation) > 0 {
		if err := json.Unmarshal(cancellation, &b.Cancellation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
		}
	}

	return b, nil
}
