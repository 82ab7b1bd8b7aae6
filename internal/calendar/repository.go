package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/statelyrides/chauffeur/pkg/common"
)

// Repository handles database operations for business hours and holidays
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new calendar repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertBusinessHours writes the record for one weekday, replacing any
// existing record for that weekday.
func (r *Repository) UpsertBusinessHours(ctx context.Context, bh *BusinessHours) error {
	query := `
		INSERT INTO business_hours (id, day_of_week, open_time, close_time, is_closed, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (day_of_week) DO UPDATE SET
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			is_closed = EXCLUDED.is_closed,
			timezone = EXCLUDED.timezone,
			updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		bh.ID,
		bh.DayOfWeek,
		bh.OpenTime,
		bh.CloseTime,
		bh.IsClosed,
		bh.Timezone,
	).Scan(&bh.ID, &bh.CreatedAt, &bh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert business hours: %w", err)
	}

	return nil
}

// ListBusinessHours returns all stored weekday records.
func (r *Repository) ListBusinessHours(ctx context.Context) ([]BusinessHours, error) {
	query := `
		SELECT id, day_of_week, open_time, close_time, is_closed, timezone, created_at, updated_at
		FROM business_hours
		ORDER BY day_of_week
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list business hours: %w", err)
	}
	defer rows.Close()

	var hours []BusinessHours
	for rows.Next() {
		var bh BusinessHours
		if err := rows.Scan(
			&bh.ID,
			&bh.DayOfWeek,
			&bh.OpenTime,
			&bh.CloseTime,
			&bh.IsClosed,
			&bh.Timezone,
			&bh.CreatedAt,
			&bh.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan business hours: %w", err)
		}
		hours = append(hours, bh)
	}

	return hours, rows.Err()
}

// CreateHoliday inserts a holiday. At most one holiday may exist per calendar
// date; a duplicate date maps to a conflict error.
func (r *Repository) CreateHoliday(ctx context.Context, h *Holiday) error {
	query := `
		INSERT INTO holidays (id, name, date, is_closed, open_time, close_time, surcharge_percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		h.ID,
		h.Name,
		h.Date,
		h.IsClosed,
		h.OpenTime,
		h.CloseTime,
		h.SurchargePct,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.NewConflictError(fmt.Sprintf("a holiday already exists on %s", h.Date.Format(dateKeyLayout)))
		}
		return fmt.Errorf("failed to create holiday: %w", err)
	}

	return nil
}

// UpdateHoliday rewrites an existing holiday.
func (r *Repository) UpdateHoliday(ctx context.Context, h *Holiday) error {
	query := `
		UPDATE holidays
		SET name = $2, date = $3, is_closed = $4, open_time = $5, close_time = $6,
			surcharge_percentage = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		h.ID,
		h.Name,
		h.Date,
		h.IsClosed,
		h.OpenTime,
		h.CloseTime,
		h.SurchargePct,
	).Scan(&h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewNotFoundError("holiday not found", nil)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.NewConflictError(fmt.Sprintf("a holiday already exists on %s", h.Date.Format(dateKeyLayout)))
		}
		return fmt.Errorf("failed to update holiday: %w", err)
	}

	return nil
}

// DeleteHoliday removes a holiday by id.
func (r *Repository) DeleteHoliday(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("holiday not found", nil)
	}
	return nil
}

// ListHolidays returns holidays within the given date range, inclusive.
func (r *Repository) ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	query := `
		SELECT id, name, date, is_closed, open_time, close_time, surcharge_percentage, created_at, updated_at
		FROM holidays
		WHERE date >= $1 AND date <= $2
		ORDER BY date
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list holidays: %w", err)
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(
			&h.ID,
			&h.Name,
			&h.Date,
			&h.IsClosed,
			&h.OpenTime,
			&h.CloseTime,
			&h.SurchargePct,
			&h.CreatedAt,
			&h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		holidays = append(holidays, h)
	}

	return holidays, rows.Err()
}
