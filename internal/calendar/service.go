package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/pkg/cache"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/logger"
	"github.com/statelyrides/chauffeur/pkg/validation"
)

// Service answers availability questions and manages the calendar tables.
// Availability checks operate on an immutable Snapshot so they can run
// concurrently without synchronization.
type Service struct {
	repo  *Repository
	cache *cache.Manager
}

// NewService creates a new calendar service
func NewService(repo *Repository, cacheManager *cache.Manager) *Service {
	return &Service{repo: repo, cache: cacheManager}
}

// snapshotHorizon bounds how far ahead holidays are loaded into a snapshot.
const snapshotHorizon = 366 * 24 * time.Hour

// LoadSnapshot builds a snapshot of both calendar tables, reading through the
// cache when one is available.
func (s *Service) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	if s.cache != nil {
		var snap Snapshot
		if err := s.cache.Get(ctx, cache.Keys.CalendarSnapshot(), &snap); err == nil {
			return &snap, nil
		}
	}

	hours, err := s.repo.ListBusinessHours(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	holidays, err := s.repo.ListHolidays(ctx, now.AddDate(0, 0, -1), now.Add(snapshotHorizon))
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Hours:    make(map[int]BusinessHours, len(hours)),
		Holidays: make(map[string]Holiday, len(holidays)),
		LoadedAt: now,
	}
	for _, bh := range hours {
		snap.Hours[bh.DayOfWeek] = bh
	}
	for _, h := range holidays {
		snap.Holidays[h.Date.Format(dateKeyLayout)] = h
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.Keys.CalendarSnapshot(), snap, cache.TTL.Short()); err != nil {
			logger.WithContext(ctx).Warn("failed to cache calendar snapshot", zap.Error(err))
		}
	}

	return snap, nil
}

// IsOpen reports whether the service operates at the given instant. Holidays
// take precedence over the weekday schedule for the same date.
func (s *Service) IsOpen(ctx context.Context, instant time.Time) (OpenStatus, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return OpenStatus{}, err
	}
	return IsOpenAt(snap, instant), nil
}

// IsOpenAt evaluates availability against an already-loaded snapshot.
func IsOpenAt(snap *Snapshot, instant time.Time) OpenStatus {
	local := snap.Localize(instant)
	hours := snap.HoursFor(int(local.Weekday()))

	if holiday, ok := snap.HolidayFor(local); ok {
		if holiday.IsClosed {
			return OpenStatus{Open: false, Reason: fmt.Sprintf("holiday: %s", holiday.Name)}
		}
		if holiday.OpenTime != nil && holiday.CloseTime != nil {
			if timeWithinRange(minuteOfDay(local), mustMinutes(*holiday.OpenTime), mustMinutes(*holiday.CloseTime)) {
				return OpenStatus{Open: true}
			}
			return OpenStatus{Open: false, Reason: fmt.Sprintf("outside holiday hours: %s", holiday.Name)}
		}
		// Holiday with neither closure nor override hours falls through to
		// the weekday schedule; only its surcharge matters.
	}

	if hours.IsClosed {
		return OpenStatus{Open: false, Reason: "closed on this day"}
	}

	if timeWithinRange(minuteOfDay(local), mustMinutes(hours.OpenTime), mustMinutes(hours.CloseTime)) {
		return OpenStatus{Open: true}
	}
	return OpenStatus{Open: false, Reason: "outside business hours"}
}

// timeWithinRange compares minute-of-day values. A range whose end precedes
// its start is interpreted as wrapping past midnight, so 22:00-04:00 covers
// 23:30 and 02:00 but not 12:00.
func timeWithinRange(t, start, end int) bool {
	if end < start {
		return t >= start || t <= end
	}
	return t >= start && t <= end
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// mustMinutes converts an HH:MM string already validated at save time.
// Invalid stored values degrade to midnight rather than panicking.
func mustMinutes(value string) int {
	m, err := validation.ValidateClockTime(value)
	if err != nil {
		return 0
	}
	return m
}

// SaveBusinessHours validates and stores the schedule for one weekday.
func (s *Service) SaveBusinessHours(ctx context.Context, bh *BusinessHours) error {
	if bh.DayOfWeek < 0 || bh.DayOfWeek > 6 {
		return common.NewValidationError("day_of_week must be between 0 and 6")
	}
	if !bh.IsClosed {
		open, err := validation.ValidateClockTime(bh.OpenTime)
		if err != nil {
			return common.NewValidationError(err.Error())
		}
		closeM, err := validation.ValidateClockTime(bh.CloseTime)
		if err != nil {
			return common.NewValidationError(err.Error())
		}
		if closeM < open {
			return common.NewValidationError("close_time must not precede open_time")
		}
	}
	if bh.Timezone == "" {
		bh.Timezone = "UTC"
	} else if _, err := time.LoadLocation(bh.Timezone); err != nil {
		return common.NewValidationError(fmt.Sprintf("unknown timezone %q", bh.Timezone))
	}
	if bh.ID == uuid.Nil {
		bh.ID = uuid.New()
	}

	if err := s.repo.UpsertBusinessHours(ctx, bh); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx)
	return nil
}

// CreateHoliday validates and stores a holiday.
func (s *Service) CreateHoliday(ctx context.Context, h *Holiday) error {
	if err := s.validateHoliday(h); err != nil {
		return err
	}
	h.ID = uuid.New()
	h.Date = h.Date.UTC().Truncate(24 * time.Hour)

	if err := s.repo.CreateHoliday(ctx, h); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx)
	return nil
}

// UpdateHoliday validates and rewrites a holiday.
func (s *Service) UpdateHoliday(ctx context.Context, h *Holiday) error {
	if err := s.validateHoliday(h); err != nil {
		return err
	}
	h.Date = h.Date.UTC().Truncate(24 * time.Hour)

	if err := s.repo.UpdateHoliday(ctx, h); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx)
	return nil
}

// DeleteHoliday removes a holiday.
func (s *Service) DeleteHoliday(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteHoliday(ctx, id); err != nil {
		return err
	}
	s.invalidateSnapshot(ctx)
	return nil
}

// ListHolidays returns holidays in the given range.
func (s *Service) ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	return s.repo.ListHolidays(ctx, from, to)
}

// ListBusinessHours returns all stored weekday schedules.
func (s *Service) ListBusinessHours(ctx context.Context) ([]BusinessHours, error) {
	return s.repo.ListBusinessHours(ctx)
}

func (s *Service) validateHoliday(h *Holiday) error {
	if h.Name == "" {
		return common.NewValidationError("holiday name is required")
	}
	if h.Date.IsZero() {
		return common.NewValidationError("holiday date is required")
	}
	if (h.OpenTime == nil) != (h.CloseTime == nil) {
		return common.NewValidationError("override hours require both open_time and close_time")
	}
	if h.OpenTime != nil {
		if _, err := validation.ValidateClockTime(*h.OpenTime); err != nil {
			return common.NewValidationError(err.Error())
		}
		if _, err := validation.ValidateClockTime(*h.CloseTime); err != nil {
			return common.NewValidationError(err.Error())
		}
	}
	if h.SurchargePct != nil && (*h.SurchargePct < 0 || *h.SurchargePct > 100) {
		return common.NewValidationError("surcharge_percentage must be between 0 and 100")
	}
	return nil
}

func (s *Service) invalidateSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.CalendarSnapshot()); err != nil {
		logger.WithContext(ctx).Warn("failed to invalidate calendar snapshot", zap.Error(err))
	}
}
