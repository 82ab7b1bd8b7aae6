package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func snapshotWith(hours []BusinessHours, holidays []Holiday) *Snapshot {
	snap := &Snapshot{
		Hours:    make(map[int]BusinessHours),
		Holidays: make(map[string]Holiday),
		LoadedAt: time.Now().UTC(),
	}
	for _, bh := range hours {
		snap.Hours[bh.DayOfWeek] = bh
	}
	for _, h := range holidays {
		snap.Holidays[h.Date.Format(dateKeyLayout)] = h
	}
	return snap
}

func TestIsOpenAt_HolidayClosedWinsOverOpenWeekday(t *testing.T) {
	// 2026-12-25 is a Friday
	christmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	snap := snapshotWith(
		[]BusinessHours{{DayOfWeek: 5, OpenTime: "06:00", CloseTime: "22:00", Timezone: "UTC"}},
		[]Holiday{{Name: "Christmas Day", Date: christmas, IsClosed: true}},
	)

	status := IsOpenAt(snap, time.Date(2026, 12, 25, 12, 0, 0, 0, time.UTC))
	assert.False(t, status.Open)
	assert.Equal(t, "holiday: Christmas Day", status.Reason)
}

func TestLocalize_HolidayKeyedByBusinessDate(t *testing.T) {
	// 2026-12-25 is a Friday
	christmas := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	ny := []BusinessHours{
		{DayOfWeek: 4, OpenTime: "06:00", CloseTime: "23:00", Timezone: "America/New_York"},
		{DayOfWeek: 5, OpenTime: "06:00", CloseTime: "23:00", Timezone: "America/New_York"},
		{DayOfWeek: 6, OpenTime: "06:00", CloseTime: "23:00", Timezone: "America/New_York"},
	}
	snap := snapshotWith(ny, []Holiday{{Name: "Christmas Day", Date: christmas, IsClosed: true}})

	// 02:00 UTC on the 26th is still the evening of the 25th in New York.
	eveOf26thUTC := time.Date(2026, 12, 26, 2, 0, 0, 0, time.UTC)
	_, ok := snap.HolidayFor(snap.Localize(eveOf26thUTC))
	assert.True(t, ok)
	assert.False(t, IsOpenAt(snap, eveOf26thUTC).Open)

	// 03:00 UTC on the 25th is still the evening of the 24th in New York.
	eveOf25thUTC := time.Date(2026, 12, 25, 3, 0, 0, 0, time.UTC)
	_, ok = snap.HolidayFor(snap.Localize(eveOf25thUTC))
	assert.False(t, ok)
	assert.True(t, IsOpenAt(snap, eveOf25thUTC).Open)
}

func TestIsOpenAt_HolidayOverrideHours(t *testing.T) {
	nye := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	snap := snapshotWith(
		[]BusinessHours{{DayOfWeek: 4, OpenTime: "06:00", CloseTime: "22:00", Timezone: "UTC"}},
		[]Holiday{{
			Name:      "New Year's Eve",
			Date:      nye,
			OpenTime:  strPtr("10:00"),
			CloseTime: strPtr("16:00"),
		}},
	)

	assert.True(t, IsOpenAt(snap, time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC)).Open)

	// Inside normal weekday hours but outside the holiday override
	status := IsOpenAt(snap, time.Date(2026, 12, 31, 20, 0, 0, 0, time.UTC))
	assert.False(t, status.Open)
	assert.Contains(t, status.Reason, "New Year's Eve")
}

func TestIsOpenAt_SurchargeOnlyHolidayFallsThrough(t *testing.T) {
	pct := 20.0
	valentines := time.Date(2027, 2, 14, 0, 0, 0, 0, time.UTC) // a Sunday
	snap := snapshotWith(
		[]BusinessHours{{DayOfWeek: 0, OpenTime: "08:00", CloseTime: "20:00", Timezone: "UTC"}},
		[]Holiday{{Name: "Valentine's Day", Date: valentines, SurchargePct: &pct}},
	)

	assert.True(t, IsOpenAt(snap, time.Date(2027, 2, 14, 10, 0, 0, 0, time.UTC)).Open)
	assert.False(t, IsOpenAt(snap, time.Date(2027, 2, 14, 22, 0, 0, 0, time.UTC)).Open)
}

func TestIsOpenAt_ClosedWeekday(t *testing.T) {
	snap := snapshotWith(
		[]BusinessHours{{DayOfWeek: 1, IsClosed: true, Timezone: "UTC"}},
		nil,
	)

	// 2026-09-07 is a Monday
	status := IsOpenAt(snap, time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC))
	assert.False(t, status.Open)
	assert.Equal(t, "closed on this day", status.Reason)
}

func TestIsOpenAt_MissingWeekdaySynthesizesDefault(t *testing.T) {
	snap := snapshotWith(nil, nil)

	assert.True(t, IsOpenAt(snap, time.Date(2026, 9, 9, 3, 30, 0, 0, time.UTC)).Open)
	assert.True(t, IsOpenAt(snap, time.Date(2026, 9, 9, 23, 59, 0, 0, time.UTC)).Open)
}

func TestTimeWithinRange(t *testing.T) {
	tests := []struct {
		name          string
		t, start, end int
		want          bool
	}{
		{"inside same-day range", 12 * 60, 9 * 60, 17 * 60, true},
		{"before same-day range", 8 * 60, 9 * 60, 17 * 60, false},
		{"boundary start inclusive", 9 * 60, 9 * 60, 17 * 60, true},
		{"boundary end inclusive", 17 * 60, 9 * 60, 17 * 60, true},
		{"overnight wrap late evening", 23*60 + 30, 22 * 60, 4 * 60, true},
		{"overnight wrap early morning", 2 * 60, 22 * 60, 4 * 60, true},
		{"overnight wrap midday excluded", 12 * 60, 22 * 60, 4 * 60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeWithinRange(tt.t, tt.start, tt.end))
		})
	}
}

func TestSaveBusinessHours_RejectsCloseBeforeOpen(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.SaveBusinessHours(context.Background(), &BusinessHours{
		DayOfWeek: 2,
		OpenTime:  "18:00",
		CloseTime: "09:00",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close_time must not precede open_time")
}

func TestSaveBusinessHours_RejectsBadWeekday(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.SaveBusinessHours(context.Background(), &BusinessHours{DayOfWeek: 7, OpenTime: "09:00", CloseTime: "17:00"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "day_of_week")
}

func TestValidateHoliday(t *testing.T) {
	svc := NewService(nil, nil)
	date := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)

	err := svc.validateHoliday(&Holiday{Name: "", Date: date})
	require.Error(t, err)

	err = svc.validateHoliday(&Holiday{Name: "Independence Day", Date: date, OpenTime: strPtr("10:00")})
	require.Error(t, err, "open without close must fail")

	bad := 150.0
	err = svc.validateHoliday(&Holiday{Name: "Independence Day", Date: date, SurchargePct: &bad})
	require.Error(t, err)

	ok := 25.0
	err = svc.validateHoliday(&Holiday{Name: "Independence Day", Date: date, SurchargePct: &ok})
	require.NoError(t, err)
}
