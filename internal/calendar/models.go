package calendar

import (
	"time"

	"github.com/google/uuid"
)

// BusinessHours holds the operating window for one weekday. Times are wall
// clock values in HH:MM form, interpreted in Timezone. Closing before opening
// is rejected at save time; same-day windows only.
type BusinessHours struct {
	ID        uuid.UUID `json:"id"`
	DayOfWeek int       `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	OpenTime  string    `json:"open_time"`
	CloseTime string    `json:"close_time"`
	IsClosed  bool      `json:"is_closed"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Holiday overrides business hours for a single calendar date. A closed
// holiday shuts the day entirely; override hours replace the weekday window;
// a surcharge percentage feeds the pricing context.
type Holiday struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Date         time.Time `json:"date"` // date portion only, midnight UTC
	IsClosed     bool      `json:"is_closed"`
	OpenTime     *string   `json:"open_time,omitempty"`
	CloseTime    *string   `json:"close_time,omitempty"`
	SurchargePct *float64  `json:"surcharge_percentage,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OpenStatus is the result of an availability check.
type OpenStatus struct {
	Open   bool   `json:"open"`
	Reason string `json:"reason,omitempty"`
}

// Snapshot is a point-in-time read of the calendar tables. It is immutable
// once built and safe for concurrent use.
type Snapshot struct {
	Hours    map[int]BusinessHours `json:"hours"`    // keyed by weekday
	Holidays map[string]Holiday    `json:"holidays"` // keyed by YYYY-MM-DD
	LoadedAt time.Time             `json:"loaded_at"`
}

const dateKeyLayout = "2006-01-02"

// HolidayFor returns the holiday covering the date of t, if any.
func (s *Snapshot) HolidayFor(t time.Time) (Holiday, bool) {
	h, ok := s.Holidays[t.Format(dateKeyLayout)]
	return h, ok
}

// Localize converts t into the business timezone recorded on the weekday's
// hours row, so date-keyed lookups agree with the availability check. Falls
// back to t unchanged when the zone cannot be loaded.
func (s *Snapshot) Localize(t time.Time) time.Time {
	hours := s.HoursFor(int(t.Weekday()))
	if loc, err := time.LoadLocation(hours.Timezone); err == nil {
		return t.In(loc)
	}
	return t
}

// HoursFor returns the stored weekday record, or a synthesized open-all-day
// default when no record exists for that weekday.
func (s *Snapshot) HoursFor(weekday int) BusinessHours {
	if h, ok := s.Hours[weekday]; ok {
		return h
	}
	return BusinessHours{
		DayOfWeek: weekday,
		OpenTime:  "00:00",
		CloseTime: "23:59",
		Timezone:  "UTC",
	}
}
