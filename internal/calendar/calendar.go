// Package calendar holds civil-date helpers. Every date handled by the
// application is a time.Time at midnight UTC; no time zone is attached.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used on the wire.
const DateLayout = "2006-01-02"

// Clock supplies the current instant. Services take a Clock so tests can
// pin "today".
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time {
	return c.At
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate drops the time-of-day part of t, keeping t's own calendar day.
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Today returns the civil date of clock.Now().
func Today(clock Clock) time.Time {
	if clock == nil {
		clock = SystemClock{}
	}
	return Truncate(clock.Now().UTC())
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalises to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// LastDayOfMonth returns the last calendar day of t's month.
func LastDayOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), DaysInMonth(t.Year(), t.Month()))
}

// WithDay returns t moved to day within its own month, clamped to the
// month length.
func WithDay(t time.Time, day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := DaysInMonth(t.Year(), t.Month()); day > last {
		day = last
	}
	return Date(t.Year(), t.Month(), day)
}

// AddMonths adds n calendar months. When the source day does not exist in
// the target month the result clamps to the month's last day
// (2025-01-31 + 1 month = 2025-02-28).
func AddMonths(t time.Time, n int) time.Time {
	total := int(t.Month()) - 1 + n
	year := t.Year() + total/12
	month := total % 12
	if month < 0 {
		month += 12
		year--
	}
	first := Date(year, time.Month(month+1), 1)
	return WithDay(first, t.Day())
}

// AddYears adds n years; Feb 29 falls back to Feb 28 in non-leap years.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

// AddDays adds n days.
func AddDays(t time.Time, n int) time.Time {
	return Truncate(t).AddDate(0, 0, n)
}

// DaysBetween returns the whole number of days from a to b (negative when
// b is before a).
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseOptionalDate returns nil for an empty string.
func ParseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Format renders a civil date as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(DateLayout)
}

// Within reports whether d lies in the closed range [start, end].
func Within(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}
