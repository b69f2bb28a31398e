// Package renewal computes subscription renewal occurrences.
//
// A Rule starts at an anchor date and advances by a number of months,
// years or days. Monthly rules may pin the day of month to "first",
// "last" or a number that is clamped to the month length. Advancing is
// path dependent (a day clamped in February stays clamped afterwards
// unless an anchor day restores it), so month and year rules are always
// walked one step at a time from the anchor.
package renewal

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
)

const (
	AnchorFirst = "first"
	AnchorLast  = "last"
)

// Rule is the renewal schedule of one subscription.
type Rule struct {
	Anchor    time.Time
	Period    models.RenewalPeriodType
	Value     int
	AnchorDay string
}

// ForSubscription builds the rule of s.
func ForSubscription(s *models.Subscription) (Rule, error) {
	r := Rule{
		Anchor:    calendar.Truncate(s.RenewalDate),
		Period:    s.RenewalPeriodType,
		Value:     s.RenewalPeriodValue,
		AnchorDay: s.MonthlyRenewalDay,
	}
	if err := r.Validate(); err != nil {
		return Rule{}, fmt.Errorf("subscription %d: %w", s.ID, err)
	}
	return r, nil
}

// Validate checks the period type, value and anchor day.
func (r Rule) Validate() error {
	if !r.Period.Valid() {
		return fmt.Errorf("unknown renewal period type %q", r.Period)
	}
	if r.Value < 1 {
		return fmt.Errorf("renewal period value must be at least 1, got %d", r.Value)
	}
	if r.Anchor.IsZero() {
		return fmt.Errorf("renewal date is required")
	}
	return ValidateAnchorDay(r.AnchorDay)
}

// ValidateAnchorDay accepts "", "first", "last" and "1".."31".
func ValidateAnchorDay(s string) error {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", AnchorFirst, AnchorLast:
		return nil
	}
	k, err := strconv.Atoi(s)
	if err != nil || k < 1 || k > 31 {
		return fmt.Errorf("monthly renewal day must be first, last or 1-31, got %q", s)
	}
	return nil
}

func (r Rule) value() int {
	if r.Value < 1 {
		return 1
	}
	return r.Value
}

// applyAnchor moves m to the configured day of its month.
func (r Rule) applyAnchor(m time.Time) time.Time {
	day := strings.TrimSpace(strings.ToLower(r.AnchorDay))
	switch day {
	case "":
		return m
	case AnchorFirst:
		return calendar.WithDay(m, 1)
	case AnchorLast:
		return calendar.LastDayOfMonth(m)
	}
	k, err := strconv.Atoi(day)
	if err != nil {
		return m
	}
	return calendar.WithDay(m, k)
}

// Step returns the occurrence following d.
func (r Rule) Step(d time.Time) time.Time {
	switch r.Period {
	case models.RenewalYearly:
		return calendar.AddYears(d, r.value())
	case models.RenewalCustom:
		return calendar.AddDays(d, r.value())
	default:
		return r.applyAnchor(calendar.AddMonths(d, r.value()))
	}
}

// NextOnOrAfter returns the first occurrence that is not before d.
func (r Rule) NextOnOrAfter(d time.Time) time.Time {
	d = calendar.Truncate(d)
	cur := calendar.Truncate(r.Anchor)
	if !cur.Before(d) {
		return cur
	}
	if r.Period == models.RenewalCustom {
		v := r.value()
		steps := (calendar.DaysBetween(cur, d) + v - 1) / v
		return calendar.AddDays(cur, steps*v)
	}
	for cur.Before(d) {
		cur = r.Step(cur)
	}
	return cur
}

// Between yields every occurrence in [start, end] in ascending order. The
// sequence can be ranged over any number of times.
func (r Rule) Between(start, end time.Time) iter.Seq[time.Time] {
	start, end = calendar.Truncate(start), calendar.Truncate(end)
	return func(yield func(time.Time) bool) {
		if end.Before(start) {
			return
		}
		for d := r.NextOnOrAfter(start); !d.After(end); d = r.Step(d) {
			if !yield(d) {
				return
			}
		}
	}
}

// Occurrences collects Between into a slice.
func (r Rule) Occurrences(start, end time.Time) []time.Time {
	return slices.Collect(r.Between(start, end))
}

// NextOnOrAfter is a convenience for a single subscription.
func NextOnOrAfter(s *models.Subscription, d time.Time) (time.Time, error) {
	r, err := ForSubscription(s)
	if err != nil {
		return time.Time{}, err
	}
	return r.NextOnOrAfter(d), nil
}

// DaysUntilNext returns the distance in days from today to the next
// occurrence on or after today.
func DaysUntilNext(s *models.Subscription, today time.Time) (int, time.Time, error) {
	next, err := NextOnOrAfter(s, today)
	if err != nil {
		return 0, time.Time{}, err
	}
	return calendar.DaysBetween(today, next), next, nil
}
