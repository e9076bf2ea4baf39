// Package clock holds the time arithmetic used by scheduling. Every function
// takes "now" explicitly so callers decide which clock they trust.
package clock

import (
	"errors"
	"strings"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System is the wall clock, in UTC.
var System Clock = systemClock{}

// Func adapts a function to Clock. Handy for tests that move time around.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

var ErrInvalidDate = errors.New("invalid date")

// dateLayouts are tried in order; zone-less forms are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate reads an ISO-8601 timestamp or calendar date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// TruncateToHour returns the start of the UTC hour containing t.
func TruncateToHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// IsPast reports whether t is strictly before now.
func IsPast(t, now time.Time) bool {
	return t.Before(now)
}

// IsWithinHoursOfNow reports whether the cutoff margin before t has already
// elapsed, i.e. t minus hours is before now.
func IsWithinHoursOfNow(t time.Time, hours int, now time.Time) bool {
	return t.Add(-time.Duration(hours) * time.Hour).Before(now)
}

// StartOfDay is midnight UTC of t's day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last representable instant of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
