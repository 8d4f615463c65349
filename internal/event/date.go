package event

import (
	"fmt"
	"strings"
	"time"
)

// Bound selects how a bare date is expanded to a timestamp
type Bound int

const (
	// StartOfDay expands a bare date to 00:00:00
	StartOfDay Bound = iota
	// EndOfDay expands a bare date to 23:59:59
	EndOfDay
)

// Layouts carrying an explicit offset
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04-0700",
	"2006-01-02 15:04:05Z07:00",
}

// Layouts without an offset; these are read as UTC
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const dateOnlyLayout = "2006-01-02"

// ParseTimestamp converts a vendor date string into a time.Time.
// Zoned values keep their offset, naive date-times are taken as UTC and bare
// dates are expanded to the start or end of that day in ref.
// Returns an error naming the input when no layout matches.
func ParseTimestamp(s string, bound Bound, ref *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ref == nil {
		ref = time.UTC
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	if d, err := time.ParseInLocation(dateOnlyLayout, s, ref); err == nil {
		if bound == EndOfDay {
			return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, ref), nil
		}
		return d, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseDay parses a YYYY-MM-DD date in UTC
func ParseDay(s string) (time.Time, error) {
	return time.Parse(dateOnlyLayout, strings.TrimSpace(s))
}

// DateOf returns the calendar day of t as a UTC midnight
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ClockOf returns the time of day of t on the zero date
func ClockOf(t time.Time) time.Time {
	return time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// IsPast reports whether start falls on a calendar day before today's UTC date.
// The start day is read in the start's own offset.
func IsPast(start, now time.Time) bool {
	return DateOf(start).Before(DateOf(now.UTC()))
}

// FixedOffset parses an offset such as "-08:00" or "+0530" into a location.
// "Z", "UTC" and "" yield UTC.
func FixedOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	switch strings.ToUpper(offset) {
	case "", "Z", "UTC":
		return time.UTC, nil
	}
	for _, layout := range []string{"-07:00", "-0700", "-07"} {
		if t, err := time.Parse(layout, offset); err == nil {
			_, secs := t.Zone()
			return time.FixedZone(offset, secs), nil
		}
	}
	return nil, fmt.Errorf("invalid offset %q", offset)
}
