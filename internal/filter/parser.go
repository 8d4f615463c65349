package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

var (
	sameMonthRange  = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})\s*-\s*(\d{1,2})$`)
	crossMonthRange = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})\s*-\s*([a-z]+)\s+(\d{1,2})$`)
	singleDay       = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2})$`)
)

// months maps full and three-letter month names, plus "sept"
var months = func() map[string]time.Month {
	m := map[string]time.Month{"sept": time.September}
	for mo := time.January; mo <= time.December; mo++ {
		name := strings.ToLower(mo.String())
		m[name] = mo
		m[name[:3]] = mo
	}
	return m
}()

// relative ranges are computed from the caller's calendar day
var relative = map[string]func(today time.Time) (time.Time, time.Time){
	"today": func(d time.Time) (time.Time, time.Time) { return d, d },
	"tomorrow": func(d time.Time) (time.Time, time.Time) {
		d = d.AddDate(0, 0, 1)
		return d, d
	},
	// through the coming Sunday
	"this week": func(d time.Time) (time.Time, time.Time) {
		return d, d.AddDate(0, 0, (7-int(d.Weekday()))%7)
	},
	// the coming Saturday and Sunday, or what is left of the current one
	"weekend": func(d time.Time) (time.Time, time.Time) {
		switch d.Weekday() {
		case time.Sunday:
			return d, d
		case time.Saturday:
			return d, d.AddDate(0, 0, 1)
		}
		sat := d.AddDate(0, 0, int(time.Saturday-d.Weekday()))
		return sat, sat.AddDate(0, 0, 1)
	},
}

// ParseDateRange turns a human date range into inclusive day bounds in UTC.
// from is at 00:00:00 and to at 23:59:59. Accepted forms:
//
//	Apr 1-15            days of one month
//	Dec 20 - Jan 5      across months; an earlier end month means next year
//	Apr 12              a single day
//	April               the whole month
//	2026-04-12          an ISO day
//	2026-04-01..        ISO days, either side may be empty
//	today, tomorrow, this week, weekend
//
// A month name without a year refers to its next occurrence counted from
// now: the current month stays in this year, earlier months roll over.
func ParseDateRange(input string, now time.Time) (*time.Time, *time.Time, error) {
	s := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if s == "" {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}

	if fromText, toText, ok := strings.Cut(s, ".."); ok {
		return parseISORange(fromText, toText)
	}
	if d, err := event.ParseDay(s); err == nil {
		return bounds(d, d)
	}

	if rng, ok := relative[s]; ok {
		from, to := rng(event.DateOf(now))
		return bounds(from, to)
	}

	if m := sameMonthRange.FindStringSubmatch(s); m != nil {
		month, err := lookupMonth(m[1])
		if err != nil {
			return nil, nil, err
		}
		year := yearFor(month, now)
		from, err := day(year, month, m[2])
		if err != nil {
			return nil, nil, err
		}
		to, err := day(year, month, m[3])
		if err != nil {
			return nil, nil, err
		}
		return bounds(from, to)
	}

	if m := crossMonthRange.FindStringSubmatch(s); m != nil {
		startMonth, err := lookupMonth(m[1])
		if err != nil {
			return nil, nil, err
		}
		endMonth, err := lookupMonth(m[3])
		if err != nil {
			return nil, nil, err
		}
		startYear := yearFor(startMonth, now)
		endYear := startYear
		if endMonth < startMonth {
			endYear++
		}
		from, err := day(startYear, startMonth, m[2])
		if err != nil {
			return nil, nil, err
		}
		to, err := day(endYear, endMonth, m[4])
		if err != nil {
			return nil, nil, err
		}
		return bounds(from, to)
	}

	if m := singleDay.FindStringSubmatch(s); m != nil {
		month, err := lookupMonth(m[1])
		if err != nil {
			return nil, nil, err
		}
		d, err := day(yearFor(month, now), month, m[2])
		if err != nil {
			return nil, nil, err
		}
		return bounds(d, d)
	}

	if month, ok := months[s]; ok {
		year := yearFor(month, now)
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		return bounds(first, first.AddDate(0, 1, -1))
	}

	return nil, nil, fmt.Errorf("invalid date range %q: use 'Apr 1-15', 'Apr 1 - May 3', 'Apr 12', 'April', 'today', 'this week', 'weekend' or '2026-04-01..2026-04-15'", input)
}

func lookupMonth(name string) (time.Month, error) {
	if m, ok := months[name]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("invalid month: %s", name)
}

// yearFor picks this year for the current and later months and next year
// for months that have already passed
func yearFor(month time.Month, now time.Time) int {
	if month < now.Month() {
		return now.Year() + 1
	}
	return now.Year()
}

// day builds a UTC midnight and rejects days the month does not have
func day(year int, month time.Month, text string) (time.Time, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day: %s", text)
	}
	d := time.Date(year, month, n, 0, 0, 0, 0, time.UTC)
	if d.Month() != month || n < 1 {
		return time.Time{}, fmt.Errorf("invalid day: %s %s", month, text)
	}
	return d, nil
}

func bounds(from, to time.Time) (*time.Time, *time.Time, error) {
	end := endOfDay(to)
	if from.After(end) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return &from, &end, nil
}

func endOfDay(d time.Time) time.Time {
	return d.Add(24*time.Hour - time.Second)
}

// parseISORange parses the two sides of an ISO day range. An empty side is
// left open.
func parseISORange(fromText, toText string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if s := strings.TrimSpace(fromText); s != "" {
		d, err := ParseDay(s)
		if err != nil {
			return nil, nil, err
		}
		from = &d
	}
	if s := strings.TrimSpace(toText); s != "" {
		d, err := ParseDay(s)
		if err != nil {
			return nil, nil, err
		}
		end := endOfDay(d)
		to = &end
	}
	if from == nil && to == nil {
		return nil, nil, fmt.Errorf("date range cannot be empty")
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, fmt.Errorf("start date must be before end date")
	}
	return from, to, nil
}

// ParseDay parses a YYYY-MM-DD day at midnight UTC
func ParseDay(s string) (time.Time, error) {
	d, err := event.ParseDay(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}
