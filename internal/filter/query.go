package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FromQuery builds a filter from listing query parameters:
//
//	category  repeatable or comma-separated
//	q         repeatable title substring
//	from, to  YYYY-MM-DD, inclusive
//	range     any format accepted by ParseDateRange; overrides from/to
//	scraped   true or false
func FromQuery(values url.Values, now time.Time) (*Filter, error) {
	f := NewFilter()
	f.Categories = splitValues(values["category"])
	f.Titles = splitValues(values["q"])

	if s := values.Get("from"); s != "" {
		day, err := ParseDay(s)
		if err != nil {
			return nil, fmt.Errorf("from: %w", err)
		}
		f.DateFrom = &day
	}
	if s := values.Get("to"); s != "" {
		day, err := ParseDay(s)
		if err != nil {
			return nil, fmt.Errorf("to: %w", err)
		}
		end := endOfDay(day)
		f.DateTo = &end
	}
	if s := values.Get("range"); s != "" {
		from, to, err := ParseDateRange(s, now)
		if err != nil {
			return nil, fmt.Errorf("range: %w", err)
		}
		f.DateFrom, f.DateTo = from, to
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return nil, fmt.Errorf("from must not be after to")
	}

	if s := values.Get("scraped"); s != "" {
		scraped, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("scraped: expected true or false")
		}
		f.Scraped = &scraped
	}

	return f, nil
}

func splitValues(raw []string) []string {
	out := []string{}
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
