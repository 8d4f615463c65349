// Package filter narrows event listings by date range, category, title text
// and origin.
//
// The same Filter drives the in-memory snapshot store (Apply) and the SQL
// listing query, so both backends return the same events for the same
// request.
//
// Example usage:
//
//	f := filter.NewFilter()
//	f.Categories = []string{"scraped"}
//	from, to, _ := filter.ParseDateRange("Apr 1-15", time.Now())
//	f.DateFrom, f.DateTo = from, to
//
//	upcoming := f.Apply(events)
package filter

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

// Filter represents event filtering criteria
type Filter struct {
	// Date range filtering on the event's start day, both ends inclusive
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// Category filtering (case-insensitive exact match, any of)
	Categories []string `json:"categories,omitempty"`

	// Title filtering (case-insensitive substring match, any of)
	Titles []string `json:"titles,omitempty"`

	// Scraped restricts to ingested (true) or submitted (false) events
	Scraped *bool `json:"scraped,omitempty"`
}

// NewFilter returns a filter that matches every event
func NewFilter() *Filter {
	return &Filter{
		Categories: []string{},
		Titles:     []string{},
	}
}

// IsEmpty reports whether no criterion is set. A nil filter is empty.
func (f *Filter) IsEmpty() bool {
	return f == nil || (f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Categories) == 0 &&
		len(f.Titles) == 0 &&
		f.Scraped == nil)
}

// Matches reports whether evt satisfies every active criterion
func (f *Filter) Matches(evt *event.Event) bool {
	if f.IsEmpty() {
		return true
	}

	day := event.DateOf(evt.Date)
	switch {
	case f.DateFrom != nil && day.Before(event.DateOf(*f.DateFrom)):
		return false
	case f.DateTo != nil && day.After(event.DateOf(*f.DateTo)):
		return false
	case f.Scraped != nil && evt.IsScraped != *f.Scraped:
		return false
	}

	if len(f.Categories) > 0 && !slices.ContainsFunc(f.Categories, func(c string) bool {
		return strings.EqualFold(evt.Category, c)
	}) {
		return false
	}

	if len(f.Titles) > 0 {
		title := strings.ToLower(evt.Title)
		if !slices.ContainsFunc(f.Titles, func(q string) bool {
			return strings.Contains(title, strings.ToLower(q))
		}) {
			return false
		}
	}
	return true
}

// Apply keeps the matching events in input order. An empty filter returns
// events as is.
func (f *Filter) Apply(events []*event.Event) []*event.Event {
	if f.IsEmpty() {
		return events
	}

	var filtered []*event.Event
	for _, evt := range events {
		if f.Matches(evt) {
			filtered = append(filtered, evt)
		}
	}

	return filtered
}

// String describes the active criteria for logs, e.g.
// "from 2026-04-01 | to 2026-04-15 | category scraped,arts | scraped".
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "all events"
	}

	var parts []string
	if f.DateFrom != nil {
		parts = append(parts, "from "+f.DateFrom.Format(time.DateOnly))
	}
	if f.DateTo != nil {
		parts = append(parts, "to "+f.DateTo.Format(time.DateOnly))
	}
	if len(f.Categories) > 0 {
		parts = append(parts, "category "+strings.Join(f.Categories, ","))
	}
	if len(f.Titles) > 0 {
		parts = append(parts, fmt.Sprintf("title %q", f.Titles))
	}
	if f.Scraped != nil {
		parts = append(parts, map[bool]string{true: "scraped", false: "submitted"}[*f.Scraped])
	}
	return strings.Join(parts, " | ")
}
