package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

// SortOrder represents the available sorting options for exports
type SortOrder string

const (
	SortNone    SortOrder = "none"
	SortByDate  SortOrder = "date"
	SortByTitle SortOrder = "title"
	SortByVenue SortOrder = "location"
)

// ParseSortOrder validates a --sort value
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "", SortNone:
		return SortNone, nil
	case SortByDate, SortByTitle, SortByVenue:
		return o, nil
	}
	return "", fmt.Errorf("invalid sort order: %s (must be none, date, title or location)", s)
}

// sortRecords sorts records in place. SortNone keeps listing order.
func sortRecords(recs []*event.Record, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(recs, func(i, j int) bool {
			return compareByDate(recs[i], recs[j])
		})
	case SortByTitle:
		sort.SliceStable(recs, func(i, j int) bool {
			ti, tj := strings.ToLower(recs[i].Title), strings.ToLower(recs[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(recs[i], recs[j])
		})
	case SortByVenue:
		sort.SliceStable(recs, func(i, j int) bool {
			li, lj := strings.ToLower(recs[i].Location), strings.ToLower(recs[j].Location)
			if li != lj {
				// records without a venue go last
				if li == "" || lj == "" {
					return lj == ""
				}
				return li < lj
			}
			return compareByDate(recs[i], recs[j])
		})
	}
}

// compareByDate orders by start instant, then end, then title
func compareByDate(i, j *event.Record) bool {
	if !i.StartAt.Equal(j.StartAt) {
		return i.StartAt.Before(j.StartAt)
	}
	if !i.EndsAt.Equal(j.EndsAt) {
		return i.EndsAt.Before(j.EndsAt)
	}
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
