package filter

import (
	"testing"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

func TestFilter_IsEmpty(t *testing.T) {
	scraped := true
	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{
			name:   "empty filter",
			filter: NewFilter(),
			want:   true,
		},
		{
			name:   "nil filter",
			filter: nil,
			want:   true,
		},
		{
			name: "filter with date from",
			filter: &Filter{
				DateFrom: timePtr(time.Now()),
			},
			want: false,
		},
		{
			name: "filter with category",
			filter: &Filter{
				Categories: []string{"scraped"},
			},
			want: false,
		},
		{
			name: "filter with origin",
			filter: &Filter{
				Scraped: &scraped,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.IsEmpty(); got != tt.want {
				t.Errorf("Filter.IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	apr10 := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	apr1 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	apr30 := time.Date(2026, 4, 30, 23, 59, 59, 0, time.UTC)
	no := false

	fair := &event.Event{
		Title:     "Spring Fair 2026",
		Category:  "scraped",
		Date:      apr10,
		IsScraped: true,
	}

	tests := []struct {
		name   string
		filter *Filter
		event  *event.Event
		want   bool
	}{
		{
			name:   "empty filter matches all",
			filter: NewFilter(),
			event:  fair,
			want:   true,
		},
		{
			name:   "date in range",
			filter: &Filter{DateFrom: &apr1, DateTo: &apr30},
			event:  fair,
			want:   true,
		},
		{
			name:   "range ends are inclusive",
			filter: &Filter{DateFrom: &apr10, DateTo: timePtr(apr10.Add(time.Hour))},
			event:  fair,
			want:   true,
		},
		{
			name:   "before range",
			filter: &Filter{DateFrom: timePtr(apr10.AddDate(0, 0, 1))},
			event:  fair,
			want:   false,
		},
		{
			name:   "after range",
			filter: &Filter{DateTo: &apr1},
			event:  fair,
			want:   false,
		},
		{
			name:   "category matches case-insensitively",
			filter: &Filter{Categories: []string{"music", "SCRAPED"}},
			event:  fair,
			want:   true,
		},
		{
			name:   "category does not match",
			filter: &Filter{Categories: []string{"music"}},
			event:  fair,
			want:   false,
		},
		{
			name:   "title substring matches",
			filter: &Filter{Titles: []string{"fair"}},
			event:  fair,
			want:   true,
		},
		{
			name:   "title substring does not match",
			filter: &Filter{Titles: []string{"hack"}},
			event:  fair,
			want:   false,
		},
		{
			name:   "submitted only excludes scraped",
			filter: &Filter{Scraped: &no},
			event:  fair,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Errorf("Filter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	events := []*event.Event{
		{ID: 1, Title: "Spring Fair 2026", Category: "scraped", Date: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "Ducks Hack Night", Category: "tech", Date: time.Date(2026, 4, 12, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Title: "Museum Free Day", Category: "scraped", Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	t.Run("empty filter returns input", func(t *testing.T) {
		got := NewFilter().Apply(events)
		if len(got) != len(events) {
			t.Fatalf("Apply() returned %d events, want %d", len(got), len(events))
		}
	})

	t.Run("combined criteria", func(t *testing.T) {
		to := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
		f := &Filter{Categories: []string{"scraped"}, DateTo: &to}
		got := f.Apply(events)
		if len(got) != 1 || got[0].ID != 1 {
			t.Fatalf("Apply() = %v, want only event 1", got)
		}
	})
}

func TestFilter_String(t *testing.T) {
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	yes := true

	tests := []struct {
		name   string
		filter *Filter
		want   string
	}{
		{
			name:   "empty",
			filter: NewFilter(),
			want:   "all events",
		},
		{
			name:   "all criteria",
			filter: &Filter{DateFrom: &from, Categories: []string{"scraped", "tech"}, Titles: []string{"fair"}, Scraped: &yes},
			want:   `from 2026-04-01 | category scraped,tech | title ["fair"] | scraped`,
		},
		{
			name:   "submitted until",
			filter: &Filter{DateTo: timePtr(from.AddDate(0, 0, 14)), Scraped: new(bool)},
			want:   "to 2026-04-15 | submitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.String(); got != tt.want {
				t.Errorf("Filter.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
