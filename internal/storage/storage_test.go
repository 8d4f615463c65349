package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/filter"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return s
}

func draft(title, location, organizer string, start time.Time) *event.Draft {
	lat, lon := 44.0448, -123.0726
	return event.NewScrapedDraft(&event.Record{
		Title:     title,
		StartAt:   start,
		EndsAt:    start.Add(2 * time.Hour),
		Location:  location,
		Address:   "1395 University St",
		Latitude:  &lat,
		Longitude: &lon,
		Organizer: organizer,
	}, "")
}

func TestPersist(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	pdt := time.FixedZone("", -7*3600)
	start := time.Date(2099, 4, 10, 10, 0, 0, 0, pdt)

	id, err := s.Persist(ctx, draft("Spring Fair 2026", "EMU Green", "ASUO", start))
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if id != 1 {
		t.Errorf("Persist() id = %d, want 1", id)
	}

	// same venue and host in different case resolve to the existing rows
	if _, err := s.Persist(ctx, draft("Lawn Concert", "emu green", "asuo", start.Add(24*time.Hour))); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	snap, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(snap.Events))
	}
	if len(snap.Locations) != 1 || len(snap.Organizations) != 1 {
		t.Fatalf("got %d locations and %d organizations, want 1 each", len(snap.Locations), len(snap.Organizations))
	}
	if got := event.Deref(snap.Locations[0].Address); got != "1395 University St" {
		t.Errorf("location address = %q", got)
	}

	fair := snap.Events[0]
	if !fair.IsScraped || fair.Category != event.ScrapedCategory {
		t.Errorf("event origin = %v/%q, want scraped", fair.IsScraped, fair.Category)
	}
	if fair.LocationID == nil || *fair.LocationID != snap.Locations[0].ID {
		t.Errorf("event location = %v, want %d", fair.LocationID, snap.Locations[0].ID)
	}
	if fair.OrganizationID == nil || *fair.OrganizationID != snap.Organizations[0].ID {
		t.Errorf("event organization = %v", fair.OrganizationID)
	}
	if want := time.Date(2099, 4, 10, 0, 0, 0, 0, time.UTC); !fair.Date.Equal(want) {
		t.Errorf("event date = %v, want %v", fair.Date, want)
	}
	if fair.StartTime.Hour() != 10 || fair.EndTime.Hour() != 12 {
		t.Errorf("event clock = %v-%v, want 10:00-12:00", fair.StartTime, fair.EndTime)
	}
}

func TestPersistDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	start := time.Date(2099, 4, 10, 10, 0, 0, 0, time.UTC)

	if _, err := s.Persist(ctx, draft("Spring Fair 2026", "", "", start)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	_, err := s.Persist(ctx, draft("SPRING FAIR 2026", "EMU Green", "", start))
	if !errors.Is(err, event.ErrDuplicateTitle) {
		t.Fatalf("Persist() error = %v, want ErrDuplicateTitle", err)
	}

	snap, _ := s.LoadSnapshot()
	if len(snap.Locations) != 0 {
		t.Errorf("rejected insert left %d locations behind", len(snap.Locations))
	}
}

func TestPersistWithoutVenue(t *testing.T) {
	s := newTestStorage(t)
	d := draft("Online Talk", "", "", time.Date(2099, 1, 1, 9, 0, 0, 0, time.UTC))

	if _, err := s.Persist(context.Background(), d); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	evt, err := s.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if evt.LocationID != nil || evt.OrganizationID != nil {
		t.Errorf("event references = %v/%v, want none", evt.LocationID, evt.OrganizationID)
	}
}

func TestExistingTitles(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	got, err := s.ExistingTitles(ctx, []string{"Spring Fair 2026"})
	if err != nil {
		t.Fatalf("ExistingTitles() on empty store error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ExistingTitles() = %v, want none", got)
	}

	if _, err := s.Persist(ctx, draft("Spring Fair 2026", "", "", time.Date(2099, 4, 10, 10, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	got, err = s.ExistingTitles(ctx, []string{"Spring Fair 2026", "spring fair 2026", "Hack Night"})
	if err != nil {
		t.Fatalf("ExistingTitles() error = %v", err)
	}
	// both spellings match and report the stored one
	if len(got) != 2 || got[0] != "Spring Fair 2026" || got[1] != "Spring Fair 2026" {
		t.Errorf("ExistingTitles() = %v, want the stored title twice", got)
	}
}

func TestGetByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	if _, err := s.Persist(ctx, draft("Spring Fair 2026", "", "", time.Date(2099, 4, 10, 10, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	tests := []struct {
		name      string
		id        int64
		wantTitle string
		wantErr   bool
	}{
		{name: "found", id: 1, wantTitle: "Spring Fair 2026"},
		{name: "unknown id", id: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetByID(ctx, tt.id)
			if tt.wantErr {
				if !errors.Is(err, event.ErrNotFound) {
					t.Errorf("GetByID() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("GetByID() title = %q, want %q", got.Title, tt.wantTitle)
			}
		})
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	day := func(d, h int) time.Time { return time.Date(2099, 4, d, h, 0, 0, 0, time.UTC) }

	for _, d := range []*event.Draft{
		draft("Late Talk", "", "", day(12, 18)),
		draft("Early Talk", "", "", day(12, 9)),
		draft("First Day", "", "", day(10, 12)),
	} {
		if _, err := s.Persist(ctx, d); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
	}

	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"First Day", "Early Talk", "Late Talk"}
	if len(all) != len(want) {
		t.Fatalf("List() returned %d events, want %d", len(all), len(want))
	}
	for i, title := range want {
		if all[i].Title != title {
			t.Errorf("List()[%d] = %q, want %q", i, all[i].Title, title)
		}
	}

	from := day(11, 0)
	filtered, err := s.List(ctx, &filter.Filter{DateFrom: &from})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("List(from) returned %d events, want 2", len(filtered))
	}
}

func TestUpsertLocation(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	addr := "1585 E 13th Ave"
	lat := 44.0434

	id, err := s.UpsertLocation(ctx, &event.Location{BuildingName: "Knight Library"})
	if err != nil {
		t.Fatalf("UpsertLocation() error = %v", err)
	}

	again, err := s.UpsertLocation(ctx, &event.Location{BuildingName: "KNIGHT LIBRARY", Address: &addr, Latitude: &lat})
	if err != nil {
		t.Fatalf("UpsertLocation() error = %v", err)
	}
	if again != id {
		t.Errorf("UpsertLocation() id = %d, want existing %d", again, id)
	}

	snap, _ := s.LoadSnapshot()
	if len(snap.Locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(snap.Locations))
	}
	loc := snap.Locations[0]
	if loc.BuildingName != "Knight Library" || event.Deref(loc.Address) != addr || loc.Latitude == nil {
		t.Errorf("location = %+v, want name kept and address filled", loc)
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	s := newTestStorage(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadSnapshot(); err == nil {
		t.Error("LoadSnapshot() expected error for corrupt file")
	}
	if _, err := s.Persist(context.Background(), draft("A", "", "", time.Now())); err == nil {
		t.Error("Persist() expected error for corrupt file")
	}
}

func TestNewExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := New("~/ducks-data")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if want := filepath.Join(home, "ducks-data", "snapshot.json"); s.Path() != want {
		t.Errorf("Path() = %q, want %q", s.Path(), want)
	}
}

func TestCanceledContext(t *testing.T) {
	s := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.ExistingTitles(ctx, []string{"A"}); !errors.Is(err, context.Canceled) {
		t.Errorf("ExistingTitles() error = %v, want context.Canceled", err)
	}
}
