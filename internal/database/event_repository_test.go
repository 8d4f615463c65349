package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pfrederiksen/ducksgather/internal/database"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/filter"
)

// eventColumns lists the columns returned by events SELECT queries.
var eventColumns = []string{
	"event_id", "title", "description", "category", "date", "start_time",
	"end_date", "end_time", "image_url", "external_url", "location_id", "organization_id",
	"created_by", "is_scraped", "created_at",
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return sqlx.NewDb(mockDB, "postgres"), mock, func() { mockDB.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func fairDraft() *event.Draft {
	pdt := time.FixedZone("", -7*3600)
	lat, lon := 44.0448, -123.0726
	return event.NewScrapedDraft(&event.Record{
		Title:     "Spring Fair 2026",
		StartAt:   time.Date(2099, 4, 10, 10, 0, 0, 0, pdt),
		EndsAt:    time.Date(2099, 4, 10, 16, 0, 0, 0, pdt),
		Location:  "EMU Green",
		Address:   "1395 University St",
		Latitude:  &lat,
		Longitude: &lon,
		Website:   "https://calendar.uoregon.edu/event/spring-fair-2026",
		Organizer: "ASUO",
	}, "")
}

func TestEventRepository_ExistingTitles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := database.NewEventRepository(db)

	mock.ExpectQuery(`SELECT title FROM events WHERE lower\(title\) = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"spring fair 2026", "hack night"})).
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("Spring Fair 2026"))

	got, err := repo.ExistingTitles(context.Background(), []string{"Spring Fair 2026", "Hack Night"})
	if err != nil {
		t.Fatalf("ExistingTitles() error = %v", err)
	}
	if len(got) != 1 || got[0] != "Spring Fair 2026" {
		t.Errorf("ExistingTitles() = %v", got)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_ExistingTitles_Empty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	got, err := database.NewEventRepository(db).ExistingTitles(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("ExistingTitles(nil) = %v, %v", got, err)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_Persist(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := database.NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO locations").
		WithArgs("EMU Green", "1395 University St", 44.0448, -123.0726).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT location_id FROM locations").
		WithArgs("EMU Green").
		WillReturnRows(sqlmock.NewRows([]string{"location_id"}).AddRow(7))
	mock.ExpectExec("INSERT INTO organizations").
		WithArgs("ASUO").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT organization_id FROM organizations").
		WithArgs("ASUO").
		WillReturnRows(sqlmock.NewRows([]string{"organization_id"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO events").
		WithArgs(
			"Spring Fair 2026", sqlmock.AnyArg(), event.ScrapedCategory,
			"2099-04-10", "10:00:00", "2099-04-10", "16:00:00",
			sqlmock.AnyArg(), sqlmock.AnyArg(), int64(7), int64(3), sqlmock.AnyArg(), true,
		).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(42))
	mock.ExpectCommit()

	id, err := repo.Persist(context.Background(), fairDraft())
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if id != 42 {
		t.Errorf("Persist() id = %d, want 42", id)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_Persist_DuplicateRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := database.NewEventRepository(db)

	d := fairDraft()
	d.Record.Location = ""
	d.Record.Organizer = ""

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO events").
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))
	mock.ExpectRollback()

	_, err := repo.Persist(context.Background(), d)
	if !errors.Is(err, event.ErrDuplicateTitle) {
		t.Fatalf("Persist() error = %v, want ErrDuplicateTitle", err)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_Persist_LocationFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := database.NewEventRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO locations").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Persist(context.Background(), fairDraft())
	if err == nil || errors.Is(err, event.ErrDuplicateTitle) {
		t.Fatalf("Persist() error = %v, want location failure", err)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_GetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := database.NewEventRepository(db)

	now := time.Now()
	day := time.Date(2099, 4, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(0, 1, 1, 10, 0, 0, 0, time.UTC)
	end := time.Date(0, 1, 1, 16, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM events WHERE event_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow(
			42, "Spring Fair 2026", nil, "scraped", day, start,
			day, end, nil, "https://calendar.uoregon.edu/event/spring-fair-2026", 7, nil,
			nil, true, now,
		))

	evt, err := repo.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if evt.Title != "Spring Fair 2026" || !evt.IsScraped {
		t.Errorf("GetByID() = %+v", evt)
	}
	if want := time.Date(2099, 4, 10, 10, 0, 0, 0, time.UTC); !evt.StartAt().Equal(want) {
		t.Errorf("StartAt() = %v, want %v", evt.StartAt(), want)
	}
	if evt.LocationID == nil || *evt.LocationID != 7 || evt.OrganizationID != nil {
		t.Errorf("references = %v/%v", evt.LocationID, evt.OrganizationID)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_GetByID_NotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM events").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(eventColumns))

	_, err := database.NewEventRepository(db).GetByID(context.Background(), 9)
	if !errors.Is(err, event.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_List(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := database.NewEventRepository(db)

	from := time.Date(2099, 4, 1, 0, 0, 0, 0, time.UTC)
	scraped := true
	f := &filter.Filter{
		DateFrom:   &from,
		Categories: []string{"Scraped", "tech"},
		Titles:     []string{"50%"},
		Scraped:    &scraped,
	}

	mock.ExpectQuery(`SELECT .+ FROM events WHERE date >= \$1 AND lower\(category\) = ANY\(\$2\) AND lower\(title\) LIKE ANY\(\$3\) AND is_scraped = \$4 ORDER BY date, start_time, event_id`).
		WithArgs("2099-04-01", pq.Array([]string{"scraped", "tech"}), pq.Array([]string{`%50\%%`}), true).
		WillReturnRows(sqlmock.NewRows(eventColumns))

	events, err := repo.List(context.Background(), f)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("List() = %v, want empty slice", events)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_List_NoFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT .+ FROM events ORDER BY date, start_time, event_id`).
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows(eventColumns))

	if _, err := database.NewEventRepository(db).List(context.Background(), nil); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	expectationsMet(t, mock)
}
