package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/filter"
)

// eventSelectColumns lists columns for SELECT queries on events.
const eventSelectColumns = `event_id, title, description, category, date, start_time,
	end_date, end_time, image_url, external_url, location_id, organization_id,
	created_by, is_scraped, created_at`

// DATE and TIME columns are sent as text so the driver never applies a zone
const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// EventRepository handles database operations for events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ExistingTitles returns the stored spelling of the given titles that already
// exist, in one query. Matching ignores case, the same rule the unique index
// on lower(title) enforces.
func (r *EventRepository) ExistingTitles(ctx context.Context, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(titles))
	for i, t := range titles {
		lowered[i] = strings.ToLower(t)
	}

	query := `SELECT title FROM events WHERE lower(title) = ANY($1)`

	var found []string
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(lowered)); err != nil {
		return nil, fmt.Errorf("failed to query existing titles: %w", err)
	}
	return found, nil
}

// Persist stores one draft. Location and organization resolution and the
// event insert share a transaction, so a rejected event leaves no orphaned
// venue or host behind. A title that is already stored yields
// event.ErrDuplicateTitle.
func (r *EventRepository) Persist(ctx context.Context, d *event.Draft) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	evt := event.NewEvent(d)

	evt.LocationID, err = getOrCreateLocation(ctx, tx, d.Record)
	if err != nil {
		return 0, err
	}
	evt.OrganizationID, err = getOrCreateOrganization(ctx, tx, d.Record.Organizer)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO events (
			title, description, category, date, start_time, end_date, end_time,
			image_url, external_url, location_id, organization_id, created_by, is_scraped
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT ((lower(title))) DO NOTHING
		RETURNING event_id
	`

	var id int64
	err = tx.QueryRowxContext(ctx, query,
		evt.Title, evt.Description, evt.Category,
		evt.Date.Format(dateLayout), evt.StartTime.Format(clockLayout),
		evt.EndDate.Format(dateLayout), evt.EndTime.Format(clockLayout),
		evt.ImageURL, evt.ExternalURL, evt.LocationID, evt.OrganizationID,
		evt.CreatedBy, evt.IsScraped,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, event.ErrDuplicateTitle
	}
	if err != nil {
		if isUniqueViolation(err) {
			return 0, event.ErrDuplicateTitle
		}
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit event: %w", err)
	}
	return id, nil
}

// GetByID returns one event or event.ErrNotFound
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	query := `SELECT ` + eventSelectColumns + ` FROM events WHERE event_id = $1`

	var evt event.Event
	if err := r.db.GetContext(ctx, &evt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", event.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &evt, nil
}

// List returns the events matching f ordered by date and start time.
func (r *EventRepository) List(ctx context.Context, f *filter.Filter) ([]*event.Event, error) {
	where, args := listConditions(f)

	query := `SELECT ` + eventSelectColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, start_time, event_id`

	events := []*event.Event{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// listConditions translates a filter into WHERE clauses with positional
// arguments, matching filter.Filter.Matches.
func listConditions(f *filter.Filter) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if f.IsEmpty() {
		return where, args
	}

	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.DateFrom != nil {
		add("date >= $%d", f.DateFrom.Format(dateLayout))
	}
	if f.DateTo != nil {
		add("date <= $%d", f.DateTo.Format(dateLayout))
	}
	if len(f.Categories) > 0 {
		lowered := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			lowered[i] = strings.ToLower(c)
		}
		add("lower(category) = ANY($%d)", pq.Array(lowered))
	}
	if len(f.Titles) > 0 {
		patterns := make([]string, len(f.Titles))
		for i, t := range f.Titles {
			patterns[i] = "%" + likeEscaper.Replace(strings.ToLower(t)) + "%"
		}
		add("lower(title) LIKE ANY($%d)", pq.Array(patterns))
	}
	if f.Scraped != nil {
		add("is_scraped = $%d", *f.Scraped)
	}
	return where, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// getOrCreateLocation resolves the record's venue to a building-level
// location, matched case-insensitively. Uses INSERT ... ON CONFLICT DO
// NOTHING then SELECT.
func getOrCreateLocation(ctx context.Context, tx *sqlx.Tx, rec *event.Record) (*int64, error) {
	if rec.Location == "" {
		return nil, nil
	}

	insertQuery := `
		INSERT INTO locations (building_name, address, latitude, longitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ((lower(building_name)), (COALESCE(room_number, ''))) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, insertQuery,
		rec.Location, nullString(rec.Address), rec.Latitude, rec.Longitude,
	); err != nil {
		return nil, fmt.Errorf("failed to insert location: %w", err)
	}

	selectQuery := `
		SELECT location_id FROM locations
		WHERE lower(building_name) = lower($1) AND COALESCE(room_number, '') = ''
	`
	var id int64
	if err := tx.GetContext(ctx, &id, selectQuery, rec.Location); err != nil {
		return nil, fmt.Errorf("failed to select location: %w", err)
	}
	return &id, nil
}

// getOrCreateOrganization resolves a host name case-insensitively
func getOrCreateOrganization(ctx context.Context, tx *sqlx.Tx, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}

	insertQuery := `INSERT INTO organizations (name) VALUES ($1) ON CONFLICT ((lower(name))) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insertQuery, name); err != nil {
		return nil, fmt.Errorf("failed to insert organization: %w", err)
	}

	selectQuery := `SELECT organization_id FROM organizations WHERE lower(name) = lower($1)`
	var id int64
	if err := tx.GetContext(ctx, &id, selectQuery, name); err != nil {
		return nil, fmt.Errorf("failed to select organization: %w", err)
	}
	return &id, nil
}
