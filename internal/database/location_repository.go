package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

// LocationRepository handles database operations for locations.
type LocationRepository struct {
	db *sqlx.DB
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// UpsertLocation finds a location by building name (case-insensitive) and
// room, creating it when missing. Address and coordinates set on loc
// overwrite the stored values; unset ones are kept.
func (r *LocationRepository) UpsertLocation(ctx context.Context, loc *event.Location) (int64, error) {
	query := `
		INSERT INTO locations (building_name, room_number, address, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((lower(building_name)), (COALESCE(room_number, ''))) DO UPDATE SET
			address = COALESCE(EXCLUDED.address, locations.address),
			latitude = COALESCE(EXCLUDED.latitude, locations.latitude),
			longitude = COALESCE(EXCLUDED.longitude, locations.longitude)
		RETURNING location_id
	`

	var id int64
	err := r.db.QueryRowxContext(ctx, query,
		loc.BuildingName, loc.RoomNumber, loc.Address, loc.Latitude, loc.Longitude,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert location %q: %w", loc.BuildingName, err)
	}
	return id, nil
}

// List returns every location ordered by name.
func (r *LocationRepository) List(ctx context.Context) ([]*event.Location, error) {
	query := `
		SELECT location_id, building_name, room_number, address, latitude, longitude, created_at
		FROM locations
		ORDER BY lower(building_name), room_number NULLS FIRST
	`

	locations := []*event.Location{}
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}
