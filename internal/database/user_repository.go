package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

// ErrUserNotFound is returned when a user ID is unknown
var ErrUserNotFound = errors.New("user not found")

// DefaultRole is assumed for users without a stored row
const DefaultRole = "user"

// User is an application account
type User struct {
	ID        string    `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	FullName  *string   `db:"full_name" json:"full_name,omitempty"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserRepository handles database operations for users and their saved events.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns one user or ErrUserNotFound
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT user_id, email, full_name, role, created_at, updated_at FROM users WHERE user_id = $1`

	var u User
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// Role returns the stored role of a user, or DefaultRole when the user has
// no row yet.
func (r *UserRepository) Role(ctx context.Context, id string) (string, error) {
	query := `SELECT role FROM users WHERE user_id = $1`

	var role string
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultRole, nil
		}
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	return role, nil
}

// Ensure creates the user row on first contact. Existing rows are unchanged.
func (r *UserRepository) Ensure(ctx context.Context, id, email string) error {
	query := `INSERT INTO users (user_id, email) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, id, email); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// SetRole changes a user's role, creating the row when needed.
func (r *UserRepository) SetRole(ctx context.Context, id, email, role string) error {
	query := `
		INSERT INTO users (user_id, email, role) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, id, email, role); err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	return nil
}

// SaveEvent records a user's interest in an event. Saving twice is a no-op.
func (r *UserRepository) SaveEvent(ctx context.Context, userID string, eventID int64) error {
	query := `INSERT INTO user_events (user_id, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID, eventID); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// UnsaveEvent removes a saved event. It reports whether a row was removed.
func (r *UserRepository) UnsaveEvent(ctx context.Context, userID string, eventID int64) (bool, error) {
	query := `DELETE FROM user_events WHERE user_id = $1 AND event_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, eventID)
	if err := execRequireRows(result, err, sql.ErrNoRows); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to unsave event: %w", err)
	}
	return true, nil
}

// SavedEvents lists a user's saved events ordered by date and start time.
func (r *UserRepository) SavedEvents(ctx context.Context, userID string) ([]*event.Event, error) {
	query := `
		SELECT ` + prefixed("e.", eventSelectColumns) + `
		FROM events e
		JOIN user_events ue ON ue.event_id = e.event_id
		WHERE ue.user_id = $1
		ORDER BY e.date, e.start_time, e.event_id
	`

	events := []*event.Event{}
	if err := r.db.SelectContext(ctx, &events, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list saved events: %w", err)
	}
	return events, nil
}
