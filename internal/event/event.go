package event

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScrapedCategory is the category given to every ingested event
const ScrapedCategory = "scraped"

var (
	// ErrDuplicateTitle is returned by stores when an event with the same title exists
	ErrDuplicateTitle = errors.New("event title already exists")
	// ErrNotFound is returned by stores for an unknown event ID
	ErrNotFound = errors.New("event not found")
)

// RawRecord is one event object as found in a page, before any coercion.
// Empty strings mean the source did not supply the field.
type RawRecord struct {
	Title       string `json:"title"`
	StartAt     string `json:"start_at"`
	EndsAt      string `json:"ends_at"`
	Location    string `json:"location"`
	Address     string `json:"address"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Website     string `json:"website"`
	Organizer   string `json:"organizer,omitempty"`
}

// Record is a validated event. Empty strings and nil coordinates are absent values.
type Record struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartAt     time.Time `json:"start_at"`
	EndsAt      time.Time `json:"ends_at"`
	Location    string    `json:"location,omitempty"`
	Address     string    `json:"address,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Image       string    `json:"image,omitempty"`
	Website     string    `json:"website,omitempty"`
	Organizer   string    `json:"organizer,omitempty"`
}

// Draft is a record ready to be stored
type Draft struct {
	Record    *Record
	Category  string
	Scraped   bool
	CreatedBy string
}

// NewScrapedDraft wraps a record produced by ingestion
func NewScrapedDraft(rec *Record, category string) *Draft {
	if category == "" {
		category = ScrapedCategory
	}
	return &Draft{Record: rec, Category: category, Scraped: true}
}

// Event is a persisted event row
type Event struct {
	ID             int64     `db:"event_id" json:"event_id"`
	Title          string    `db:"title" json:"title"`
	Description    *string   `db:"description" json:"description,omitempty"`
	Category       string    `db:"category" json:"category"`
	Date           time.Time `db:"date" json:"date"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	EndTime        time.Time `db:"end_time" json:"end_time"`
	ImageURL       *string   `db:"image_url" json:"image_url,omitempty"`
	ExternalURL    *string   `db:"external_url" json:"external_url,omitempty"`
	LocationID     *int64    `db:"location_id" json:"location_id,omitempty"`
	OrganizationID *int64    `db:"organization_id" json:"organization_id,omitempty"`
	CreatedBy      *string   `db:"created_by" json:"created_by,omitempty"`
	IsScraped      bool      `db:"is_scraped" json:"is_scraped"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Location is a venue. RoomNumber is empty for building-level venues.
type Location struct {
	ID           int64     `db:"location_id" json:"location_id"`
	BuildingName string    `db:"building_name" json:"building_name"`
	RoomNumber   *string   `db:"room_number" json:"room_number,omitempty"`
	Address      *string   `db:"address" json:"address,omitempty"`
	Latitude     *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64  `db:"longitude" json:"longitude,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Organization is a hosting group
type Organization struct {
	ID        int64     `db:"organization_id" json:"organization_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewEvent builds the row for a draft. Date and clock fields are taken in the
// record's own offset so the stored day matches what the source listed.
func NewEvent(d *Draft) *Event {
	rec := d.Record
	start, end := rec.StartAt, rec.EndsAt.In(rec.StartAt.Location())
	evt := &Event{
		Title:       rec.Title,
		Description: optional(rec.Description),
		Category:    d.Category,
		Date:        DateOf(start),
		StartTime:   ClockOf(start),
		EndDate:     DateOf(end),
		EndTime:     ClockOf(end),
		ImageURL:    optional(rec.Image),
		ExternalURL: optional(rec.Website),
		CreatedBy:   optional(d.CreatedBy),
		IsScraped:   d.Scraped,
	}
	return evt
}

// StartAt returns the stored wall-clock start. The source offset is not
// persisted, so the result carries UTC as a placeholder zone.
func (e *Event) StartAt() time.Time {
	return combine(e.Date, e.StartTime)
}

// EndsAt returns the stored wall-clock end
func (e *Event) EndsAt() time.Time {
	return combine(e.EndDate, e.EndTime)
}

// GenerateID creates a deterministic identifier from the title and start,
// used where an external system needs a stable key (calendar UIDs).
func GenerateID(title string, start time.Time) string {
	h := sha1.New()
	h.Write([]byte(strings.TrimSpace(title) + "|" + start.UTC().Format(time.RFC3339)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func combine(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC)
}
