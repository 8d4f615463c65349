package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/filter"
)

// DefaultDataDir is used when no directory is configured
const DefaultDataDir = "~/.local/share/ducksgather"

// Snapshot is the on-disk document
type Snapshot struct {
	Events        []*event.Event        `json:"events"`
	Locations     []*event.Location     `json:"locations"`
	Organizations []*event.Organization `json:"organizations"`
	UpdatedAt     string                `json:"updated_at"`
}

// Storage handles persistence of the snapshot file. Each method loads the
// file, so several processes sharing a directory see each other's writes
// between calls; a run lock keeps their writes apart.
type Storage struct {
	mu      sync.Mutex
	dataDir string
	now     func() time.Time
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}

	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
		now:     time.Now,
	}, nil
}

// Path returns the snapshot file path
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, "snapshot.json")
}

// LoadSnapshot loads the snapshot from disk. A missing file is an empty store.
func (s *Storage) LoadSnapshot() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snapshot, nil
}

// SaveSnapshot writes the snapshot through a temporary file and a rename
func (s *Storage) SaveSnapshot(snapshot *Snapshot) error {
	snapshot.UpdatedAt = s.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// ExistingTitles returns the stored spelling of the given titles that already
// exist. Matching ignores case, the same rule the insert guard in Persist
// applies.
func (s *Storage) ExistingTitles(ctx context.Context, titles []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.LoadSnapshot()
	if err != nil {
		return nil, err
	}

	stored := make(map[string]string, len(snapshot.Events))
	for _, evt := range snapshot.Events {
		stored[strings.ToLower(evt.Title)] = evt.Title
	}

	var found []string
	for _, title := range titles {
		if spelling, ok := stored[strings.ToLower(title)]; ok {
			found = append(found, spelling)
		}
	}
	return found, nil
}

// Persist stores one draft with its location and organization. Either every
// change for the draft reaches disk or none does.
func (s *Storage) Persist(ctx context.Context, d *event.Draft) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.LoadSnapshot()
	if err != nil {
		return 0, err
	}

	for _, evt := range snapshot.Events {
		if strings.EqualFold(evt.Title, d.Record.Title) {
			return 0, event.ErrDuplicateTitle
		}
	}

	now := s.now().UTC()
	evt := event.NewEvent(d)
	evt.LocationID = snapshot.resolveLocation(d.Record, now)
	evt.OrganizationID = snapshot.resolveOrganization(d.Record.Organizer, now)
	evt.ID = nextEventID(snapshot.Events)
	evt.CreatedAt = now
	snapshot.Events = append(snapshot.Events, evt)

	if err := s.SaveSnapshot(snapshot); err != nil {
		return 0, err
	}
	return evt.ID, nil
}

// UpsertLocation finds a building-level location by name, case-insensitively,
// and fills in the address and coordinates that are set on loc. A missing
// location is created.
func (s *Storage) UpsertLocation(ctx context.Context, loc *event.Location) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := s.LoadSnapshot()
	if err != nil {
		return 0, err
	}

	existing := snapshot.findLocation(loc.BuildingName, event.Deref(loc.RoomNumber))
	if existing == nil {
		existing = &event.Location{
			ID:           nextLocationID(snapshot.Locations),
			BuildingName: loc.BuildingName,
			RoomNumber:   loc.RoomNumber,
			CreatedAt:    s.now().UTC(),
		}
		snapshot.Locations = append(snapshot.Locations, existing)
	}
	if loc.Address != nil {
		existing.Address = loc.Address
	}
	if loc.Latitude != nil {
		existing.Latitude = loc.Latitude
	}
	if loc.Longitude != nil {
		existing.Longitude = loc.Longitude
	}

	if err := s.SaveSnapshot(snapshot); err != nil {
		return 0, err
	}
	return existing.ID, nil
}

// List returns the events matching f ordered by date and start time
func (s *Storage) List(ctx context.Context, f *filter.Filter) ([]*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	snapshot, err := s.LoadSnapshot()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	events := f.Apply(snapshot.Events)
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	return events, nil
}

// GetByID retrieves an event by ID from the snapshot
func (s *Storage) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	snapshot, err := s.LoadSnapshot()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	for _, evt := range snapshot.Events {
		if evt.ID == id {
			return evt, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", event.ErrNotFound, id)
}

func (snap *Snapshot) findLocation(name, room string) *event.Location {
	for _, loc := range snap.Locations {
		if strings.EqualFold(loc.BuildingName, name) && event.Deref(loc.RoomNumber) == room {
			return loc
		}
	}
	return nil
}

// resolveLocation returns the ID of the record's venue, creating it when no
// building-level location of that name exists. Records without a venue name
// have no location.
func (snap *Snapshot) resolveLocation(rec *event.Record, now time.Time) *int64 {
	if rec.Location == "" {
		return nil
	}
	if loc := snap.findLocation(rec.Location, ""); loc != nil {
		return &loc.ID
	}

	loc := &event.Location{
		ID:           nextLocationID(snap.Locations),
		BuildingName: rec.Location,
		Latitude:     rec.Latitude,
		Longitude:    rec.Longitude,
		CreatedAt:    now,
	}
	if rec.Address != "" {
		addr := rec.Address
		loc.Address = &addr
	}
	snap.Locations = append(snap.Locations, loc)
	return &loc.ID
}

func (snap *Snapshot) resolveOrganization(name string, now time.Time) *int64 {
	if name == "" {
		return nil
	}
	for _, org := range snap.Organizations {
		if strings.EqualFold(org.Name, name) {
			return &org.ID
		}
	}

	org := &event.Organization{
		ID:        nextOrganizationID(snap.Organizations),
		Name:      name,
		CreatedAt: now,
	}
	snap.Organizations = append(snap.Organizations, org)
	return &org.ID
}

func nextEventID(events []*event.Event) int64 {
	var highest int64
	for _, e := range events {
		if e.ID > highest {
			highest = e.ID
		}
	}
	return highest + 1
}

func nextLocationID(locations []*event.Location) int64 {
	var highest int64
	for _, l := range locations {
		if l.ID > highest {
			highest = l.ID
		}
	}
	return highest + 1
}

func nextOrganizationID(orgs []*event.Organization) int64 {
	var highest int64
	for _, o := range orgs {
		if o.ID > highest {
			highest = o.ID
		}
	}
	return highest + 1
}
