// Package submission creates events on behalf of signed-in coordinators.
//
// Submitted events go through the same title, interval, URL and duplicate
// rules as scraped ones. Descriptions may keep a small set of formatting
// tags. Only coordinators and admins may submit.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/ducksgather/internal/auth"
	"github.com/pfrederiksen/ducksgather/internal/dedupe"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/sanitize"
	"github.com/pfrederiksen/ducksgather/internal/validate"
)

// MaxCategory bounds the category name in code points
const MaxCategory = 100

// Field names used in failures on top of the normalizer's
const (
	FieldCategory = "category"
	FieldDate     = "date"
)

// ErrDuplicate is returned when an event with the same title exists
var ErrDuplicate = errors.New("an event with this title already exists")

// RoleResolver looks up the stored role of a user
type RoleResolver interface {
	Role(ctx context.Context, userID string) (string, error)
}

// Input is a submitted event. Dates are YYYY-MM-DD and times HH:MM or
// HH:MM:SS, read in the service's reference offset. EndDate defaults to Date.
type Input struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndDate     string `json:"end_date,omitempty"`
	EndTime     string `json:"end_time"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Address     string `json:"address,omitempty"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	Organizer   string `json:"organizer,omitempty"`
}

// Service validates and stores submitted events
type Service struct {
	roles      RoleResolver
	store      ingest.Store
	dedupe     *dedupe.Filter
	normalizer *validate.Normalizer
	reference  *time.Location
	now        func() time.Time
	log        *logger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. cfg supplies the length limits and the
// reference offset submitted dates are read in.
func NewService(roles RoleResolver, store ingest.Store, cfg validate.Config, opts ...Option) *Service {
	s := &Service{
		roles: roles,
		store: store,
		now:   time.Now,
		log:   logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Reference == nil {
		cfg.Reference = time.UTC
	}
	cfg.Now = s.now
	s.reference = cfg.Reference
	s.normalizer = validate.New(cfg)
	s.dedupe = dedupe.New(store)
	return s
}

// Create checks the actor's role, validates in and persists it as a
// non-scraped event created by the actor.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in Input) (*event.Event, error) {
	if actor.ID == "" {
		return nil, auth.ErrForbidden
	}
	stored, err := s.roles.Role(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving role: %w", err)
	}
	role, err := auth.ParseRole(stored)
	if err != nil {
		return nil, fmt.Errorf("resolving role: %w", err)
	}
	if !role.CanCreateEvents() {
		s.log.Warn("Event submission refused", logger.Fields{"user_id": actor.ID, "role": string(role)})
		return nil, auth.ErrForbidden
	}

	draft, err := s.draft(actor, in)
	if err != nil {
		return nil, err
	}

	existing, err := s.dedupe.Existing(ctx, []string{draft.Record.Title})
	if err != nil {
		return nil, fmt.Errorf("checking duplicates: %w", err)
	}
	if _, ok := existing[dedupe.Key(draft.Record.Title)]; ok {
		return nil, ErrDuplicate
	}

	id, err := s.store.Persist(ctx, draft)
	if errors.Is(err, event.ErrDuplicateTitle) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("storing event: %w", err)
	}

	evt := event.NewEvent(draft)
	evt.ID = id
	evt.CreatedAt = s.now().UTC()

	s.log.Info("Event submitted", logger.Fields{
		"event_id": id,
		"title":    draft.Record.Title,
		"user_id":  actor.ID,
	})
	return evt, nil
}

func (s *Service) draft(actor auth.Principal, in Input) (*event.Draft, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{validate.FieldTitle, in.Title},
		{FieldCategory, in.Category},
		{FieldDate, in.Date},
		{"start_time", in.StartTime},
		{"end_time", in.EndTime},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, &validate.Failure{Field: missing[0], Reason: "missing fields: " + strings.Join(missing, ", ")}
	}

	category := sanitize.NormalizeWhitespace(in.Category)
	if utf8.RuneCountInString(category) > MaxCategory {
		return nil, &validate.Failure{Field: FieldCategory, Reason: fmt.Sprintf("longer than %d characters", MaxCategory)}
	}

	start, err := s.timestamp(in.Date, in.StartTime)
	if err != nil {
		return nil, &validate.Failure{Field: validate.FieldStartAt, Reason: err.Error()}
	}
	endDate := in.EndDate
	if strings.TrimSpace(endDate) == "" {
		endDate = in.Date
	}
	end, err := s.timestamp(endDate, in.EndTime)
	if err != nil {
		return nil, &validate.Failure{Field: validate.FieldEndsAt, Reason: err.Error()}
	}

	rec, fail := s.normalizer.Build(event.RawRecord{
		Title:       in.Title,
		StartAt:     start,
		EndsAt:      end,
		Location:    in.Location,
		Address:     in.Address,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Description: in.Description,
		Image:       in.ImageURL,
		Website:     in.ExternalURL,
		Organizer:   in.Organizer,
	}, sanitize.RichText)
	if fail != nil {
		return nil, fail
	}
	if event.IsPast(rec.StartAt, s.now()) {
		return nil, &validate.Failure{Field: FieldDate, Reason: "is in the past"}
	}

	return &event.Draft{
		Record:    rec,
		Category:  category,
		Scraped:   false,
		CreatedBy: actor.ID,
	}, nil
}

var clockLayouts = []string{"15:04:05", "15:04"}

// timestamp joins a day and a clock in the reference offset and renders it
// as RFC 3339 for the normalizer
func (s *Service) timestamp(day, clock string) (string, error) {
	d, err := event.ParseDay(day)
	if err != nil {
		return "", fmt.Errorf("invalid date %q", day)
	}
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		c, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		t := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, s.reference)
		return t.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("invalid time %q", clock)
}
