package validate

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/sanitize"
)

const (
	// DefaultMaxTitle is the longest accepted title in code points
	DefaultMaxTitle = 100
	// DefaultMaxDescription is the length descriptions are clipped to
	DefaultMaxDescription = 1000

	// MaxLocation, MaxAddress and MaxOrganizer match the column widths
	// the text is stored in.
	MaxLocation  = 255
	MaxAddress   = 500
	MaxOrganizer = 255
	// MaxURL is the longest accepted link in code points
	MaxURL = 500
)

// Field names used in failures
const (
	FieldTitle     = "title"
	FieldStartAt   = "start_at"
	FieldEndsAt    = "ends_at"
	FieldWebsite   = "website"
	FieldImage     = "image"
	FieldOrganizer = "organizer"
)

// titlePattern admits letters, digits, marks, whitespace and a small set of
// punctuation. Angle brackets are outside the class.
var titlePattern = regexp.MustCompile(`^[\p{L}\p{M}\p{N}_\s\-.,'!()]+$`)

// Outcome classifies a normalization result
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	Expired
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Failure names the field that made a record unusable
type Failure struct {
	Field  string
	Reason string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("invalid %s: %s", f.Field, f.Reason)
}

// Result is the outcome of normalizing one raw record
type Result struct {
	Outcome Outcome
	Record  *event.Record
	Failure *Failure
}

// Config bounds the normalizer
type Config struct {
	MaxTitle       int
	MaxDescription int
	// Reference is the offset bare dates are expanded in
	Reference *time.Location
	// Now is the clock used by the recency check
	Now func() time.Time
}

// DefaultConfig returns the production limits with UTC as reference
func DefaultConfig() Config {
	return Config{
		MaxTitle:       DefaultMaxTitle,
		MaxDescription: DefaultMaxDescription,
		Reference:      time.UTC,
		Now:            time.Now,
	}
}

// Normalizer coerces and validates raw records
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer. Zero config fields fall back to defaults.
func New(cfg Config) *Normalizer {
	def := DefaultConfig()
	if cfg.MaxTitle <= 0 {
		cfg.MaxTitle = def.MaxTitle
	}
	if cfg.MaxDescription <= 0 {
		cfg.MaxDescription = def.MaxDescription
	}
	if cfg.Reference == nil {
		cfg.Reference = def.Reference
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Normalizer{cfg: cfg}
}

// Normalize converts one raw record
func (n *Normalizer) Normalize(raw event.RawRecord) Result {
	rec, fail := n.Build(raw, sanitize.Text)
	if fail != nil {
		return Result{Outcome: Rejected, Failure: fail}
	}
	if event.IsPast(rec.StartAt, n.cfg.Now()) {
		return Result{Outcome: Expired, Record: rec}
	}
	return Result{Outcome: Accepted, Record: rec}
}

// Build applies every field rule except the recency check. describe sanitizes
// the description and bounds it to the given length, e.g. sanitize.Text or
// sanitize.RichText.
func (n *Normalizer) Build(raw event.RawRecord, describe func(string, int) string) (*event.Record, *Failure) {
	title, fail := n.Title(raw.Title)
	if fail != nil {
		return nil, fail
	}

	start, end, fail := n.Interval(raw.StartAt, raw.EndsAt)
	if fail != nil {
		return nil, fail
	}

	website, fail := URL(FieldWebsite, raw.Website)
	if fail != nil {
		return nil, fail
	}
	image, fail := URL(FieldImage, raw.Image)
	if fail != nil {
		return nil, fail
	}

	return &event.Record{
		Title:       title,
		Description: describe(raw.Description, n.cfg.MaxDescription),
		StartAt:     start,
		EndsAt:      end,
		Location:    sanitize.Text(raw.Location, MaxLocation),
		Address:     sanitize.Text(raw.Address, MaxAddress),
		Latitude:    Coordinate(raw.Latitude, 90),
		Longitude:   Coordinate(raw.Longitude, 180),
		Image:       image,
		Website:     website,
		Organizer:   sanitize.Text(raw.Organizer, MaxOrganizer),
	}, nil
}

// Title normalizes whitespace and checks the character class and length
func (n *Normalizer) Title(s string) (string, *Failure) {
	title := sanitize.NormalizeWhitespace(s)
	switch {
	case title == "":
		return "", &Failure{Field: FieldTitle, Reason: "required"}
	case strings.ContainsAny(title, "<>"):
		return "", &Failure{Field: FieldTitle, Reason: "contains markup delimiters"}
	case utf8.RuneCountInString(title) > n.cfg.MaxTitle:
		return "", &Failure{Field: FieldTitle, Reason: fmt.Sprintf("longer than %d characters", n.cfg.MaxTitle)}
	case !titlePattern.MatchString(title):
		return "", &Failure{Field: FieldTitle, Reason: "contains invalid characters"}
	}
	return title, nil
}

// Interval parses both bounds and requires end strictly after start
func (n *Normalizer) Interval(startRaw, endRaw string) (time.Time, time.Time, *Failure) {
	start, err := event.ParseTimestamp(startRaw, event.StartOfDay, n.cfg.Reference)
	if err != nil {
		return time.Time{}, time.Time{}, &Failure{Field: FieldStartAt, Reason: err.Error()}
	}
	end, err := event.ParseTimestamp(endRaw, event.EndOfDay, n.cfg.Reference)
	if err != nil {
		return time.Time{}, time.Time{}, &Failure{Field: FieldEndsAt, Reason: err.Error()}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, &Failure{Field: FieldEndsAt, Reason: "must be after start_at"}
	}
	return start, end, nil
}

// URL returns s when it is an absolute http(s) URL of at most MaxURL code
// points, "" when s is blank, and a failure otherwise.
func URL(field, s string) (string, *Failure) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", &Failure{Field: field, Reason: "not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &Failure{Field: field, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return "", &Failure{Field: field, Reason: "missing host"}
	}
	out := u.String()
	if utf8.RuneCountInString(out) > MaxURL {
		return "", &Failure{Field: field, Reason: fmt.Sprintf("longer than %d characters", MaxURL)}
	}
	return out, nil
}

// Coordinate parses a latitude or longitude. Anything that is not a finite
// number within ±limit becomes nil.
func Coordinate(s string, limit float64) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return nil
	}
	return &v
}
