// Package dedupe finds candidate events whose titles are already stored.
//
// Titles are compared after whitespace normalization and without regard to
// case, the same rule stores apply to venue and host names. The check is a
// single batched query per call and has no side effects, so repeating it
// against unchanged storage gives the same answer.
package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/sanitize"
)

// TitleQuerier reports which of the given titles already exist, matching
// case-insensitively. It returns the stored spelling.
type TitleQuerier interface {
	ExistingTitles(ctx context.Context, titles []string) ([]string, error)
}

// Filter checks candidates against storage
type Filter struct {
	store TitleQuerier
}

// New creates a Filter over store
func New(store TitleQuerier) *Filter {
	return &Filter{store: store}
}

// Existing returns the keys (see Key) of the titles already present in
// storage. Empty input returns an empty set without querying.
func (f *Filter) Existing(ctx context.Context, titles []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	query := queryTitles(titles)
	if len(query) == 0 {
		return found, nil
	}

	existing, err := f.store.ExistingTitles(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("checking existing titles: %w", err)
	}
	for _, title := range existing {
		found[Key(title)] = struct{}{}
	}
	return found, nil
}

// Partition splits records into those safe to insert and those that are
// duplicates, either of stored events or of an earlier record in the batch.
// Records keep their input order.
func (f *Filter) Partition(ctx context.Context, records []*event.Record) (fresh, dupes []*event.Record, err error) {
	titles := make([]string, 0, len(records))
	for _, rec := range records {
		titles = append(titles, rec.Title)
	}

	existing, err := f.Existing(ctx, titles)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		key := Key(rec.Title)
		if key == "" {
			dupes = append(dupes, rec)
			continue
		}
		if _, ok := existing[key]; ok {
			dupes = append(dupes, rec)
			continue
		}
		if _, ok := seen[key]; ok {
			dupes = append(dupes, rec)
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh, dupes, nil
}

// Key is the comparison form of a title
func Key(title string) string {
	return strings.ToLower(sanitize.NormalizeWhitespace(title))
}

// queryTitles normalizes whitespace and drops blanks and titles that differ
// only in case. The first spelling wins.
func queryTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		norm := sanitize.NormalizeWhitespace(t)
		if norm == "" {
			continue
		}
		k := strings.ToLower(norm)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, norm)
	}
	return out
}
