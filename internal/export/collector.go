package export

import (
	"context"
	"strings"
	"sync"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

// Collector is an in-memory ingestion store. It keeps each accepted record
// in arrival order and applies the same case-insensitive title uniqueness a
// real store would.
type Collector struct {
	mu sync.Mutex
	// lowercased title to stored spelling
	titles map[string]string
	drafts []*event.Draft
}

// NewCollector returns an empty collector
func NewCollector() *Collector {
	return &Collector{titles: make(map[string]string)}
}

// ExistingTitles reports which titles were already collected
func (c *Collector) ExistingTitles(_ context.Context, titles []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var found []string
	for _, t := range titles {
		if spelling, ok := c.titles[strings.ToLower(t)]; ok {
			found = append(found, spelling)
		}
	}
	return found, nil
}

// Persist records the draft and returns its 1-based position
func (c *Collector) Persist(_ context.Context, d *event.Draft) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.ToLower(d.Record.Title)
	if _, ok := c.titles[key]; ok {
		return 0, event.ErrDuplicateTitle
	}
	c.titles[key] = d.Record.Title
	c.drafts = append(c.drafts, d)
	return int64(len(c.drafts)), nil
}

// Records returns the collected records in arrival order
func (c *Collector) Records() []*event.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs := make([]*event.Record, len(c.drafts))
	for i, d := range c.drafts {
		recs[i] = d.Record
	}
	return recs
}
