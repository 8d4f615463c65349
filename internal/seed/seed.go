// Package seed loads a building list and registers each building as a
// building-level location.
package seed

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/logger"
)

// Building is one entry of a building list. The list may be YAML or JSON.
type Building struct {
	BuildingName string   `yaml:"building_name"`
	Address      string   `yaml:"address"`
	Latitude     *float64 `yaml:"latitude"`
	Longitude    *float64 `yaml:"longitude"`
}

// LocationUpserter creates a location or fills in the address and
// coordinates of an existing one with the same building and room.
type LocationUpserter interface {
	UpsertLocation(ctx context.Context, loc *event.Location) (int64, error)
}

// Result counts what a seed pass did
type Result struct {
	Seeded  int
	Skipped int
}

// LoadBuildings decodes a building list
func LoadBuildings(r io.Reader) ([]Building, error) {
	var buildings []Building
	if err := yaml.NewDecoder(r).Decode(&buildings); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding building list: %w", err)
	}
	return buildings, nil
}

// LoadFile decodes the building list at path
func LoadFile(path string) ([]Building, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening building list: %w", err)
	}
	defer f.Close()
	return LoadBuildings(f)
}

// Seed upserts every named building. Entries without a name are skipped;
// coordinates outside their valid range are dropped.
func Seed(ctx context.Context, store LocationUpserter, buildings []Building, log *logger.Logger) (Result, error) {
	var res Result
	for _, b := range buildings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name := strings.TrimSpace(b.BuildingName)
		if name == "" {
			res.Skipped++
			continue
		}

		loc := &event.Location{
			BuildingName: name,
			Address:      optional(b.Address),
			Latitude:     inRange(b.Latitude, 90),
			Longitude:    inRange(b.Longitude, 180),
		}
		id, err := store.UpsertLocation(ctx, loc)
		if err != nil {
			return res, fmt.Errorf("seeding %q: %w", name, err)
		}
		log.Debug("Seeded location", logger.Fields{"location_id": id, "building": name})
		res.Seeded++
	}

	log.Info("Seeded locations", logger.Fields{"seeded": res.Seeded, "skipped": res.Skipped})
	return res, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func inRange(v *float64, limit float64) *float64 {
	if v == nil || math.IsNaN(*v) || *v < -limit || *v > limit {
		return nil
	}
	return v
}
