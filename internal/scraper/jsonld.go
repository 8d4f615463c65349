package scraper

import (
	"encoding/json"
	"strings"
)

// locationShape tags the layout a vendor used for an event's location
type locationShape int

const (
	shapeAbsent locationShape = iota
	// shapeName is a bare string naming the venue
	shapeName
	// shapeFlat carries latitude and longitude on the place itself
	shapeFlat
	// shapeNestedGeo carries them in a geo sub-object
	shapeNestedGeo
)

type place struct {
	shape     locationShape
	name      string
	address   string
	latitude  string
	longitude string
}

// parseLocation detects the shape first and then reads fields for that shape
func parseLocation(v any) place {
	switch t := v.(type) {
	case string:
		return place{shape: shapeName, name: t}
	case []any:
		if len(t) > 0 {
			return parseLocation(t[0])
		}
		return place{}
	case map[string]any:
		p := place{
			name:    scalar(t["name"]),
			address: address(t["address"]),
		}
		if geo, ok := t["geo"].(map[string]any); ok {
			p.shape = shapeNestedGeo
			p.latitude = scalar(geo["latitude"])
			p.longitude = scalar(geo["longitude"])
			return p
		}
		p.shape = shapeFlat
		p.latitude = scalar(t["latitude"])
		p.longitude = scalar(t["longitude"])
		return p
	}
	return place{}
}

// address accepts a plain string or a PostalAddress object
func address(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		parts := make([]string, 0, 4)
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if s := strings.TrimSpace(scalar(t[key])); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return scalar(t["name"])
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// imageURL accepts a URL string, a list of them or an ImageObject
func imageURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s := imageURL(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s := scalar(t["url"]); s != "" {
			return s
		}
		return scalar(t["contentUrl"])
	}
	return ""
}

// named reads a name from a string, an object with a name or a list of either
func named(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return scalar(t["name"])
	case []any:
		if len(t) > 0 {
			return named(t[0])
		}
	}
	return ""
}

// scalar renders strings and numbers as text and everything else as ""
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}
