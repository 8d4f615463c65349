package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

const jsonLDSelector = `script[type="application/ld+json"]`

// Extraction is the result of reading one page
type Extraction struct {
	// Blocks is the number of JSON-LD script blocks found
	Blocks      int
	Records     []event.RawRecord
	ParseErrors []*ParseError
}

// Extract reads every JSON-LD block in html and returns the Event objects it
// finds. pageURL is used to resolve relative links. A page without blocks
// yields an empty Extraction and no error.
func Extract(html, pageURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	out := &Extraction{Records: make([]event.RawRecord, 0)}

	doc.Find(jsonLDSelector).Each(func(i int, sel *goquery.Selection) {
		out.Blocks++

		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		objects, err := decodeBlock(text)
		if err != nil {
			out.ParseErrors = append(out.ParseErrors, &ParseError{Block: i, Err: err})
			return
		}

		for _, obj := range objects {
			if isEvent(obj) {
				out.Records = append(out.Records, newRawRecord(obj, base))
			}
		}
	})

	return out, nil
}

// decodeBlock returns the top-level objects of a block: the object itself, the
// members of an array, or the members of an @graph.
func decodeBlock(text string) ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}

	var objects []map[string]any
	var collect func(v any)
	collect = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				collect(item)
			}
		case map[string]any:
			if graph, ok := t["@graph"]; ok {
				collect(graph)
				return
			}
			objects = append(objects, t)
		}
	}
	collect(data)

	return objects, nil
}

// isEvent reports whether the object's @type is Event
func isEvent(obj map[string]any) bool {
	switch t := obj["@type"].(type) {
	case string:
		return t == "Event"
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "Event" {
				return true
			}
		}
	}
	return false
}

// newRawRecord is the single constructor every vendor shape feeds into
func newRawRecord(obj map[string]any, base *url.URL) event.RawRecord {
	loc := parseLocation(obj["location"])

	return event.RawRecord{
		Title:       scalar(obj["name"]),
		StartAt:     scalar(obj["startDate"]),
		EndsAt:      scalar(obj["endDate"]),
		Location:    loc.name,
		Address:     loc.address,
		Latitude:    loc.latitude,
		Longitude:   loc.longitude,
		Description: scalar(obj["description"]),
		Image:       resolve(base, imageURL(obj["image"])),
		Website:     resolve(base, scalar(obj["url"])),
		Organizer:   named(obj["organizer"]),
	}
}

// resolve makes ref absolute against base. Unparseable refs are returned as
// they are so validation can reject them.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
