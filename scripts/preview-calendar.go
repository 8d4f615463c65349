// preview-calendar runs a saved listing page through extraction and
// validation and writes the surviving events as an .ics file, so a page
// captured from the calendar can be checked without touching storage.
//
//	go run ./scripts testdata/fixtures/calendar_page.html
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/calendar"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/scraper"
	"github.com/pfrederiksen/ducksgather/internal/validate"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: preview-calendar <listing.html> [out.ics]")
		os.Exit(2)
	}
	in := os.Args[1]
	out := "preview.ics"
	if len(os.Args) > 2 {
		out = os.Args[2]
	}

	html, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading page: %v\n", err)
		os.Exit(1)
	}

	ext, err := scraper.Extract(string(html), scraper.DefaultBaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting events: %v\n", err)
		os.Exit(1)
	}

	norm := validate.New(validate.DefaultConfig())
	var kept []*event.Record
	for _, raw := range ext.Records {
		res := norm.Normalize(raw)
		switch res.Outcome {
		case validate.Accepted:
			kept = append(kept, res.Record)
		case validate.Rejected:
			fmt.Printf("  rejected %q: %v\n", raw.Title, res.Failure)
		case validate.Expired:
			fmt.Printf("  expired  %q\n", raw.Title)
		}
	}

	// Write to file (owner read/write only)
	ics := calendar.GenerateBulkICS(kept, "Preview", time.Now())
	if err := os.WriteFile(out, []byte(ics), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d JSON-LD blocks, %d events, %d unparseable blocks\n", ext.Blocks, len(ext.Records), len(ext.ParseErrors))
	fmt.Printf("Wrote %d events to %s\n", len(kept), out)
}
