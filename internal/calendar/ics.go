// Package calendar renders validated event records as an iCalendar feed.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/ducksgather/internal/event"
)

const (
	prodID    = "-//Ducks Gather//ducksgather//EN"
	uidDomain = "ducksgather"
	// lines longer than this many octets are folded
	maxLineOctets = 75
)

// GenerateICS generates a single-event calendar for rec
func GenerateICS(rec *event.Record, now time.Time) string {
	var ics strings.Builder
	writeHeader(&ics, "")
	writeEvent(&ics, rec, now)
	writeLine(&ics, "END:VCALENDAR")
	return ics.String()
}

// GenerateBulkICS generates one calendar holding every record. An empty
// slice yields an empty string; name, when set, becomes X-WR-CALNAME.
func GenerateBulkICS(recs []*event.Record, name string, now time.Time) string {
	if len(recs) == 0 {
		return ""
	}

	var ics strings.Builder
	writeHeader(&ics, name)
	for _, rec := range recs {
		writeEvent(&ics, rec, now)
	}
	writeLine(&ics, "END:VCALENDAR")
	return ics.String()
}

func writeHeader(ics *strings.Builder, name string) {
	writeLine(ics, "BEGIN:VCALENDAR")
	writeLine(ics, "VERSION:2.0")
	writeLine(ics, "PRODID:"+prodID)
	writeLine(ics, "CALSCALE:GREGORIAN")
	writeLine(ics, "METHOD:PUBLISH")
	if name != "" {
		writeLine(ics, "X-WR-CALNAME:"+escapeICS(name))
	}
}

func writeEvent(ics *strings.Builder, rec *event.Record, now time.Time) {
	writeLine(ics, "BEGIN:VEVENT")

	// UID is stable across exports of the same listing
	writeLine(ics, fmt.Sprintf("UID:%s@%s", event.GenerateID(rec.Title, rec.StartAt), uidDomain))
	writeLine(ics, "DTSTAMP:"+formatICSTime(now))
	writeLine(ics, "DTSTART:"+formatICSTime(rec.StartAt))
	writeLine(ics, "DTEND:"+formatICSTime(rec.EndsAt))
	writeLine(ics, "SUMMARY:"+escapeICS(rec.Title))

	if rec.Description != "" {
		writeLine(ics, "DESCRIPTION:"+escapeICS(rec.Description))
	}
	if loc := locationText(rec); loc != "" {
		writeLine(ics, "LOCATION:"+escapeICS(loc))
	}
	if rec.Latitude != nil && rec.Longitude != nil {
		writeLine(ics, fmt.Sprintf("GEO:%s;%s", formatCoord(*rec.Latitude), formatCoord(*rec.Longitude)))
	}
	if rec.Organizer != "" {
		writeLine(ics, "ORGANIZER;CN="+quoteParam(rec.Organizer)+":noreply@"+uidDomain)
	}
	if rec.Website != "" {
		writeLine(ics, "URL:"+rec.Website)
	}
	if rec.Image != "" {
		writeLine(ics, "ATTACH:"+rec.Image)
	}

	writeLine(ics, "STATUS:CONFIRMED")
	writeLine(ics, "SEQUENCE:0")
	writeLine(ics, "TRANSP:OPAQUE")
	writeLine(ics, "END:VEVENT")
}

func locationText(rec *event.Record) string {
	switch {
	case rec.Location != "" && rec.Address != "":
		return rec.Location + ", " + rec.Address
	case rec.Location != "":
		return rec.Location
	default:
		return rec.Address
	}
}

// writeLine terminates with CRLF and folds long content lines
func writeLine(ics *strings.Builder, line string) {
	for len(line) > maxLineOctets {
		cut := maxLineOctets
		// back up to a rune boundary
		for cut > 0 && !isRuneStart(line[cut]) {
			cut--
		}
		ics.WriteString(line[:cut])
		ics.WriteString("\r\n ")
		line = line[cut:]
	}
	ics.WriteString(line)
	ics.WriteString("\r\n")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime string
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeICS escapes special characters for iCalendar text values (RFC 5545)
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func quoteParam(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "'") + `"`
}
