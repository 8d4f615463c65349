// Package export writes validated records as CSV, XLSX or an ICS feed, and
// provides a Store that collects records from an ingestion run instead of
// persisting them.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pfrederiksen/ducksgather/internal/calendar"
	"github.com/pfrederiksen/ducksgather/internal/event"
)

// Format is an output encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatICS  Format = "ics"
)

// Columns is the fixed header of tabular exports
var Columns = []string{
	"title", "start_at", "ends_at", "location", "address",
	"latitude", "longitude", "description", "image", "website",
}

// SheetName is the worksheet that holds XLSX rows
const SheetName = "Events"

// ParseFormat accepts a case-insensitive format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatICS:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format: %q (want csv, xlsx or ics)", s)
}

// Row renders rec in Columns order. Timestamps keep their source offset.
func Row(rec *event.Record) []string {
	return []string{
		rec.Title,
		rec.StartAt.Format(time.RFC3339),
		rec.EndsAt.Format(time.RFC3339),
		rec.Location,
		rec.Address,
		formatCoord(rec.Latitude),
		formatCoord(rec.Longitude),
		rec.Description,
		rec.Image,
		rec.Website,
	}
}

func formatCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// Write encodes recs to w in the given format. name titles the ICS calendar.
func Write(w io.Writer, format Format, recs []*event.Record, name string, now time.Time) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, recs)
	case FormatXLSX:
		return WriteXLSX(w, recs)
	case FormatICS:
		return WriteICS(w, recs, name, now)
	}
	return fmt.Errorf("unknown export format: %q", format)
}

// WriteCSV writes a header row followed by one row per record
func WriteCSV(w io.Writer, recs []*event.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, rec := range recs {
		if err := cw.Write(Row(rec)); err != nil {
			return fmt.Errorf("writing csv row %q: %w", rec.Title, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with one sheet, header first
func WriteXLSX(w io.Writer, recs []*event.Record) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("opening sheet writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(Columns), excelize.RowOpts{}); err != nil {
		return fmt.Errorf("writing xlsx header: %w", err)
	}
	for i, rec := range recs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(Row(rec))); err != nil {
			return fmt.Errorf("writing xlsx row %q: %w", rec.Title, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// WriteICS writes every record into one calendar
func WriteICS(w io.Writer, recs []*event.Record, name string, now time.Time) error {
	_, err := io.WriteString(w, calendar.GenerateBulkICS(recs, name, now))
	return err
}
