package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/pfrederiksen/ducksgather/internal/database"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --format value
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
}

// reportOutput is the JSON form of a run report
type reportOutput struct {
	*ingest.Report
	DurationMS int64 `json:"duration_ms"`
	DryRun     bool  `json:"dry_run,omitempty"`
}

// WriteReport writes a run report in the specified format
func WriteReport(w io.Writer, report *ingest.Report, format OutputFormat, dryRun bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, reportOutput{Report: report, DurationMS: report.Duration().Milliseconds(), DryRun: dryRun})
	case FormatText:
		return writeReportText(w, report, dryRun)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs v as indented JSON
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeReportText(w io.Writer, r *ingest.Report, dryRun bool) error {
	title := fmt.Sprintf("Run %s: %s", shortID(r.RunID), r.State)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Step", "Count"})
	t.AppendRows([]table.Row{
		{"Pages fetched", r.Pages},
		{"Records extracted", r.Extracted},
		{"Unparseable blocks", r.ParseErrors},
		{"Validated", r.Validated},
		{"Rejected", r.Rejected},
		{"Expired", r.Expired},
		{"Duplicates", r.Duplicates},
		{"Stored", r.Persisted},
		{"Insert failures", r.Failed},
	})
	t.AppendFooter(table.Row{"Stopped", string(r.StopReason)})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()

	fmt.Fprintf(w, "Source: %s\nDuration: %s\n", r.BaseURL, r.Duration().Round(time.Millisecond))
	if dryRun {
		fmt.Fprintln(w, "Dry run: nothing was stored")
	}
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}
	return nil
}

// WriteRuns lists recorded runs
func WriteRuns(w io.Writer, runs []*database.Run, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Status", "Stop", "Pages", "Extracted", "Stored", "Dupes", "Rejected", "Failed"})
	for _, r := range runs {
		stop := ""
		if r.StopReason != nil {
			stop = *r.StopReason
		}
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.StartedAt.UTC().Format("2006-01-02 15:04"),
			r.Status,
			stop,
			r.Pages,
			r.Extracted,
			r.Persisted,
			r.Duplicates,
			r.Rejected,
			r.Failed,
		})
	}
	t.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
