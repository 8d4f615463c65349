package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/export"
	"github.com/pfrederiksen/ducksgather/internal/logger"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		url      string
		out      string
		format   string
		sortBy   string
		name     string
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Scrape the calendar and write the validated events to a file",
		Long: `Run the scrape and validation steps without touching storage and write
the surviving records as CSV, XLSX or an iCalendar feed.

CSV and XLSX use the columns
  title,start_at,ends_at,location,address,latitude,longitude,description,image,website`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmtKind, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			order, err := ParseSortOrder(sortBy)
			if err != nil {
				return err
			}

			p, err := a.newPipeline(url, maxPages, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			collector := export.NewCollector()
			report, runErr := p.orchestrator(collector).Run(cmd.Context())
			if runErr != nil {
				return &exitError{code: ExitAborted, err: runErr}
			}

			recs := collector.Records()
			sortRecords(recs, order)

			w, closeOut, err := openOutput(out, a.stdout)
			if err != nil {
				return err
			}
			if err := export.Write(w, fmtKind, recs, name, time.Now()); err != nil {
				_ = closeOut()
				return fmt.Errorf("writing export: %w", err)
			}
			if err := closeOut(); err != nil {
				return fmt.Errorf("closing %s: %w", out, err)
			}

			a.log.Info("Export written", logger.Fields{
				"records": len(recs),
				"format":  string(fmtKind),
				"output":  out,
				"pages":   report.Pages,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Calendar base URL (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file, - for stdout")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv, xlsx or ics")
	cmd.Flags().StringVar(&sortBy, "sort", "none", "Sort order: none, date, title or location")
	cmd.Flags().StringVar(&name, "name", "Campus Events", "Calendar name for ics output")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Page cap (default from config)")

	return cmd
}

// openOutput returns stdout for "-" and a created file otherwise
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
