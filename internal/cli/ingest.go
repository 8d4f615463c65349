package cli

import (
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/export"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
)

type ingestFlags struct {
	url      string
	store    string
	dataDir  string
	format   string
	maxPages int
	dryRun   bool
}

func newIngestCmd(a *app) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scrape the calendar once and store new events",
		Long: `Fetch listing pages until the calendar runs out, validate every event,
skip titles that are already stored and save the rest.

Exits 0 when the run completes and 2 when it is aborted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runIngest(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.url, "url", "", "Calendar base URL (default from config)")
	cmd.Flags().StringVar(&f.store, "store", "", "Event store: postgres or snapshot (default from config)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Snapshot directory for --store snapshot")
	cmd.Flags().StringVar(&f.format, "format", "text", "Report format: text or json")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "Page cap (default from config)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Run the pipeline without storing anything")

	return cmd
}

func (a *app) runIngest(cmd *cobra.Command, f ingestFlags) error {
	format, err := ParseOutputFormat(f.format)
	if err != nil {
		return err
	}

	var (
		b     *backend
		store ingest.Store
	)
	if f.dryRun {
		store = export.NewCollector()
	} else {
		b, err = a.openBackend(f.store, f.dataDir)
		if err != nil {
			return err
		}
		defer b.Close()
		store = b.events
	}

	p, err := a.newPipeline(f.url, f.maxPages, b)
	if err != nil {
		return err
	}
	defer p.Close()

	report, runErr := p.orchestrator(store).Run(cmd.Context())
	if err := WriteReport(a.stdout, report, format, f.dryRun); err != nil {
		return err
	}
	if runErr != nil {
		return &exitError{code: ExitAborted, err: runErr}
	}
	return nil
}
