package cli

import (
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/database"
)

func newRunsCmd(a *app) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := ParseOutputFormat(format)
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := database.NewRunRepository(db).Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return WriteRuns(a.stdout, runs, outFormat)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")

	return cmd
}
