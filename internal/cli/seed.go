package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		file    string
		store   string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "seed-locations",
		Short: "Create or update building locations from a YAML or JSON list",
		Long: `Read a list of buildings and register each as a building-level location.
Existing buildings keep their row; a provided address or coordinate
replaces the stored one.

Each entry has building_name and optional address, latitude and longitude.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			buildings, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			b, err := a.openBackend(store, dataDir)
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := seed.Seed(cmd.Context(), b.locations, buildings, a.log.Named("seed"))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Seeded %d locations (%d skipped)\n", res.Seeded, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Building list file (required)")
	cmd.Flags().StringVar(&store, "store", "", "Event store: postgres or snapshot (default from config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Snapshot directory for --store snapshot")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
