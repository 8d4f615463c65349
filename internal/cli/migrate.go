package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return database.MigrateUp(db.DB, a.log.Named("migrate"))
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return database.MigrateDown(db.DB, steps, a.log.Named("migrate"))
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			v, dirty, err := database.MigrationVersion(db.DB)
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintf(a.stdout, "version %d (%s)\n", v, state)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
