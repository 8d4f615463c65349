package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/auth"
	"github.com/pfrederiksen/ducksgather/internal/database"
	"github.com/pfrederiksen/ducksgather/internal/logger"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user roles and tokens",
	}

	role := &cobra.Command{
		Use:   "role <user-id> <email> <user|coordinator|admin>",
		Short: "Set a user's role, creating the user when needed",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			r, err := auth.ParseRole(args[2])
			if err != nil {
				return err
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.NewUserRepository(db).SetRole(cmd.Context(), id.String(), args[1], string(r)); err != nil {
				return err
			}
			a.log.Info("User role updated", logger.Fields{"user_id": id.String(), "role": string(r)})
			fmt.Fprintf(a.stdout, "%s is now %s\n", args[1], r)
			return nil
		},
	}

	var ttl time.Duration
	token := &cobra.Command{
		Use:   "token <user-id> <email>",
		Short: "Issue a bearer token signed with the configured secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			signed, err := auth.NewJWTManager(a.cfg.Auth.JWTSecret, ttl, a.cfg.Auth.Issuer).GenerateToken(id.String(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, signed)
			return nil
		},
	}
	token.Flags().DurationVar(&ttl, "ttl", tokenTTL, "Token lifetime")

	cmd.AddCommand(role, token)
	return cmd
}
