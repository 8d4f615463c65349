package cli

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/api"
	"github.com/pfrederiksen/ducksgather/internal/auth"
	"github.com/pfrederiksen/ducksgather/internal/database"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/metrics"
	"github.com/pfrederiksen/ducksgather/internal/submission"
)

// tokenTTL is the lifetime of tokens this service issues itself
const tokenTTL = time.Hour

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		store   string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the events HTTP API",
		Long: `Serve stored events over HTTP.

  GET  /health
  GET  /metrics
  GET  /api/events?category=&from=&to=&q=&scraped=
  GET  /api/events/:id
  POST /api/events                       (bearer token, coordinator or admin)
  GET|PUT|DELETE /api/users/me/saved/:id (bearer token)

Event submission and saved events need the postgres store and a configured
JWT secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Address
			}

			b, err := a.openBackend(store, dataDir)
			if err != nil {
				return err
			}
			defer b.Close()

			deps, err := a.apiDeps(b)
			if err != nil {
				return err
			}
			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			return api.Serve(cmd.Context(), addr, api.NewRouter(deps), a.log.Named("http"))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&store, "store", "", "Event store: postgres or snapshot (default from config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Snapshot directory for --store snapshot")

	return cmd
}

func (a *app) apiDeps(b *backend) (api.Deps, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := api.Deps{
		Events:   b.reader,
		Gatherer: registry,
		HTTP:     metrics.NewHTTP(registry),
		Logger:   a.log.Named("http"),
	}

	if a.cfg.Auth.JWTSecret == "" {
		a.log.Warn("No JWT secret configured, authenticated routes are disabled", nil)
		return deps, nil
	}
	deps.Tokens = auth.NewJWTManager(a.cfg.Auth.JWTSecret, tokenTTL, a.cfg.Auth.Issuer)

	if b.db == nil {
		a.log.Warn("Snapshot store has no user table, submission and saved events are disabled", nil)
		return deps, nil
	}

	normCfg, err := a.cfg.NormalizerConfig()
	if err != nil {
		return api.Deps{}, err
	}
	users := database.NewUserRepository(b.db)
	deps.Saved = users
	deps.Submitter = submission.NewService(users, b.events, normCfg, submission.WithLogger(a.log.Named("submission")))

	a.log.Info("Authenticated routes enabled", logger.Fields{"issuer": a.cfg.Auth.Issuer})
	return deps, nil
}
