package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/api"
	"github.com/pfrederiksen/ducksgather/internal/ingest"
	"github.com/pfrederiksen/ducksgather/internal/lock"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/metrics"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		spec        string
		store       string
		dataDir     string
		metricsAddr string
		runNow      bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run ingestion on a cron schedule and expose metrics",
		Long: `Run the ingestion pipeline on a standard five-field cron schedule until
interrupted. A tick that fires while the previous run is still going is
skipped. Prometheus metrics are served on --metrics-addr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if spec == "" {
				spec = a.cfg.Schedule.Cron
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.Metrics.Address
			}

			b, err := a.openBackend(store, dataDir)
			if err != nil {
				return err
			}
			defer b.Close()

			p, err := a.newPipeline("", 0, b)
			if err != nil {
				return err
			}
			defer p.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			orch := p.orchestrator(b.events, ingest.WithMetrics(metrics.NewIngest(registry)))

			return a.schedule(cmd.Context(), spec, metricsAddr, runNow, registry, orch)
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron spec (default from config)")
	cmd.Flags().StringVar(&store, "store", "", "Event store: postgres or snapshot (default from config)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Snapshot directory for --store snapshot")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics listen address (default from config)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Also run once at startup")

	return cmd
}

func (a *app) schedule(ctx context.Context, spec, metricsAddr string, runNow bool, registry *prometheus.Registry, orch *ingest.Orchestrator) error {
	log := a.log.Named("schedule")
	cl := cronLogger{log: log}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)

	job := cron.FuncJob(func() { a.scheduledRun(ctx, orch, log) })
	entryID, err := c.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- api.Serve(ctx, metricsAddr, mux, log) }()

	c.Start()
	log.Info("Scheduler started", logger.Fields{"cron": spec, "next_run": c.Entry(entryID).Next})

	if runNow {
		go job.Run()
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	log.Info("Scheduler stopping", nil)
	<-c.Stop().Done()
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	return <-serveErr
}

func (a *app) scheduledRun(ctx context.Context, orch *ingest.Orchestrator, log *logger.Logger) {
	report, err := orch.Run(ctx)
	switch {
	case errors.Is(err, lock.ErrLockNotAcquired):
		log.Info("Skipped run, another ingestion holds the lock", logger.Fields{"run_id": report.RunID})
	case err != nil:
		log.Error("Scheduled run aborted", logger.Fields{"run_id": report.RunID, "stop_reason": string(report.StopReason)}, err)
	default:
		log.Info("Scheduled run finished", logger.Fields{
			"run_id":     report.RunID,
			"persisted":  report.Persisted,
			"duplicates": report.Duplicates,
		})
	}
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logger.Fields {
	fields := make(logger.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
