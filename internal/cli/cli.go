package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/ducksgather/internal/config"
	"github.com/pfrederiksen/ducksgather/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitAborted means an ingestion run ended in the aborted state
	ExitAborted = 2
)

// exitError carries a process exit code through cobra
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// app is the state shared by every subcommand
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	log    *logger.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewRootCmd creates the root command writing to the given streams
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "ducksgather",
		Short: "Aggregate campus events from the university calendar",
		Long: `ducksgather scrapes the campus event calendar, cleans and validates each
listing, skips events that are already stored and saves the rest. It also
serves the stored events over HTTP.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./config.yaml or ./config/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level: debug, info, warn, error")

	cmd.AddCommand(
		newIngestCmd(a),
		newExportCmd(a),
		newScheduleCmd(a),
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newRunsCmd(a),
		newUserCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewWithConfig(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	logger.SetDefault(log)

	a.cfg = cfg
	a.log = log
	return nil
}

// Execute runs the CLI and exits the process
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}
