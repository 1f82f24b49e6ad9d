package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/milad-ghiami/EPANET/internal/config"
	"github.com/milad-ghiami/EPANET/internal/logging"
	"github.com/milad-ghiami/EPANET/internal/observability"
)

// rootOptions holds global flags and the state built from them before a
// subcommand runs.
type rootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg      *config.Config
	log      logging.Logger
	registry *prometheus.Registry
	solver   *observability.SolverCollector
	batch    *observability.BatchCollector

	metricsSrv *http.Server
	shutdown   func(context.Context) error
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "epanet",
		Short: "Hydraulic and water-quality simulation of piped networks",
		Long: `Simulate flows, pressures and water quality in a pressurised pipe
network over an extended period.

Network descriptions are JSON or YAML files. Results can be written as a
length-delimited protobuf stream or, for .db paths, a SQLite database.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newBatchCommand(opts))
	cmd.AddCommand(newValidateCommand())

	// PersistentPostRunE is skipped when RunE fails; tear down either way.
	for _, sub := range cmd.Commands() {
		run := sub.RunE
		sub.RunE = func(c *cobra.Command, args []string) error {
			return multierr.Append(run(c, args), opts.teardown(c, args))
		}
	}
	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	o.cfg = cfg

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	o.log = logging.New(lc)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	// Projects created by subcommands pick the logger up from the context.
	cmd.SetContext(logging.ContextWithLogger(ctx, o.log))

	tc := cfg.TracerConfig()
	tc.Writer = cmd.ErrOrStderr()
	shutdown, err := observability.InitTracing(ctx, tc, o.log)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	o.shutdown = shutdown

	o.registry = prometheus.NewRegistry()
	if o.solver, err = observability.NewSolverCollector(o.registry); err != nil {
		return fmt.Errorf("failed to initialise metrics collector: %w", err)
	}
	if o.batch, err = observability.NewBatchCollector(o.registry); err != nil {
		return fmt.Errorf("failed to initialise metrics collector: %w", err)
	}
	if cfg.Metrics.Addr != "" {
		o.metricsSrv = serveMetrics(cfg.Metrics.Addr, o.solver, o.log)
	}
	return nil
}

func (o *rootOptions) teardown(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	observability.ShutdownWithTimeout(ctx, o.shutdown, o.log)
	if o.metricsSrv != nil {
		return o.metricsSrv.Shutdown(ctx)
	}
	return nil
}

func serveMetrics(addr string, collector *observability.SolverCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
