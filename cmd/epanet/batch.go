package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/milad-ghiami/EPANET/internal/logging"
	"github.com/milad-ghiami/EPANET/internal/runs"
	"github.com/milad-ghiami/EPANET/toolkit"
)

type batchOptions struct {
	OutDir      string
	Format      string
	Concurrency int
	FailFast    bool
}

func newBatchCommand(root *rootOptions) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <input>...",
		Short: "Run several simulations concurrently",
		Long: `Run a complete simulation for every input, several at a time. Each run
is an independent project writing <name>.rpt and <name>.<format> into the
output directory.

Example:
  epanet batch --out-dir runs --format db scenarios/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.OutDir, "out-dir", "o", ".", "directory for reports and results")
	cmd.Flags().StringVar(&opts.Format, "format", "bin", "results format (bin|db)")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", 0, "simulations run at once (default from config)")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop starting new runs after the first failure")
	return cmd
}

func runBatch(cmd *cobra.Command, root *rootOptions, opts *batchOptions, inputs []string) error {
	switch opts.Format {
	case "bin", "db":
	default:
		return fmt.Errorf("invalid results format %q (valid: bin, db)", opts.Format)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = root.cfg.Batch.Concurrency
	}

	reg := runs.NewRegistry()
	for _, input := range inputs {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		if err := reg.Add(runs.Run{
			ID:      base,
			Input:   input,
			Report:  filepath.Join(opts.OutDir, base+".rpt"),
			Results: filepath.Join(opts.OutDir, base+"."+opts.Format),
		}); err != nil {
			return err
		}
	}

	var mu sync.Mutex
	stdout := cmd.OutOrStdout()
	unsubscribe := reg.Subscribe(func(e runs.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e.Run.State {
		case runs.Succeeded:
			fmt.Fprintf(stdout, "%s: ok in %s (%s)\n", e.Run.Input, e.Run.Duration.Round(time.Millisecond), e.Run.Report)
		case runs.Failed:
			fmt.Fprintf(stdout, "%s: failed: %v\n", e.Run.Input, e.Run.Err)
		}
	})
	defer unsubscribe()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, run := range reg.List() {
		g.Go(func() error {
			if opts.FailFast && gctx.Err() != nil {
				return nil
			}
			_ = reg.Start(run.ID)
			root.batch.RunStarted()
			start := time.Now()
			err := toolkit.RunSimulation(run.Input, run.Report, run.Results, nil,
				toolkit.WithContext(logging.ContextWithProjectID(gctx, run.ID)),
				toolkit.WithMetrics(root.solver),
			)
			root.batch.RunFinished(time.Since(start), err)
			_ = reg.Finish(run.ID, err)
			if err != nil && opts.FailFast {
				return err
			}
			return nil
		})
	}
	waitErr := g.Wait()

	var errs error
	for _, run := range reg.List() {
		if run.State == runs.Failed {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", run.Input, run.Err))
		}
	}
	if errs != nil {
		return fmt.Errorf("%d of %d simulations failed: %w", len(multierr.Errors(errs)), len(inputs), errs)
	}
	return waitErr
}
