package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/interface.report/internal/monitoring"
	"github.com/banshee-data/interface.report/internal/pipeline"
	"github.com/banshee-data/interface.report/internal/storage/sqlite"
	"github.com/banshee-data/interface.report/internal/surface"
)

type buildOptions struct {
	workers        int
	onError        string
	recon          bool
	overwriteCoeff bool
	overwriteRecon bool
	metricsAddr    string
}

func newBuildCmd(a *app) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build <input.json>",
		Short: "Fit intrinsic surfaces to every frame of a trajectory",
		Long: "build fits both intrinsic surfaces of every frame, optionally\n" +
			"reconstructs them, and stores the results. Frames already in the\n" +
			"database are reused unless an overwrite flag is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, a, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.workers, "workers", "w", 1, "frames analysed in parallel")
	f.StringVar(&opts.onError, "on-error", "abort", "frame error policy (abort, skip)")
	f.BoolVar(&opts.recon, "recon", true, "reconstruct surfaces after fitting")
	f.BoolVar(&opts.overwriteCoeff, "overwrite-coeff", false, "refit frames already in the database")
	f.BoolVar(&opts.overwriteRecon, "overwrite-recon", false, "recompute reconstructions of stored frames")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

// applyFlags copies explicitly set flags over the loaded config.
func (o *buildOptions) applyFlags(cmd *cobra.Command, a *app) error {
	f := cmd.Flags()
	if f.Changed("workers") {
		a.cfg.Workers = &o.workers
	}
	if f.Changed("on-error") {
		a.cfg.OnError = &o.onError
	}
	if f.Changed("recon") {
		a.cfg.Recon = &o.recon
	}
	if f.Changed("overwrite-coeff") {
		a.cfg.OverwriteCoeff = &o.overwriteCoeff
	}
	if f.Changed("overwrite-recon") {
		a.cfg.OverwriteRecon = &o.overwriteRecon
	}
	return a.cfg.Validate()
}

func runBuild(cmd *cobra.Command, a *app, opts *buildOptions, input string) error {
	if err := opts.applyFlags(cmd, a); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	frames, err := readInput(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := monitoring.NewMetrics()
	if opts.metricsAddr != "" {
		addr, shutdown, err := serveMetrics(opts.metricsAddr, metrics)
		if err != nil {
			return err
		}
		defer shutdown()
		a.logger.Sugar().Infof("serving metrics on http://%s/metrics", addr)
	}

	runner := pipeline.NewRunner(a.cfg, sqlite.NewCoefficientStore(db), sqlite.NewRunStore(db), metrics)
	sum, runErr := runner.Run(ctx, frames)
	if sum != nil {
		printSummary(cmd.OutOrStdout(), sum)
	}
	return runErr
}

// serveMetrics starts a metrics endpoint on addr and returns the bound
// address and a function that shuts the server down.
func serveMetrics(addr string, m *monitoring.Metrics) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			monitoring.Logf("[metrics] server error: %v", err)
		}
	}()
	return ln.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func printSummary(w io.Writer, sum *pipeline.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if sum.RunID != "" {
		fmt.Fprintf(tw, "run\t%s\n", sum.RunID)
	}
	fmt.Fprintf(tw, "frames\t%d (built %d, cached %d, skipped %d, recon warnings %d)\n\n",
		len(sum.Outcomes), sum.Built, sum.Cached, sum.Skipped, sum.ReconWarnings)

	fmt.Fprintln(tw, "FRAME\tSTATUS\tPIVOTS\tAREA LOWER\tAREA UPPER\tRECON")
	for _, out := range sum.Outcomes {
		if out.Status == "" {
			continue
		}
		if out.Result == nil {
			fmt.Fprintf(tw, "%d\t%s\t-\t-\t-\t%v\n", out.Frame, out.Status, out.Err)
			continue
		}
		res := out.Result
		fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%.5f\t%.5f\t%s\n",
			out.Frame, out.Status,
			len(res.Pivots[surface.Lower]), len(res.Pivots[surface.Upper]),
			res.Surface(surface.Lower, false).IntrinsicArea(res.QM),
			res.Surface(surface.Upper, false).IntrinsicArea(res.QM),
			reconState(res))
	}
}

func reconState(res *surface.Result) string {
	switch {
	case !res.HasReconstruction():
		return "none"
	case res.ReconConverged[surface.Lower] && res.ReconConverged[surface.Upper]:
		return "converged"
	default:
		return "unconverged"
	}
}
