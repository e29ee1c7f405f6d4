// Package pipeline runs the intrinsic surface analysis over a batch of
// frames, reusing cached results from a coefficient store.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/interface.report/internal/config"
	"github.com/banshee-data/interface.report/internal/monitoring"
	"github.com/banshee-data/interface.report/internal/storage/sqlite"
	"github.com/banshee-data/interface.report/internal/surface"
)

var logf = monitoring.Prefixed("pipeline")

// Store persists per-frame results. *sqlite.CoefficientStore implements it.
// Get must return an error wrapping sqlite.ErrNotFound for missing keys.
type Store interface {
	Get(ctx context.Context, k sqlite.Key) (*surface.Result, error)
	Put(ctx context.Context, frame int, runID string, res *surface.Result) error
}

// RunRecorder records the lifecycle of a batch. *sqlite.RunStore implements it.
type RunRecorder interface {
	Start(ctx context.Context, run *sqlite.AnalysisRun) error
	Finish(ctx context.Context, run *sqlite.AnalysisRun, runErr error) error
}

// FrameOutcome is what happened to one frame. Status is one of the
// monitoring.Status* values, or empty if the frame was never started
// because the batch was cancelled.
type FrameOutcome struct {
	Frame  int
	Status string
	// ReconOnly is set when cached coefficients were kept and only the
	// reconstruction was recomputed.
	ReconOnly bool
	Result    *surface.Result
	Warnings  []error
	Err       error
	Duration  time.Duration
}

// Summary describes a finished batch.
type Summary struct {
	RunID         string
	Outcomes      []FrameOutcome
	Built         int
	Cached        int
	Skipped       int
	ReconWarnings int
}

// Runner processes frames with the policy of one AnalysisConfig.
type Runner struct {
	cfg     *config.AnalysisConfig
	store   Store
	runs    RunRecorder
	metrics *monitoring.Metrics
}

// NewRunner creates a runner. store, runs and metrics may all be nil.
func NewRunner(cfg *config.AnalysisConfig, store Store, runs RunRecorder, metrics *monitoring.Metrics) *Runner {
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	return &Runner{cfg: cfg, store: store, runs: runs, metrics: metrics}
}

// Run processes every frame. Frames are independent and run on up to
// cfg.GetWorkers() goroutines; outcomes are reported in frame order.
//
// With on_error "abort" the first frame error cancels the remaining frames
// and is returned. With "skip" failing frames are recorded as skipped and
// Run returns nil. Cancellation of ctx is always returned as an error.
func (r *Runner) Run(ctx context.Context, frames []*surface.Frame) (*Summary, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	sum := &Summary{Outcomes: make([]FrameOutcome, len(frames))}
	run := &sqlite.AnalysisRun{Frames: len(frames)}
	if r.runs != nil {
		if params, err := json.Marshal(r.cfg); err == nil {
			run.ParamsJSON = params
		}
		if err := r.runs.Start(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to start run: %w", err)
		}
		sum.RunID = run.RunID
	}
	logf("run %s: %d frames on %d workers (on_error=%s)",
		sum.RunID, len(frames), r.cfg.GetWorkers(), r.cfg.GetOnError())

	abort := r.cfg.GetOnError() == config.OnErrorAbort
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.GetWorkers())
	for i, f := range frames {
		if gctx.Err() != nil {
			break
		}
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := r.processFrame(gctx, sum.RunID, i, f)
			sum.Outcomes[i] = out
			if out.Err != nil && abort {
				return fmt.Errorf("frame %d: %w", i, out.Err)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	for _, out := range sum.Outcomes {
		switch out.Status {
		case monitoring.StatusBuilt:
			sum.Built++
		case monitoring.StatusCached:
			sum.Cached++
		case monitoring.StatusSkipped:
			sum.Skipped++
		}
		sum.ReconWarnings += len(out.Warnings)
	}
	logf("run %s: built=%d cached=%d skipped=%d recon_warnings=%d",
		sum.RunID, sum.Built, sum.Cached, sum.Skipped, sum.ReconWarnings)

	if r.runs != nil {
		run.Built, run.Cached, run.Skipped = sum.Built, sum.Cached, sum.Skipped
		run.ReconWarnings = sum.ReconWarnings
		// The batch context may already be cancelled; the record must still land.
		if err := r.runs.Finish(context.WithoutCancel(ctx), run, runErr); err != nil {
			logf("run %s: failed to record finish: %v", sum.RunID, err)
		}
	}
	return sum, runErr
}

func (r *Runner) processFrame(ctx context.Context, runID string, i int, f *surface.Frame) FrameOutcome {
	start := time.Now()
	out := r.analyse(ctx, runID, i, f)
	out.Frame = i
	out.Duration = time.Since(start)

	if out.Err != nil {
		out.Status = monitoring.StatusFailed
		if r.cfg.GetOnError() == config.OnErrorSkip {
			out.Status = monitoring.StatusSkipped
		}
		logf("frame %d %s: %v", i, out.Status, out.Err)
	}
	r.metrics.ObserveFrame(out.Status, out.Duration)
	if out.Status == monitoring.StatusCached {
		r.metrics.CacheHit()
	}
	return out
}

func (r *Runner) analyse(ctx context.Context, runID string, i int, f *surface.Frame) FrameOutcome {
	if err := f.Validate(); err != nil {
		return FrameOutcome{Err: err}
	}
	if r.cfg.GetCentreZ() {
		f = f.Centred()
	}
	p := r.cfg.Params(f.Cell)
	recon := r.cfg.GetRecon()

	if r.store != nil && !r.cfg.GetOverwriteCoeff() {
		key := sqlite.Key{Frame: i, QM: p.QM, N0: p.N0, Phi: p.Phi}
		cached, err := r.store.Get(ctx, key)
		switch {
		case err == nil:
			if !recon || (cached.HasReconstruction() && !r.cfg.GetOverwriteRecon()) {
				return FrameOutcome{Status: monitoring.StatusCached, Result: cached}
			}
			return r.reconstructCached(ctx, runID, i, f, p, cached)
		case !errors.Is(err, sqlite.ErrNotFound):
			return FrameOutcome{Err: fmt.Errorf("failed to read cached result: %w", err)}
		}
	}

	b, err := surface.BuildSurface(f, p)
	if err != nil {
		return FrameOutcome{Err: err}
	}
	for _, d := range b.Diagnostics {
		r.metrics.ObserveGrowth(d.Solves)
	}

	out := FrameOutcome{Status: monitoring.StatusBuilt}
	var rec *surface.Reconstruction
	if recon {
		rec, err = r.reconstruct(f, b.Pivots, b.Coeff, p)
		if err != nil {
			return FrameOutcome{Err: err}
		}
		out.Warnings = rec.Warnings
	}
	out.Result = surface.NewResult(b, rec)
	if err := r.save(ctx, runID, i, out.Result); err != nil {
		return FrameOutcome{Err: err}
	}
	return out
}

// reconstructCached recomputes only the reconstruction of a cached result,
// keeping its coefficients and pivots.
func (r *Runner) reconstructCached(ctx context.Context, runID string, i int, f *surface.Frame, p surface.Params, cached *surface.Result) FrameOutcome {
	rec, err := r.reconstruct(f, cached.Pivots, cached.Coeff, p)
	if err != nil {
		return FrameOutcome{Err: err}
	}
	cached.Psi = p.Psi
	cached.SetReconstruction(rec)
	if err := r.save(ctx, runID, i, cached); err != nil {
		return FrameOutcome{Err: err}
	}
	return FrameOutcome{
		Status:    monitoring.StatusBuilt,
		ReconOnly: true,
		Result:    cached,
		Warnings:  rec.Warnings,
	}
}

func (r *Runner) reconstruct(f *surface.Frame, pivots [2][]int, coeff [2][]float64, p surface.Params) (*surface.Reconstruction, error) {
	rec, err := surface.Reconstruct(f, pivots, coeff, p)
	if err != nil {
		return nil, err
	}
	for _, s := range surface.Sides {
		r.metrics.ObserveRecon(rec.Diagnostics[s].Iterations, rec.Converged(s))
	}
	return rec, nil
}

func (r *Runner) save(ctx context.Context, runID string, i int, res *surface.Result) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.Put(ctx, i, runID, res); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}
