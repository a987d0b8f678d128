package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/logregbench/internal/adapter"
	"github.com/cwbudde/logregbench/internal/dataset"
	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/logreg"
	"github.com/cwbudde/logregbench/internal/opt"
)

// TracePoint is one point of a convergence curve.
type TracePoint struct {
	NIter         int           `json:"nIter"`
	Objective     float64       `json:"objective"`
	Suboptimality float64       `json:"suboptimality"`
	Elapsed       time.Duration `json:"elapsed"`
}

// SolverResult is the outcome of one configuration.
type SolverResult struct {
	Name           string         `json:"name"`
	Config         adapter.Config `json:"config"`
	Skipped        bool           `json:"skipped"`
	Reason         string         `json:"reason,omitempty"`
	Trace          []TracePoint   `json:"trace,omitempty"`
	FinalObjective float64        `json:"finalObjective,omitempty"`
	Solution       []float64      `json:"solution,omitempty"`
	Converged      bool           `json:"converged"`
	Error          string         `json:"error,omitempty"`
}

// Report is the outcome of a whole grid.
type Report struct {
	Dataset   string         `json:"dataset"`
	Lambda    float64        `json:"lambda"`
	Reference float64        `json:"reference"`
	Results   []SolverResult `json:"results"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// Counts returns how many configurations ran, were skipped and failed.
func (r *Report) Counts() (ran, skipped, failed int) {
	for _, res := range r.Results {
		switch {
		case res.Skipped:
			skipped++
		case res.Error != "":
			failed++
		default:
			ran++
		}
	}
	return ran, skipped, failed
}

// Observer receives progress from a running grid. Calls are serialized.
type Observer interface {
	OnPoint(name string, pt TracePoint)
	OnResult(res SolverResult)
}

// Options configures a Runner.
type Options struct {
	Parameters  Parameters
	Lambda      float64
	MaxIter     int
	Growth      float64
	Workers     int
	Convergence ConvergenceConfig
	AdapterOpts []adapter.Option
}

// Runner executes a parameter grid against one dataset.
type Runner struct {
	opts     Options
	data     *dataset.Dataset
	observer Observer

	mu sync.Mutex
}

// NewRunner creates a runner. observer may be nil.
func NewRunner(data *dataset.Dataset, opts Options, observer Observer) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	opts.Parameters = opts.Parameters.WithDefaults()
	return &Runner{opts: opts, data: data, observer: observer}
}

// Run evaluates every configuration of the grid. Failures of individual
// configurations are recorded in their result; the returned error is only
// set when the grid itself cannot run or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	problem, err := logreg.New(r.data.X, r.data.Y, r.opts.Lambda)
	if err != nil {
		return nil, fmt.Errorf("failed to build problem: %w", err)
	}

	ref, err := opt.Reference(problem, make([]float64, problem.NumFeatures()), opt.ReferenceOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to compute reference objective: %w", err)
	}

	configs := r.opts.Parameters.Configs()
	slog.Info("Starting benchmark",
		"dataset", r.data.Name,
		"configs", len(configs),
		"lambda", r.opts.Lambda,
		"max_iter", r.opts.MaxIter,
		"workers", r.opts.Workers,
		"cpu_features", device.CPUFeatures(),
		"reference", ref.F,
	)

	results := make([]SolverResult, len(configs))
	schedule := Schedule(r.opts.MaxIter, r.opts.Growth)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, cfg := range configs {
		g.Go(func() error {
			res, err := r.runConfig(gctx, cfg, schedule, ref.F)
			if err != nil {
				return err
			}
			results[i] = res
			r.notifyResult(res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Dataset:   r.data.Name,
		Lambda:    r.opts.Lambda,
		Reference: ref.F,
		Results:   results,
		Elapsed:   time.Since(start),
	}

	ran, skipped, failed := report.Counts()
	slog.Info("Benchmark complete",
		"elapsed", report.Elapsed,
		"ran", ran,
		"skipped", skipped,
		"failed", failed,
	)
	return report, nil
}

// runConfig returns an error only for cancellation.
func (r *Runner) runConfig(ctx context.Context, cfg adapter.Config, schedule []int, fStar float64) (SolverResult, error) {
	a := adapter.New(cfg, r.opts.AdapterOpts...)
	res := SolverResult{Name: a.Name(), Config: a.Config()}

	if skip, reason := a.Skip(r.data.X, r.data.Y, r.opts.Lambda); skip {
		slog.Debug("Skipping configuration", "solver", res.Name, "reason", reason)
		res.Skipped = true
		res.Reason = reason
		return res, nil
	}

	if err := a.SetObjective(r.data.X, r.data.Y, r.opts.Lambda); err != nil {
		res.Error = err.Error()
		return res, nil
	}

	tracker := NewConvergenceTracker(r.opts.Convergence)
	for _, nIter := range schedule {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t0 := time.Now()
		if err := a.Run(ctx, nIter); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			slog.Error("Solver failed", "solver", res.Name, "n_iter", nIter, "error", err)
			res.Error = err.Error()
			return res, nil
		}
		elapsed := time.Since(t0)

		x := a.Result()
		f := a.Problem().Loss(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			slog.Warn("Solver diverged", "solver", res.Name, "n_iter", nIter)
			res.Error = fmt.Sprintf("objective diverged at n_iter=%d", nIter)
			return res, nil
		}
		pt := TracePoint{
			NIter:         nIter,
			Objective:     f,
			Suboptimality: f - fStar,
			Elapsed:       elapsed,
		}
		res.Trace = append(res.Trace, pt)
		res.FinalObjective = f
		res.Solution = x
		r.notifyPoint(res.Name, pt)

		if tracker.Update(f) {
			res.Converged = true
			break
		}
	}

	slog.Debug("Configuration finished",
		"solver", res.Name,
		"points", len(res.Trace),
		"final_objective", res.FinalObjective,
		"converged", res.Converged,
	)
	return res, nil
}

func (r *Runner) notifyPoint(name string, pt TracePoint) {
	if r.observer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer.OnPoint(name, pt)
}

func (r *Runner) notifyResult(res SolverResult) {
	if r.observer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer.OnResult(res)
}
