// Package adapter runs one benchmark configuration against the logistic
// regression objective: it validates the configuration, builds the problem,
// executes a fixed iteration budget and hands back the solution.
package adapter

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/logreg"
	"github.com/cwbudde/logregbench/internal/opt"
)

const (
	defaultMayflyPopulation = 20
	defaultMayflyBound      = 10.0
)

// Adapter is the benchmark's view of a solver. The harness calls Skip, then
// SetObjective once, then Run and Result for every iteration budget.
type Adapter struct {
	cfg Config

	lr          float64
	mayflyPop   int
	mayflyBound float64
	seed        int64
	available   func(device.Device) bool

	problem *logreg.Problem
	x0      []float64
	beta    []float64
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLearningRate overrides the stochastic step size.
func WithLearningRate(lr float64) Option {
	return func(a *Adapter) { a.lr = lr }
}

// WithMayfly sets the population, box bound and seed of the Mayfly solver.
func WithMayfly(popSize int, bound float64, seed int64) Option {
	return func(a *Adapter) {
		a.mayflyPop = popSize
		a.mayflyBound = bound
		a.seed = seed
	}
}

// WithDeviceProbe replaces the device availability check.
func WithDeviceProbe(probe func(device.Device) bool) Option {
	return func(a *Adapter) { a.available = probe }
}

// New creates an adapter for cfg.
func New(cfg Config, opts ...Option) *Adapter {
	if cfg.Normalization == "" {
		cfg.Normalization = opt.NormNone
	}
	if cfg.Device == "" {
		cfg.Device = device.CPU
	}
	a := &Adapter{
		cfg:         cfg,
		lr:          opt.DefaultStochasticLR,
		mayflyPop:   defaultMayflyPopulation,
		mayflyBound: defaultMayflyBound,
		available:   device.Available,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Config returns the configuration the adapter was built with.
func (a *Adapter) Config() Config { return a.cfg }

// Name is the report label of the configuration.
func (a *Adapter) Name() string { return a.cfg.Name() }

// Skip reports whether this configuration should not be run, with a
// human-readable reason. The decision depends only on the configuration and
// the devices of this process; the problem arguments are ignored.
func (a *Adapter) Skip(_ *mat.Dense, _ []float64, _ float64) (bool, string) {
	return ShouldSkip(a.cfg, a.cfg.Device != device.Accelerator || a.available(device.Accelerator))
}

// SetObjective builds the problem instance and the zero initial point.
func (a *Adapter) SetObjective(X *mat.Dense, y []float64, lambda float64) error {
	problem, err := logreg.New(X, y, lambda)
	if err != nil {
		return fmt.Errorf("failed to build objective: %w", err)
	}

	a.problem = problem
	a.x0 = make([]float64, problem.NumFeatures())
	a.beta = a.x0

	slog.Debug("Objective set",
		"solver", a.Name(),
		"n_samples", problem.NumSamples(),
		"n_features", problem.NumFeatures(),
		"lambda", lambda,
	)
	return nil
}

// Problem returns the problem built by SetObjective, or nil.
func (a *Adapter) Problem() *logreg.Problem { return a.problem }

// Run optimizes from the zero vector for exactly nIter iterations. Every
// call starts over; nIter is a total budget, not an increment.
func (a *Adapter) Run(ctx context.Context, nIter int) error {
	if a.problem == nil {
		return fmt.Errorf("run called before SetObjective")
	}
	if nIter < 0 {
		return fmt.Errorf("iteration budget must be non-negative, got %d", nIter)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if nIter == 0 {
		a.beta = a.x0
		return nil
	}

	if a.cfg.Stochastic {
		return a.runStochastic(nIter)
	}
	return a.runFullBatch(nIter)
}

// Result returns a copy of the current solution.
func (a *Adapter) Result() []float64 {
	return append([]float64(nil), a.beta...)
}

func (a *Adapter) runStochastic(nIter int) error {
	var optimizer *opt.StochasticPGD

	switch a.cfg.Solver {
	case opt.KindPGD:
		var err error
		optimizer, err = opt.NewStochasticPGD(len(a.x0), opt.StochasticConfig{
			LR:            a.lr,
			Momentum:      a.cfg.Momentum,
			Normalization: a.cfg.Normalization,
		})
		if err != nil {
			return fmt.Errorf("failed to create stochastic optimizer: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s (stochastic)", opt.ErrNotImplemented, a.cfg.Solver)
	}

	n := a.problem.NumSamples()
	batch := int(a.cfg.BatchSize)
	if batch <= 0 {
		return fmt.Errorf("stochastic run needs a positive batch size, got %s", a.cfg.BatchSize)
	}

	x := append([]float64(nil), a.x0...)
	grad := make([]float64, len(x))

	// One step per batch; batches cycle through the data in order and the
	// budget may end in the middle of a pass.
	lo := 0
	for counter := 0; counter < nIter; counter++ {
		hi := min(lo+batch, n)

		clear(grad)
		a.problem.BatchLossGrad(grad, x, lo, hi)
		optimizer.Step(x, grad)

		lo = hi
		if lo >= n {
			lo = 0
		}
	}

	a.beta = x
	return nil
}

func (a *Adapter) runFullBatch(nIter int) error {
	var (
		res *opt.Result
		err error
	)

	switch a.cfg.Solver {
	case opt.KindPGD:
		res, err = opt.MinimizePGD(a.problem, a.x0, opt.PGDOptions{
			Prox:       opt.Identity,
			LineSearch: a.cfg.LineSearch,
			MaxIter:    nIter,
		})
	case opt.KindMayfly:
		res, err = opt.MinimizeMayfly(a.problem, len(a.x0), nIter, a.mayflyPop, a.mayflyBound, a.seed)
	default:
		return fmt.Errorf("%w: %s (full batch)", opt.ErrNotImplemented, a.cfg.Solver)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", a.cfg.Solver, err)
	}

	a.beta = res.X
	return nil
}
