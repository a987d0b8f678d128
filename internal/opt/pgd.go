package opt

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	defaultInitialStep   = 1.0
	defaultContraction   = 0.5
	defaultMaxBacktracks = 60
)

// PGDOptions configures MinimizePGD.
type PGDOptions struct {
	// Prox is applied after every gradient step. Nil means Identity.
	Prox Prox
	// LineSearch selects a step by backtracking at every iteration. When
	// false a single backtracking probe at x0 fixes the step for the run.
	LineSearch bool
	// MaxIter is the exact number of iterations performed.
	MaxIter int
	// InitialStep seeds the backtracking search. Zero means 1.
	InitialStep float64
	// Contraction shrinks the step on each failed probe. Zero means 0.5.
	Contraction float64
	// MaxBacktracks bounds the probes per search. Zero means 60.
	MaxBacktracks int
}

func (o *PGDOptions) setDefaults() {
	if o.Prox == nil {
		o.Prox = Identity
	}
	if o.InitialStep <= 0 {
		o.InitialStep = defaultInitialStep
	}
	if o.Contraction <= 0 || o.Contraction >= 1 {
		o.Contraction = defaultContraction
	}
	if o.MaxBacktracks <= 0 {
		o.MaxBacktracks = defaultMaxBacktracks
	}
}

// MinimizePGD runs exactly opts.MaxIter iterations of proximal gradient
// descent from x0. x0 is not modified.
func MinimizePGD(obj Objective, x0 []float64, opts PGDOptions) (*Result, error) {
	if opts.MaxIter < 0 {
		return nil, fmt.Errorf("max iterations must be non-negative, got %d", opts.MaxIter)
	}
	opts.setDefaults()

	dim := len(x0)
	x := append([]float64(nil), x0...)
	grad := make([]float64, dim)
	f := obj.LossGrad(grad, x)

	cand := make([]float64, dim)
	step := opts.InitialStep

	if !opts.LineSearch {
		step = backtrack(obj, opts, x, f, grad, step, cand)
		slog.Debug("PGD step estimated", "step", step)
	}

	for it := 0; it < opts.MaxIter; it++ {
		if opts.LineSearch {
			// Let the step grow back before searching again.
			step = backtrack(obj, opts, x, f, grad, step/opts.Contraction, cand)
		} else {
			proxStep(opts.Prox, x, grad, step, cand)
		}

		copy(x, cand)
		f = obj.LossGrad(grad, x)
		if math.IsNaN(f) {
			return nil, fmt.Errorf("objective became NaN at iteration %d", it+1)
		}
	}

	return &Result{
		X:          x,
		F:          f,
		Iterations: opts.MaxIter,
		Step:       step,
	}, nil
}

// proxStep writes prox(x - step·grad) into dst.
func proxStep(prox Prox, x, grad []float64, step float64, dst []float64) {
	floats.AddScaledTo(dst, x, -step, grad)
	prox(dst, step)
}

// backtrack shrinks step until the proximal gradient point in dst satisfies
// the sufficient decrease condition
//
//	f(x⁺) ≤ f(x) + ⟨∇f(x), x⁺ − x⟩ + ‖x⁺ − x‖² / (2·step)
//
// and returns the accepted step. dst holds the accepted point on return.
func backtrack(obj Objective, opts PGDOptions, x []float64, f float64, grad []float64, step float64, dst []float64) float64 {
	diff := make([]float64, len(x))
	for i := 0; i < opts.MaxBacktracks; i++ {
		proxStep(opts.Prox, x, grad, step, dst)
		floats.SubTo(diff, dst, x)

		fc := obj.LossGrad(nil, dst)
		bound := f + floats.Dot(grad, diff) + floats.Dot(diff, diff)/(2*step)
		if fc <= bound {
			return step
		}
		step *= opts.Contraction
	}

	slog.Debug("Backtracking exhausted, accepting smallest step", "step", step)
	proxStep(opts.Prox, x, grad, step, dst)
	return step
}
