package opt

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/optimize"
)

// ReferenceOptions bounds the reference solve.
type ReferenceOptions struct {
	MaxIter           int     // default 10000
	GradientThreshold float64 // default 1e-10
}

// Reference minimizes obj with gonum's L-BFGS to high accuracy. The returned
// value is used as f* when reporting suboptimality.
func Reference(obj Objective, x0 []float64, opts ReferenceOptions) (*Result, error) {
	if opts.MaxIter <= 0 {
		opts.MaxIter = 10000
	}
	if opts.GradientThreshold <= 0 {
		opts.GradientThreshold = 1e-10
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return obj.LossGrad(nil, x) },
		Grad: func(grad, x []float64) { obj.LossGrad(grad, x) },
	}
	settings := &optimize.Settings{
		GradientThreshold: opts.GradientThreshold,
		MajorIterations:   opts.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-15,
			Iterations: 50,
		},
	}

	res, err := optimize.Minimize(problem, append([]float64(nil), x0...), settings, &optimize.LBFGS{})
	if res == nil {
		return nil, fmt.Errorf("reference solve: %w", err)
	}
	if err != nil {
		// Line search failures near the optimum still leave a usable point.
		slog.Warn("Reference solve ended early", "status", res.Status.String(), "error", err)
	}

	slog.Debug("Reference solve complete",
		"f", res.F,
		"iterations", res.Stats.MajorIterations,
		"status", res.Status.String(),
	)

	return &Result{
		X:          res.X,
		F:          res.F,
		Iterations: res.Stats.MajorIterations,
	}, nil
}
