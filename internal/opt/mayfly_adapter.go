package opt

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinMayflyPopulation is the smallest population the Mayfly library accepts.
const MinMayflyPopulation = 20

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	if popSize < MinMayflyPopulation {
		popSize = MinMayflyPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
// The library takes scalar bounds, so only lower[0] and upper[0] are used.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error) {
	if dim <= 0 || len(lower) < 1 || len(upper) < 1 {
		return nil, 0, fmt.Errorf("mayfly: invalid problem dimension %d", dim)
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = lower[0]
	config.UpperBound = upper[0]
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly: %w", err)
	}

	return result.GlobalBest.Position, result.GlobalBest.Cost, nil
}

// MinimizeMayfly minimizes obj inside the box [-bound, bound]^dim for maxIter
// Mayfly generations.
func MinimizeMayfly(obj Objective, dim, maxIter, popSize int, bound float64, seed int64) (*Result, error) {
	if bound <= 0 {
		return nil, fmt.Errorf("mayfly: bound must be positive, got %v", bound)
	}
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = -bound
		upper[i] = bound
	}

	eval := func(x []float64) float64 { return obj.LossGrad(nil, x) }
	best, cost, err := NewMayfly(maxIter, popSize, seed).Run(eval, lower, upper, dim)
	if err != nil {
		return nil, err
	}

	return &Result{
		X:          append([]float64(nil), best...),
		F:          cost,
		Iterations: maxIter,
	}, nil
}
