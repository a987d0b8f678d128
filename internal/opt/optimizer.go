// Package opt provides the optimizer capability the benchmark adapter drives:
// full-batch projected gradient descent, its stochastic momentum variant, a
// derivative-free Mayfly baseline, and an L-BFGS reference solve.
package opt

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the solver families the adapter can dispatch to.
type Kind string

const (
	KindPGD    Kind = "pgd"
	KindMayfly Kind = "mayfly"
)

var (
	// ErrNotImplemented is returned when a solver kind has no implementation for the requested mode.
	ErrNotImplemented = errors.New("solver not implemented")
	// ErrUnknownKind is returned when a solver name does not parse.
	ErrUnknownKind = errors.New("unknown solver kind")
)

// Kinds returns every solver kind in dispatch order.
func Kinds() []Kind {
	return []Kind{KindPGD, KindMayfly}
}

// ParseKind maps a solver name to its Kind.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// SupportsStochastic reports whether the kind has a mini-batch variant.
func (k Kind) SupportsStochastic() bool {
	return k == KindPGD
}

// SupportsLineSearch reports whether the kind can pick its step by backtracking.
func (k Kind) SupportsLineSearch() bool {
	return k == KindPGD
}

// Objective is a differentiable function. When grad is non-nil the gradient
// at x is written into it.
type Objective interface {
	LossGrad(grad, x []float64) float64
}

// Prox applies a proximal operator to x in place for the given step size.
type Prox func(x []float64, step float64)

// Identity is the proximal operator of the zero function (no constraint).
func Identity([]float64, float64) {}

// Result is the output of a full-batch solve.
type Result struct {
	X          []float64
	F          float64
	Iterations int
	Step       float64 // last step size used
}

// Optimizer is a derivative-free black-box optimizer over a box.
type Optimizer interface {
	// Run minimizes eval over [lower, upper] in dim dimensions and returns
	// the best point with its cost.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64, error)
}
