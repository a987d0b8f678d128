package opt

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Normalization is a per-step rescaling of the stochastic gradient.
type Normalization string

const (
	NormNone Normalization = "none"
	NormL2   Normalization = "L2"
	NormLinf Normalization = "Linf"
	NormSign Normalization = "sign"
)

// ErrUnknownNormalization is returned when a normalization name does not parse.
var ErrUnknownNormalization = errors.New("unknown normalization")

// Normalizations returns every supported scheme.
func Normalizations() []Normalization {
	return []Normalization{NormNone, NormL2, NormLinf, NormSign}
}

// ParseNormalization accepts scheme names case-insensitively.
func ParseNormalization(name string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NormNone, nil
	case "l2":
		return NormL2, nil
	case "linf":
		return NormLinf, nil
	case "sign":
		return NormSign, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNormalization, name)
}

// apply rescales g in place.
func (n Normalization) apply(g []float64) {
	switch n {
	case NormL2:
		if norm := floats.Norm(g, 2); norm > 0 {
			floats.Scale(1/norm, g)
		}
	case NormLinf:
		if norm := floats.Norm(g, math.Inf(1)); norm > 0 {
			floats.Scale(1/norm, g)
		}
	case NormSign:
		for i, v := range g {
			switch {
			case v > 0:
				g[i] = 1
			case v < 0:
				g[i] = -1
			default:
				g[i] = 0
			}
		}
	}
}

// StochasticConfig holds configuration for StochasticPGD.
type StochasticConfig struct {
	LR            float64 // Step size (default: 0.05)
	Momentum      float64 // Heavy-ball coefficient in [0, 1)
	Normalization Normalization
	Prox          Prox // Nil means Identity
}

// DefaultStochasticLR is the step size used when StochasticConfig.LR is zero.
const DefaultStochasticLR = 0.05

// StochasticPGD is a mini-batch projected gradient step with optional
// gradient normalization and heavy-ball momentum.
//
// Update rule:
//
//	d = normalize(grad)
//	v = momentum·v + d
//	x = prox(x − lr·v)
type StochasticPGD struct {
	lr       float64
	momentum float64
	norm     Normalization
	prox     Prox

	dir      []float64
	velocity []float64
}

// NewStochasticPGD creates the optimizer for a variable of length dim.
func NewStochasticPGD(dim int, cfg StochasticConfig) (*StochasticPGD, error) {
	if cfg.LR == 0 {
		cfg.LR = DefaultStochasticLR
	}
	if cfg.LR < 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", cfg.LR)
	}
	if cfg.Momentum < 0 || cfg.Momentum >= 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1), got %v", cfg.Momentum)
	}
	if cfg.Normalization == "" {
		cfg.Normalization = NormNone
	}
	if _, err := ParseNormalization(string(cfg.Normalization)); err != nil {
		return nil, err
	}
	if cfg.Prox == nil {
		cfg.Prox = Identity
	}

	return &StochasticPGD{
		lr:       cfg.LR,
		momentum: cfg.Momentum,
		norm:     cfg.Normalization,
		prox:     cfg.Prox,
		dir:      make([]float64, dim),
		velocity: make([]float64, dim),
	}, nil
}

// Step applies one update to x in place using the stochastic gradient grad.
// grad is not modified.
func (o *StochasticPGD) Step(x, grad []float64) {
	copy(o.dir, grad)
	o.norm.apply(o.dir)

	if o.momentum > 0 {
		floats.Scale(o.momentum, o.velocity)
		floats.Add(o.velocity, o.dir)
		copy(o.dir, o.velocity)
	}

	floats.AddScaled(x, -o.lr, o.dir)
	o.prox(x, o.lr)
}

