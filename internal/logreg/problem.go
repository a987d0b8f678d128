// Package logreg holds the L2-regularized logistic regression objective the
// benchmark solvers minimize.
package logreg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when the label vector does not match the design matrix.
var ErrShapeMismatch = errors.New("design matrix and labels have incompatible shapes")

// Problem is an immutable logistic regression instance:
//
//	f(x) = mean_i BCE(X_i·x, y_i) + (λ/n)·‖x‖²/2
//
// with y_i ∈ {0, 1}.
type Problem struct {
	X      *mat.Dense
	Y      []float64
	Lambda float64

	nSamples  int
	nFeatures int
}

// New builds a problem from a raw design matrix and raw labels.
// Labels are binarized: anything greater than zero maps to 1, everything else to 0.
func New(X *mat.Dense, labels []float64, lambda float64) (*Problem, error) {
	if X == nil {
		return nil, fmt.Errorf("%w: nil design matrix", ErrShapeMismatch)
	}
	n, p := X.Dims()
	if n != len(labels) {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d entries", ErrShapeMismatch, n, len(labels))
	}
	if lambda < 0 || math.IsNaN(lambda) {
		return nil, fmt.Errorf("regularization must be non-negative, got %v", lambda)
	}

	return &Problem{
		X:         X,
		Y:         Binarize(labels),
		Lambda:    lambda,
		nSamples:  n,
		nFeatures: p,
	}, nil
}

// Binarize maps labels > 0 to 1 and the rest to 0.
func Binarize(labels []float64) []float64 {
	y := make([]float64, len(labels))
	for i, v := range labels {
		if v > 0 {
			y[i] = 1
		}
	}
	return y
}

// NumSamples returns n.
func (p *Problem) NumSamples() int { return p.nSamples }

// NumFeatures returns the dimension of the optimization variable.
func (p *Problem) NumFeatures() int { return p.nFeatures }

// Alpha is the penalty coefficient λ/n_samples.
func (p *Problem) Alpha() float64 {
	if p.nSamples == 0 {
		return 0
	}
	return p.Lambda / float64(p.nSamples)
}

// Loss evaluates the full objective at x.
func (p *Problem) Loss(x []float64) float64 {
	return p.BatchLossGrad(nil, x, 0, p.nSamples)
}

// Grad writes the full gradient at x into grad.
func (p *Problem) Grad(grad, x []float64) {
	p.BatchLossGrad(grad, x, 0, p.nSamples)
}

// LossGrad evaluates the full objective and, when grad is non-nil, its gradient.
func (p *Problem) LossGrad(grad, x []float64) float64 {
	return p.BatchLossGrad(grad, x, 0, p.nSamples)
}

// BatchLossGrad evaluates the mean cross-entropy over rows [lo, hi) plus the
// penalty (λ/n_samples)·‖x‖²/2. The penalty uses the full-dataset scaling
// whatever the batch size. When grad is non-nil the gradient is written into it.
func (p *Problem) BatchLossGrad(grad, x []float64, lo, hi int) float64 {
	if len(x) != p.nFeatures {
		panic(fmt.Sprintf("logreg: point has %d coordinates, want %d", len(x), p.nFeatures))
	}
	if lo < 0 || hi > p.nSamples || lo >= hi {
		panic(fmt.Sprintf("logreg: invalid batch [%d, %d) of %d samples", lo, hi, p.nSamples))
	}

	batch := p.X.Slice(lo, hi, 0, p.nFeatures)
	m := hi - lo

	z := mat.NewVecDense(m, nil)
	z.MulVec(batch, mat.NewVecDense(p.nFeatures, x))

	var loss float64
	residual := make([]float64, m)
	for i := 0; i < m; i++ {
		zi := z.AtVec(i)
		yi := p.Y[lo+i]
		loss += BCEWithLogits(zi, yi)
		residual[i] = Sigmoid(zi) - yi
	}
	loss /= float64(m)

	alpha := p.Alpha()
	loss += 0.5 * alpha * floats.Dot(x, x)

	if grad != nil {
		if len(grad) != p.nFeatures {
			panic(fmt.Sprintf("logreg: gradient has %d coordinates, want %d", len(grad), p.nFeatures))
		}
		g := mat.NewVecDense(p.nFeatures, grad)
		g.MulVec(batch.T(), mat.NewVecDense(m, residual))
		floats.Scale(1/float64(m), grad)
		floats.AddScaled(grad, alpha, x)
	}

	return loss
}

// BCEWithLogits is the binary cross-entropy of logit z against target y,
// written so that exp never overflows.
func BCEWithLogits(z, y float64) float64 {
	return math.Max(z, 0) - z*y + math.Log1p(math.Exp(-math.Abs(z)))
}

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
