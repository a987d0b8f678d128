package opt

import (
	"math"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	dim := 3
	lower := []float64{-10, -10, -10}
	upper := []float64{10, 10, 10}

	best, cost, err := optimizer.Run(sphere, lower, upper, dim)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMinimizeMayflyDeterministic(t *testing.T) {
	q := quadratic{c: []float64{1, 1}, t: []float64{0.5, -0.5}}

	r1, err := MinimizeMayfly(q, 2, 30, 10, 5, 123)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	r2, err := MinimizeMayfly(q, 2, 30, 10, 5, 123)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if r1.F != r2.F {
		t.Errorf("Non-deterministic: %v vs %v", r1.F, r2.F)
	}
}

func TestMinimizeMayflyRejectsBadBound(t *testing.T) {
	q := quadratic{c: []float64{1}, t: []float64{0}}
	if _, err := MinimizeMayfly(q, 1, 10, 20, 0, 1); err == nil {
		t.Fatal("expected error for zero bound")
	}
}
