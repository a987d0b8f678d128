package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSimulateDeterministic(t *testing.T) {
	cfg := DefaultSimulatedConfig()
	a, err := Simulate(cfg)
	require.NoError(t, err)
	b, err := Simulate(cfg)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.X, b.X))
	assert.Equal(t, a.Y, b.Y)
	assert.Equal(t, a.WTrue, b.WTrue)

	n, p := a.Dims()
	assert.Equal(t, cfg.NSamples, n)
	assert.Equal(t, cfg.NFeatures, p)
}

func TestSimulateLabelsAreSigns(t *testing.T) {
	ds, err := Simulate(SimulatedConfig{NSamples: 50, NFeatures: 5, Rho: 0.3, Density: 1, Seed: 7})
	require.NoError(t, err)

	var pos int
	for _, v := range ds.Y {
		require.Contains(t, []float64{-1, 1}, v)
		if v > 0 {
			pos++
		}
	}
	assert.Greater(t, pos, 0)
	assert.Less(t, pos, 50)
}

func TestSimulateDensity(t *testing.T) {
	ds, err := Simulate(SimulatedConfig{NSamples: 10, NFeatures: 20, Density: 0.25, Seed: 1})
	require.NoError(t, err)

	var nnz int
	for _, w := range ds.WTrue {
		if w != 0 {
			nnz++
		}
	}
	assert.Equal(t, 5, nnz)
}

func TestSimulateValidation(t *testing.T) {
	_, err := Simulate(SimulatedConfig{NSamples: 0, NFeatures: 3})
	require.Error(t, err)
	_, err = Simulate(SimulatedConfig{NSamples: 3, NFeatures: 3, Rho: 1})
	require.Error(t, err)
	_, err = Simulate(SimulatedConfig{NSamples: 3, NFeatures: 3, Density: 2})
	require.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("1, 2, 1\n3, 4, -1\n5, 6, 0\n"))
	require.NoError(t, err)

	n, p := ds.Dims()
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, p)
	assert.Equal(t, []float64{1, -1, 0}, ds.Y)
	assert.Equal(t, 4.0, ds.X.At(1, 1))
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmpty)

	_, err = ReadCSV(strings.NewReader("1\n"))
	require.Error(t, err)

	_, err = ReadCSV(strings.NewReader("1,x,1\n"))
	require.Error(t, err)

	// csv.Reader enforces a constant field count.
	_, err = ReadCSV(strings.NewReader("1,2,1\n1,1\n"))
	require.Error(t, err)
}
