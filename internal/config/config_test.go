package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/logregbench/internal/adapter"
	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/opt"
)

const sample = `
name: small
dataset:
  simulated:
    n_samples: 80
    n_features: 8
    rho: 0.2
    density: 0.5
    seed: 3
lambda: 0.5
max_iter: 200
workers: 2
convergence:
  enabled: true
  patience: 4
  threshold: 0.0001
parameters:
  solver: [PGD, mayfly]
  batch_size: [32, full]
  normalization: [none, l2]
  device: [cpu, cuda]
`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "small", b.Name)
	assert.Equal(t, 0.5, b.Lambda)
	assert.Equal(t, 200, b.MaxIter)
	assert.Equal(t, 2, b.Workers)
	assert.Equal(t, 1.5, b.Growth, "unset fields keep defaults")
	assert.Equal(t, 4, b.Convergence.Patience)

	assert.Equal(t, []opt.Kind{opt.KindPGD, opt.KindMayfly}, b.Parameters.Solver)
	assert.Equal(t, []adapter.BatchSize{32, adapter.FullBatch}, b.Parameters.BatchSize)
	assert.Equal(t, []opt.Normalization{opt.NormNone, opt.NormL2}, b.Parameters.Normalization)
	assert.Equal(t, []device.Device{device.CPU, device.Accelerator}, b.Parameters.Device)
	assert.Equal(t, []float64{0, 0.9}, b.Parameters.Momentum)

	ds, err := b.LoadDataset()
	require.NoError(t, err)
	n, p := ds.Dims()
	assert.Equal(t, 80, n)
	assert.Equal(t, 8, p)

	h := b.HarnessOptions()
	assert.Equal(t, 2*2*2*2*2*2*2, h.Parameters.Size())
	assert.Len(t, h.AdapterOpts, 2)
}

func TestParseJSON(t *testing.T) {
	b, err := Parse([]byte(`{"lambda": 2, "max_iter": 10, "parameters": {"stochastic": [false]}}`))
	require.NoError(t, err)
	assert.Equal(t, 2.0, b.Lambda)
	assert.Equal(t, []bool{false}, b.Parameters.Stochastic)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"negative lambda": "lambda: -1",
		"bad growth":      "growth: 1",
		"bad log level":   "log_level: loud",
		"bad solver":      "parameters: {solver: [saga]}",
		"bad norm":        "parameters: {normalization: [L3]}",
		"bad device":      "parameters: {device: [tpu]}",
		"bad momentum":    "parameters: {momentum: [1.5]}",
		"bad batch":       "parameters: {batch_size: [half]}",
		"bad dataset":     "dataset: {simulated: {n_samples: 0, n_features: 3}}",
		"no dataset":      "dataset: {simulated: null}",
		"unclosed flow":   "lambda: [1",
		"tab indent":      "\tlambda: 1",
		"type mismatch":   "lambda: {a: 1}",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "small", b.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadCSVDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2,1\n3,4,-1\n"), 0644))

	b := Default()
	b.Dataset.Path = path
	ds, err := b.LoadDataset()
	require.NoError(t, err)
	assert.Equal(t, path, ds.Name)
}
