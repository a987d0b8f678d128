// Package dataset supplies design matrices and labels to the harness.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Dataset is a design matrix with raw labels.
type Dataset struct {
	Name  string
	X     *mat.Dense
	Y     []float64
	WTrue []float64 // generating weights, nil for loaded data
}

// Dims returns (n_samples, n_features).
func (d *Dataset) Dims() (int, int) { return d.X.Dims() }

// SimulatedConfig describes a synthetic classification problem.
type SimulatedConfig struct {
	NSamples  int     `json:"nSamples" yaml:"n_samples" validate:"required,gt=0"`
	NFeatures int     `json:"nFeatures" yaml:"n_features" validate:"required,gt=0"`
	Rho       float64 `json:"rho" yaml:"rho" validate:"gte=0,lt=1"`
	Density   float64 `json:"density" yaml:"density" validate:"gte=0,lte=1"`
	Noise     float64 `json:"noise" yaml:"noise" validate:"gte=0"`
	Seed      uint64  `json:"seed" yaml:"seed"`
}

// DefaultSimulatedConfig mirrors the usual small benchmark instance.
func DefaultSimulatedConfig() SimulatedConfig {
	return SimulatedConfig{
		NSamples:  200,
		NFeatures: 50,
		Rho:       0.5,
		Density:   0.5,
		Noise:     0.1,
		Seed:      42,
	}
}

// Simulate draws a correlated design whose columns follow an AR(1) process
// (corr(X_j, X_k) = ρ^|j−k|), a sparse ground-truth weight vector and labels
// sign(X·w + noise). The same config always yields the same data.
func Simulate(cfg SimulatedConfig) (*Dataset, error) {
	if cfg.NSamples <= 0 || cfg.NFeatures <= 0 {
		return nil, fmt.Errorf("simulated dataset needs positive dimensions, got %dx%d", cfg.NSamples, cfg.NFeatures)
	}
	if cfg.Rho < 0 || cfg.Rho >= 1 {
		return nil, fmt.Errorf("rho must be in [0, 1), got %v", cfg.Rho)
	}
	if cfg.Density < 0 || cfg.Density > 1 {
		return nil, fmt.Errorf("density must be in [0, 1], got %v", cfg.Density)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	n, p := cfg.NSamples, cfg.NFeatures

	data := make([]float64, n*p)
	innov := math.Sqrt(1 - cfg.Rho*cfg.Rho)
	for i := 0; i < n; i++ {
		row := data[i*p : (i+1)*p]
		row[0] = rng.NormFloat64()
		for j := 1; j < p; j++ {
			row[j] = cfg.Rho*row[j-1] + innov*rng.NormFloat64()
		}
	}
	X := mat.NewDense(n, p, data)

	w := make([]float64, p)
	nnz := int(math.Ceil(cfg.Density * float64(p)))
	for _, j := range rng.Perm(p)[:nnz] {
		w[j] = rng.NormFloat64()
	}

	scores := mat.NewVecDense(n, nil)
	scores.MulVec(X, mat.NewVecDense(p, w))

	y := make([]float64, n)
	for i := range y {
		if scores.AtVec(i)+cfg.Noise*rng.NormFloat64() > 0 {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}

	return &Dataset{
		Name:  fmt.Sprintf("simulated[n_samples=%d,n_features=%d,rho=%g]", n, p, cfg.Rho),
		X:     X,
		Y:     y,
		WTrue: w,
	}, nil
}

// ErrEmpty is returned when a loaded file has no rows.
var ErrEmpty = errors.New("dataset is empty")

// LoadCSV reads a headerless CSV file whose last column is the label.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Name = path
	return ds, nil
}

// ReadCSV parses rows of features followed by a label.
func ReadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var (
		data   []float64
		labels []float64
		width  int
	)
	for line := 1; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: need at least one feature and a label", line)
		}
		if width == 0 {
			width = len(rec) - 1
		}
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			if i == len(rec)-1 {
				labels = append(labels, v)
			} else {
				data = append(data, v)
			}
		}
	}
	if len(labels) == 0 {
		return nil, ErrEmpty
	}

	return &Dataset{
		Name: "csv",
		X:    mat.NewDense(len(labels), width, data),
		Y:    labels,
	}, nil
}
