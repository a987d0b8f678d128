// Package config loads benchmark definitions from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/logregbench/internal/adapter"
	"github.com/cwbudde/logregbench/internal/dataset"
	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/harness"
	"github.com/cwbudde/logregbench/internal/opt"
)

// DatasetConfig selects the data a benchmark runs on. Path takes precedence
// over Simulated.
type DatasetConfig struct {
	Path      string                   `yaml:"path,omitempty" json:"path,omitempty"`
	Simulated *dataset.SimulatedConfig `yaml:"simulated,omitempty" json:"simulated,omitempty"`
}

// MayflyConfig tunes the derivative-free baseline solver.
type MayflyConfig struct {
	Population int     `yaml:"population" json:"population" validate:"gte=0"`
	Bound      float64 `yaml:"bound" json:"bound" validate:"gt=0"`
	Seed       int64   `yaml:"seed" json:"seed"`
}

// Benchmark is a complete benchmark definition.
type Benchmark struct {
	Name         string                    `yaml:"name" json:"name"`
	Dataset      DatasetConfig             `yaml:"dataset" json:"dataset"`
	Lambda       float64                   `yaml:"lambda" json:"lambda" validate:"gte=0"`
	MaxIter      int                       `yaml:"max_iter" json:"maxIter" validate:"gte=0"`
	Growth       float64                   `yaml:"growth" json:"growth" validate:"gt=1"`
	Workers      int                       `yaml:"workers" json:"workers" validate:"gte=1"`
	LearningRate float64                   `yaml:"learning_rate" json:"learningRate" validate:"gt=0"`
	Convergence  harness.ConvergenceConfig `yaml:"convergence" json:"convergence"`
	Parameters   harness.Parameters        `yaml:"parameters" json:"parameters"`
	Mayfly       MayflyConfig              `yaml:"mayfly" json:"mayfly"`
	OutputDir    string                    `yaml:"output_dir" json:"outputDir"`
	LogLevel     string                    `yaml:"log_level" json:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the benchmark used when no file is given.
func Default() *Benchmark {
	sim := dataset.DefaultSimulatedConfig()
	return &Benchmark{
		Name:         "logreg-l2",
		Dataset:      DatasetConfig{Simulated: &sim},
		Lambda:       1,
		MaxIter:      1000,
		Growth:       1.5,
		Workers:      runtime.NumCPU(),
		LearningRate: opt.DefaultStochasticLR,
		Convergence:  harness.DefaultConvergenceConfig(),
		Parameters:   harness.DefaultParameters(),
		Mayfly:       MayflyConfig{Population: opt.MinMayflyPopulation, Bound: 10, Seed: 42},
		OutputDir:    "./data",
		LogLevel:     "info",
	}
}

var validate = validator.New()

// Load reads and validates a benchmark file.
func Load(path string) (*Benchmark, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark file %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse benchmark file %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes YAML (or JSON, which is valid YAML) on top of Default and validates the result.
func Parse(data []byte) (*Benchmark, error) {
	b := Default()
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks field constraints and canonicalizes the option grid.
func (b *Benchmark) Validate() error {
	if err := validate.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid benchmark: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid benchmark: %w", err)
	}

	if b.Dataset.Path == "" && b.Dataset.Simulated == nil {
		return fmt.Errorf("invalid benchmark: dataset needs a path or a simulated block")
	}

	p := b.Parameters.WithDefaults()
	for i, k := range p.Solver {
		kind, err := opt.ParseKind(string(k))
		if err != nil {
			return fmt.Errorf("invalid benchmark: parameters.solver: %w", err)
		}
		p.Solver[i] = kind
	}
	for i, n := range p.Normalization {
		norm, err := opt.ParseNormalization(string(n))
		if err != nil {
			return fmt.Errorf("invalid benchmark: parameters.normalization: %w", err)
		}
		p.Normalization[i] = norm
	}
	for i, d := range p.Device {
		dev, err := device.Parse(string(d))
		if err != nil {
			return fmt.Errorf("invalid benchmark: parameters.device: %w", err)
		}
		p.Device[i] = dev
	}
	for _, m := range p.Momentum {
		if m < 0 || m >= 1 {
			return fmt.Errorf("invalid benchmark: parameters.momentum: %v not in [0, 1)", m)
		}
	}
	b.Parameters = p

	return nil
}

// LoadDataset materializes the configured data.
func (b *Benchmark) LoadDataset() (*dataset.Dataset, error) {
	if b.Dataset.Path != "" {
		return dataset.LoadCSV(b.Dataset.Path)
	}
	return dataset.Simulate(*b.Dataset.Simulated)
}

// AdapterOptions translates solver tuning into adapter options.
func (b *Benchmark) AdapterOptions() []adapter.Option {
	return []adapter.Option{
		adapter.WithLearningRate(b.LearningRate),
		adapter.WithMayfly(b.Mayfly.Population, b.Mayfly.Bound, b.Mayfly.Seed),
	}
}

// HarnessOptions builds the runner options for this benchmark.
func (b *Benchmark) HarnessOptions() harness.Options {
	return harness.Options{
		Parameters:  b.Parameters,
		Lambda:      b.Lambda,
		MaxIter:     b.MaxIter,
		Growth:      b.Growth,
		Workers:     b.Workers,
		Convergence: b.Convergence,
		AdapterOpts: b.AdapterOptions(),
	}
}
