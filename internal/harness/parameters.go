// Package harness drives benchmark configurations: it enumerates the option
// grid, asks each adapter whether to skip, and traces the objective over an
// increasing iteration schedule.
package harness

import (
	"github.com/cwbudde/logregbench/internal/adapter"
	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/opt"
)

// Parameters is the declarative option grid. Every field lists the values
// to try; Configs returns their cross-product.
type Parameters struct {
	Solver        []opt.Kind          `json:"solver" yaml:"solver"`
	LineSearch    []bool              `json:"lineSearch" yaml:"line_search"`
	Stochastic    []bool              `json:"stochastic" yaml:"stochastic"`
	BatchSize     []adapter.BatchSize `json:"batchSize" yaml:"batch_size"`
	Normalization []opt.Normalization `json:"normalization" yaml:"normalization"`
	Momentum      []float64           `json:"momentum" yaml:"momentum"`
	Device        []device.Device     `json:"device" yaml:"device"`
}

// DefaultParameters is the grid the benchmark ships with.
func DefaultParameters() Parameters {
	return Parameters{
		Solver:        []opt.Kind{opt.KindPGD},
		LineSearch:    []bool{false, true},
		Stochastic:    []bool{false, true},
		BatchSize:     []adapter.BatchSize{32, 128, 200, adapter.FullBatch},
		Normalization: opt.Normalizations(),
		Momentum:      []float64{0, 0.9},
		Device:        []device.Device{device.Accelerator, device.CPU},
	}
}

// WithDefaults fills every empty axis from DefaultParameters.
func (p Parameters) WithDefaults() Parameters {
	d := DefaultParameters()
	if len(p.Solver) == 0 {
		p.Solver = d.Solver
	}
	if len(p.LineSearch) == 0 {
		p.LineSearch = d.LineSearch
	}
	if len(p.Stochastic) == 0 {
		p.Stochastic = d.Stochastic
	}
	if len(p.BatchSize) == 0 {
		p.BatchSize = d.BatchSize
	}
	if len(p.Normalization) == 0 {
		p.Normalization = d.Normalization
	}
	if len(p.Momentum) == 0 {
		p.Momentum = d.Momentum
	}
	if len(p.Device) == 0 {
		p.Device = d.Device
	}
	return p
}

// Size is the number of configurations in the grid.
func (p Parameters) Size() int {
	return len(p.Solver) * len(p.LineSearch) * len(p.Stochastic) * len(p.BatchSize) *
		len(p.Normalization) * len(p.Momentum) * len(p.Device)
}

// Configs enumerates the cross-product in a stable order, the last axis
// (device) varying fastest.
func (p Parameters) Configs() []adapter.Config {
	out := make([]adapter.Config, 0, p.Size())
	for _, solver := range p.Solver {
		for _, ls := range p.LineSearch {
			for _, st := range p.Stochastic {
				for _, bs := range p.BatchSize {
					for _, norm := range p.Normalization {
						for _, m := range p.Momentum {
							for _, dev := range p.Device {
								out = append(out, adapter.Config{
									Solver:        solver,
									LineSearch:    ls,
									Stochastic:    st,
									BatchSize:     bs,
									Normalization: norm,
									Momentum:      m,
									Device:        dev,
								})
							}
						}
					}
				}
			}
		}
	}
	return out
}
