package adapter

import (
	"github.com/cwbudde/logregbench/internal/device"
	"github.com/cwbudde/logregbench/internal/opt"
)

// Skip reasons reported to the harness.
const (
	ReasonAcceleratorUnavailable = "accelerator not available"
	ReasonFullBatchSize          = "full-batch mode requires full-batch size"
	ReasonStochasticFullBatch    = "stochastic mode is incompatible with a full-batch size"
	ReasonStochasticLineSearch   = "line search is not supported in the stochastic path"
	ReasonNoStochasticVariant    = "solver has no stochastic variant"
	ReasonNormalizationFullBatch = "normalization has no effect in full-batch mode"
	ReasonMomentumFullBatch      = "momentum has no effect in full-batch mode"
	ReasonNoLineSearch           = "solver does not support line search"
)

// ShouldSkip decides whether cfg is a degenerate combination. Rules are
// checked in order and the first match wins. accelerator reports whether an
// accelerator is present in this process.
func ShouldSkip(cfg Config, accelerator bool) (bool, string) {
	if cfg.Device == device.Accelerator && !accelerator {
		return true, ReasonAcceleratorUnavailable
	}

	if !cfg.Stochastic && !cfg.BatchSize.IsFull() {
		return true, ReasonFullBatchSize
	}

	if cfg.Stochastic {
		if cfg.BatchSize.IsFull() {
			return true, ReasonStochasticFullBatch
		}
		if cfg.LineSearch {
			return true, ReasonStochasticLineSearch
		}
		if !cfg.Solver.SupportsStochastic() {
			return true, ReasonNoStochasticVariant
		}
	} else {
		if cfg.Normalization != "" && cfg.Normalization != opt.NormNone {
			return true, ReasonNormalizationFullBatch
		}
		if cfg.Momentum != 0 {
			return true, ReasonMomentumFullBatch
		}
		if cfg.LineSearch && !cfg.Solver.SupportsLineSearch() {
			return true, ReasonNoLineSearch
		}
	}

	return false, ""
}
