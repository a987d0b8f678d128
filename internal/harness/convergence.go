package harness

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when a solver's curve is considered flat
type ConvergenceConfig struct {
	// Enabled controls whether early stopping is active
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Patience is the number of schedule points with no sufficient progress before stopping
	Patience int `json:"patience" yaml:"patience" validate:"gte=0"`

	// Threshold is the minimum relative decrease of the objective that counts as progress
	// Relative decrease = (lastSignificant - value) / |lastSignificant|
	Threshold float64 `json:"threshold" yaml:"threshold" validate:"gte=0"`
}

// DefaultConvergenceConfig returns the defaults used by the run command
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  5,
		Threshold: 1e-6,
	}
}

// DisabledConvergenceConfig runs every schedule point
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{Enabled: false}
}

// ConvergenceTracker records objective values along the schedule and
// detects when progress has stalled
type ConvergenceTracker struct {
	config          ConvergenceConfig
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:          config,
		best:            math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a value and returns true when the curve should stop
func (c *ConvergenceTracker) Update(value float64) bool {
	c.history = append(c.history, value)
	if value < c.best {
		c.best = value
	}

	if !c.config.Enabled {
		return false
	}

	// Diverged runs are not worth continuing.
	if math.IsNaN(value) || math.IsInf(value, 1) {
		slog.Debug("Objective diverged", "value", value)
		return true
	}

	if len(c.history) == 1 {
		c.lastSignificant = value
		return false
	}

	improvement := c.lastSignificant - value
	if denom := math.Abs(c.lastSignificant); denom > 0 {
		improvement /= denom
	}

	if improvement > c.config.Threshold {
		c.lastSignificant = value
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("No sufficient progress",
		"value", value,
		"last_significant", c.lastSignificant,
		"relative_improvement", improvement,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	return c.staleCount >= c.config.Patience
}

// Best returns the lowest value seen so far
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns a copy of every recorded value
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the current number of points without progress
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *ConvergenceTracker) Reset() {
	c.history = nil
	c.best = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
