package evo

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines parameters for detecting that a run has stalled.
type ConvergenceConfig struct {
	// Patience is the number of epochs with no significant improvement
	// before the run counts as converged.
	Patience int `json:"patience"`

	// Threshold is the minimum relative improvement that counts as progress.
	// Example: 0.001 = 0.1% improvement required.
	Threshold float64 `json:"threshold"`
}

// DefaultConvergenceConfig returns sensible defaults for convergence detection.
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Patience:  50,
		Threshold: 0.001,
	}
}

// Validate rejects non-positive patience or a negative threshold.
func (c ConvergenceConfig) Validate() error {
	if c.Patience < 1 {
		return &ValidationError{Field: "Patience", Reason: "must be positive"}
	}
	if c.Threshold < 0 {
		return &ValidationError{Field: "Threshold", Reason: "cannot be negative"}
	}
	return nil
}

// ConvergenceTracker follows the best fitness per epoch and detects when it
// stops improving.
type ConvergenceTracker struct {
	config          ConvergenceConfig
	objective       Objective
	history         []float64
	best            float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker for the given objective.
func NewConvergenceTracker(config ConvergenceConfig, o Objective) *ConvergenceTracker {
	t := &ConvergenceTracker{config: config, objective: o}
	t.Reset()
	return t
}

// Update records the best fitness of one epoch and returns true once the
// run has converged.
func (c *ConvergenceTracker) Update(fitness float64) bool {
	c.history = append(c.history, fitness)
	if c.objective.Better(fitness, c.best) {
		c.best = fitness
	}

	if len(c.history) == 1 {
		c.lastSignificant = fitness
		return false
	}

	improvement := c.relativeImprovement(fitness)
	if improvement >= c.config.Threshold && improvement > 0 {
		c.lastSignificant = fitness
		c.staleCount = 0
		slog.Debug("Fitness improvement detected",
			"fitness", fitness,
			"relative_improvement", improvement,
		)
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Info("Convergence detected",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_fitness", c.best,
		)
		return true
	}
	return false
}

// relativeImprovement measures progress from the last significant value in
// the objective's direction. A zero reference counts any strict gain as
// infinitely large and anything else as none.
func (c *ConvergenceTracker) relativeImprovement(fitness float64) float64 {
	gain := fitness - c.lastSignificant
	if c.objective == Minimize {
		gain = -gain
	}
	if c.lastSignificant == 0 {
		if gain > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gain / math.Abs(c.lastSignificant)
}

// Best returns the best fitness seen so far.
func (c *ConvergenceTracker) Best() float64 {
	return c.best
}

// History returns a copy of the recorded fitness values.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.history...)
}

// StaleCount returns the number of epochs since the last significant gain.
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state.
func (c *ConvergenceTracker) Reset() {
	c.history = nil
	c.staleCount = 0
	if c.objective == Maximize {
		c.best = math.Inf(-1)
	} else {
		c.best = math.Inf(1)
	}
	c.lastSignificant = c.best
}
