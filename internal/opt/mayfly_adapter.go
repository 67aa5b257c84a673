package opt

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinPopulation is the smallest swarm mayfly v0.1.0 accepts.
const MinPopulation = 20

// MayflyAdapter wraps the external Mayfly library to conform to Optimizer.
// Each adapter owns its seed; callers running in parallel build one adapter
// per task with a seed drawn from their task-local source.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a Mayfly optimizer. popSize is raised to MinPopulation.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: max(1, maxIters),
		popSize:  max(MinPopulation, popSize),
		seed:     seed,
	}
}

// Minimize runs the swarm on p. The objective only ever sees in-bounds
// positions, and the returned parameters are clamped the same way.
func (m *MayflyAdapter) Minimize(p Problem) ([]float64, float64, error) {
	if err := p.Validate(); err != nil {
		return nil, 0, err
	}

	buf := make([]float64, p.Dim)
	eval := func(x []float64) float64 {
		copy(buf, x)
		return p.Eval(p.Clamp(buf))
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = p.Dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = p.Lower
	config.UpperBound = p.Upper
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly: %w", err)
	}

	best := p.Clamp(append([]float64(nil), result.GlobalBest.Position...))
	return best, p.Eval(best), nil
}
