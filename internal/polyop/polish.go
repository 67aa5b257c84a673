package polyop

import (
	"image/color"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/opt"
)

// ColourPolish is a memetic step: with probability Rate it picks one polygon
// and lets a mayfly swarm tune its RGB channels and alpha (within Band)
// against the real fitness, keeping every vertex fixed.
type ColourPolish struct {
	Rate       float64
	Band       fit.AlphaBand
	Iterations int
	Swarm      int
	Evaluator  evo.Evaluator[fit.Genome]
}

// NewColourPolish validates the rate and band. iterations and swarm size are
// raised to the optimizer's minimums.
func NewColourPolish(rate float64, band fit.AlphaBand, iterations, swarm int, eval evo.Evaluator[fit.Genome]) (*ColourPolish, error) {
	if err := evo.CheckProbability("MutationRate", rate); err != nil {
		return nil, err
	}
	if err := band.Validate(); err != nil {
		return nil, &evo.ValidationError{Field: "AlphaBand", Reason: err.Error()}
	}
	return &ColourPolish{
		Rate:       rate,
		Band:       band,
		Iterations: max(1, iterations),
		Swarm:      max(opt.MinPopulation, swarm),
		Evaluator:  eval,
	}, nil
}

func (m *ColourPolish) Mutate(g fit.Genome, rng *rand.Rand) (fit.Genome, bool) {
	out := g.Clone()
	if len(g) == 0 || rng.Float64() >= m.Rate {
		return out, true
	}

	idx := rng.Intn(len(out))
	trial := out.Clone()
	problem := opt.Problem{
		Dim:   4,
		Lower: 0,
		Upper: 1,
		Eval: func(x []float64) float64 {
			trial[idx].Colour = m.decode(x)
			// Fitness is maximized; the optimizer minimizes.
			return -m.Evaluator.Evaluate(trial)
		},
	}

	optimizer := opt.NewMayfly(m.Iterations, m.Swarm, rng.Int63())
	best, cost, err := optimizer.Minimize(problem)
	if err != nil {
		slog.Warn("Colour polish failed", "error", err)
		return out, true
	}

	before := m.Evaluator.Evaluate(out)
	if -cost > before {
		out[idx].Colour = m.decode(best)
	}
	return out, true
}

// decode maps [0,1]^4 onto RGB and the alpha band.
func (m *ColourPolish) decode(x []float64) color.NRGBA {
	a := m.Band.Min + x[3]*(m.Band.Max-m.Band.Min)
	return color.NRGBA{
		R: uint8(math.Round(x[0] * 255)),
		G: uint8(math.Round(x[1] * 255)),
		B: uint8(math.Round(x[2] * 255)),
		A: uint8(math.Round(a * 255)),
	}
}
