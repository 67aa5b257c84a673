package evo

import (
	"math/rand"
)

// AlphaChild wraps another crossover and searches, within MaxTries rounds,
// for a child strictly better than both parents. The first such child is
// returned alone; otherwise the best child seen across all rounds is.
type AlphaChild[G any] struct {
	Inner     Crossover[G]
	Evaluator Evaluator[G]
	Objective Objective
	MaxTries  int
}

// NewAlphaChild validates the try budget.
func NewAlphaChild[G any](inner Crossover[G], eval Evaluator[G], o Objective, maxTries int) (*AlphaChild[G], error) {
	if maxTries < 1 {
		return nil, &ValidationError{Field: "AlphaChildTries", Reason: "must be at least 1"}
	}
	if inner == nil || eval == nil {
		return nil, &ValidationError{Field: "AlphaChild", Reason: "needs an inner crossover and an evaluator"}
	}
	return &AlphaChild[G]{Inner: inner, Evaluator: eval, Objective: o, MaxTries: maxTries}, nil
}

func (c *AlphaChild[G]) Cross(a, b Scored[G], rng *rand.Rand) []G {
	return []G{c.search(a, b, rng).Genome}
}

// CrossScored is Cross with the child's fitness attached.
func (c *AlphaChild[G]) CrossScored(a, b Scored[G], rng *rand.Rand) []Scored[G] {
	return []Scored[G]{c.search(a, b, rng)}
}

func (c *AlphaChild[G]) search(a, b Scored[G], rng *rand.Rand) Scored[G] {
	baseline := a.Fitness
	if c.Objective.Better(b.Fitness, baseline) {
		baseline = b.Fitness
	}

	var (
		best     Scored[G]
		haveBest bool
	)
	for try := 0; try < c.MaxTries; try++ {
		for _, child := range c.Inner.Cross(a, b, rng) {
			f := c.Evaluator.Evaluate(child)
			if c.Objective.Better(f, baseline) {
				return Scored[G]{Genome: child, Fitness: f}
			}
			if !haveBest || c.Objective.Better(f, best.Fitness) {
				best, haveBest = Scored[G]{Genome: child, Fitness: f}, true
			}
		}
	}
	if !haveBest {
		panic("evo: alpha-child inner crossover produced no children")
	}
	return best
}
