package evo

import (
	"cmp"
	"slices"
)

// Scored is an evaluated individual. Unscored individuals are plain genomes.
type Scored[G any] struct {
	Genome  G       `json:"genome"`
	Fitness float64 `json:"fitness"`
}

// Objective declares whether larger or smaller fitness is better.
type Objective bool

const (
	Minimize Objective = false
	Maximize Objective = true
)

func (o Objective) String() string {
	if o == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Better reports whether a is strictly better than b.
func (o Objective) Better(a, b float64) bool {
	if o == Maximize {
		return a > b
	}
	return a < b
}

// Compare orders fitness values best first, for use with slices.SortFunc.
func (o Objective) Compare(a, b float64) int {
	if o == Maximize {
		return cmp.Compare(b, a)
	}
	return cmp.Compare(a, b)
}

// Best returns the best individual. Ties keep the earliest. pop must not be
// empty.
func Best[G any](o Objective, pop []Scored[G]) Scored[G] {
	best := pop[0]
	for _, s := range pop[1:] {
		if o.Better(s.Fitness, best.Fitness) {
			best = s
		}
	}
	return best
}

// Ranked returns a copy of pop sorted best first. The sort is stable.
func Ranked[G any](o Objective, pop []Scored[G]) []Scored[G] {
	out := slices.Clone(pop)
	slices.SortStableFunc(out, func(a, b Scored[G]) int {
		return o.Compare(a.Fitness, b.Fitness)
	})
	return out
}
