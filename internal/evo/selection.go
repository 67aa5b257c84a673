package evo

import (
	"math/rand"
)

// Tournament draws one random contender, then Size challengers; a challenger
// replaces the current winner only when strictly better.
type Tournament[G any] struct {
	Size      int
	Objective Objective
}

// NewTournament validates the tournament size.
func NewTournament[G any](size int, o Objective) (*Tournament[G], error) {
	if size < 0 {
		return nil, &ValidationError{Field: "TournamentSize", Reason: "cannot be negative"}
	}
	return &Tournament[G]{Size: size, Objective: o}, nil
}

func (t *Tournament[G]) Select(pop []Scored[G], rng *rand.Rand) Scored[G] {
	winner := pop[rng.Intn(len(pop))]
	for i := 0; i < t.Size; i++ {
		c := pop[rng.Intn(len(pop))]
		if t.Objective.Better(c.Fitness, winner.Fitness) {
			winner = c
		}
	}
	return winner
}

// Roulette is fitness-proportionate selection. It is only defined for
// non-negative fitness with a positive total and panics with
// ErrNegativeFitness otherwise; negated-error fitness must be remapped before
// it can be used here.
type Roulette[G any] struct{}

func (Roulette[G]) Select(pop []Scored[G], rng *rand.Rand) Scored[G] {
	var total float64
	for _, s := range pop {
		if s.Fitness < 0 {
			panic(ErrNegativeFitness)
		}
		total += s.Fitness
	}
	if total <= 0 {
		panic(ErrNegativeFitness)
	}

	spin := rng.Float64()
	var acc float64
	for _, s := range pop {
		acc += s.Fitness / total
		if acc > spin {
			return s
		}
	}
	// Rounding can leave acc just below spin.
	return pop[len(pop)-1]
}
