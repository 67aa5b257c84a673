package evo

import "math/rand"

// Chain applies mutations in order, each to the result of the previous one.
// Every step after the first must receive a present result: an absent
// intermediate result panics with ErrNoMutation. The final step may return
// absent, in which case the chain does too.
type Chain[G any] []Mutation[G]

func (c Chain[G]) Mutate(g G, rng *rand.Rand) (G, bool) {
	if len(c) == 0 {
		return g, false
	}
	cur, ok := c[0].Mutate(g, rng)
	for _, step := range c[1:] {
		if !ok {
			panic(ErrNoMutation)
		}
		cur, ok = step.Mutate(cur, rng)
	}
	return cur, ok
}

// NoMutation never produces a result.
type NoMutation[G any] struct{}

func (NoMutation[G]) Mutate(g G, _ *rand.Rand) (G, bool) {
	return g, false
}
