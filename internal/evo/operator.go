package evo

import (
	"math/rand"
	"time"
)

// Operators receive their random source per call. The engine hands every
// concurrent unit of work its own *rand.Rand, so operators must not keep one.

// Initializer produces one random genome.
type Initializer[G any] interface {
	Initialize(rng *rand.Rand) G
}

// Selector picks one parent. It must not modify pop.
type Selector[G any] interface {
	Select(pop []Scored[G], rng *rand.Rand) Scored[G]
}

// Crossover recombines two parents into one or two unscored children.
type Crossover[G any] interface {
	Cross(a, b Scored[G], rng *rand.Rand) []G
}

// ScoredCrossover is implemented by crossovers that evaluate their children
// while searching. The engine keeps those scores for children no mutation
// changes, so the fitness must come from the engine's own evaluator.
type ScoredCrossover[G any] interface {
	Crossover[G]
	CrossScored(a, b Scored[G], rng *rand.Rand) []Scored[G]
}

// Mutation perturbs a genome. A false second result means no mutation was
// produced and the caller keeps g unchanged. Implementations return a new
// genome and never modify g.
type Mutation[G any] interface {
	Mutate(g G, rng *rand.Rand) (G, bool)
}

// Replacement chooses the individuals carried verbatim into the next
// generation. The engine fills the rest with bred children.
type Replacement[G any] interface {
	Survivors(pop []Scored[G]) []Scored[G]
}

// Evaluator decodes and scores one genome.
type Evaluator[G any] interface {
	Evaluate(g G) float64
}

// Termination inspects the statistics recorded so far and reports whether
// the run should continue.
type Termination[S any] interface {
	Continue(history []S) bool
}

// StatsFactory snapshots one epoch. population is only valid during the call.
type StatsFactory[G, S any] func(epoch int, elapsed time.Duration, evaluations int64, best Scored[G], population []Scored[G]) S

// Func adapters let plain functions serve as operators.

// InitializerFunc adapts a function to Initializer.
type InitializerFunc[G any] func(rng *rand.Rand) G

func (f InitializerFunc[G]) Initialize(rng *rand.Rand) G { return f(rng) }

// SelectorFunc adapts a function to Selector.
type SelectorFunc[G any] func(pop []Scored[G], rng *rand.Rand) Scored[G]

func (f SelectorFunc[G]) Select(pop []Scored[G], rng *rand.Rand) Scored[G] { return f(pop, rng) }

// CrossoverFunc adapts a function to Crossover.
type CrossoverFunc[G any] func(a, b Scored[G], rng *rand.Rand) []G

func (f CrossoverFunc[G]) Cross(a, b Scored[G], rng *rand.Rand) []G { return f(a, b, rng) }

// MutationFunc adapts a function to Mutation.
type MutationFunc[G any] func(g G, rng *rand.Rand) (G, bool)

func (f MutationFunc[G]) Mutate(g G, rng *rand.Rand) (G, bool) { return f(g, rng) }

// ReplacementFunc adapts a function to Replacement.
type ReplacementFunc[G any] func(pop []Scored[G]) []Scored[G]

func (f ReplacementFunc[G]) Survivors(pop []Scored[G]) []Scored[G] { return f(pop) }

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc[G any] func(g G) float64

func (f EvaluatorFunc[G]) Evaluate(g G) float64 { return f(g) }

// TerminationFunc adapts a function to Termination.
type TerminationFunc[S any] func(history []S) bool

func (f TerminationFunc[S]) Continue(history []S) bool { return f(history) }
