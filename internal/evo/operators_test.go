package evo

import (
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredInts(fitness ...float64) []Scored[int] {
	pop := make([]Scored[int], len(fitness))
	for i, f := range fitness {
		pop[i] = Scored[int]{Genome: i, Fitness: f}
	}
	return pop
}

func TestObjective(t *testing.T) {
	assert.True(t, Maximize.Better(2, 1))
	assert.False(t, Maximize.Better(1, 1))
	assert.True(t, Minimize.Better(1, 2))

	pop := scoredInts(3, 7, 7, -1)
	assert.Equal(t, 1, Best(Maximize, pop).Genome, "ties keep the earliest")
	assert.Equal(t, 3, Best(Minimize, pop).Genome)

	ranked := Ranked(Maximize, pop)
	assert.Equal(t, []int{1, 2, 0, 3}, []int{ranked[0].Genome, ranked[1].Genome, ranked[2].Genome, ranked[3].Genome})
	assert.Equal(t, 0, pop[0].Genome, "Ranked must not reorder its input")
}

func TestTournamentPicksBestUnderHighPressure(t *testing.T) {
	sel, err := NewTournament[int](1000, Maximize)
	require.NoError(t, err)

	pop := scoredInts(1, 2, 9, 3, 4)
	before := slices.Clone(pop)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 20; i++ {
		assert.Equal(t, 2, sel.Select(pop, rng).Genome)
	}
	assert.Equal(t, before, pop, "selection must not modify the population")
}

func TestTournamentSizeZeroIsUniform(t *testing.T) {
	sel, err := NewTournament[int](0, Maximize)
	require.NoError(t, err)

	pop := scoredInts(1, 2, 3, 4)
	rng := rand.New(rand.NewSource(2))
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[sel.Select(pop, rng).Genome] = true
	}
	assert.Len(t, seen, 4)

	_, err = NewTournament[int](-1, Maximize)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRoulette(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var sel Roulette[int]

	pop := scoredInts(0, 5, 0)
	for i := 0; i < 50; i++ {
		assert.Equal(t, 1, sel.Select(pop, rng).Genome, "zero-fitness members are never picked")
	}

	counts := map[int]int{}
	weighted := scoredInts(1, 3)
	for i := 0; i < 4000; i++ {
		counts[sel.Select(weighted, rng).Genome]++
	}
	assert.InDelta(t, 3000, counts[1], 200)

	assert.PanicsWithValue(t, ErrNegativeFitness, func() { sel.Select(scoredInts(-1, 2), rng) })
	assert.PanicsWithValue(t, ErrNegativeFitness, func() { sel.Select(scoredInts(0, 0), rng) })
}

func TestElitism(t *testing.T) {
	e, err := NewElitism[int](2, 5, Maximize)
	require.NoError(t, err)

	top := e.Survivors(scoredInts(1, 8, 3, 9, 2))
	require.Len(t, top, 2)
	assert.Equal(t, 3, top[0].Genome)
	assert.Equal(t, 1, top[1].Genome)

	low, err := NewElitism[int](1, 3, Minimize)
	require.NoError(t, err)
	assert.Equal(t, 0, low.Survivors(scoredInts(1, 8, 3))[0].Genome)

	_, err = NewElitism[int](5, 5, Maximize)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Panics(t, func() { e.Survivors(scoredInts(1, 2)) })
	assert.Empty(t, Generational[int]{}.Survivors(scoredInts(1, 2)))
}

// scripted yields a fixed sequence of child batches.
type scripted struct {
	batches [][]float64
	next    int
}

func (s *scripted) Cross(_, _ Scored[float64], _ *rand.Rand) []float64 {
	b := s.batches[s.next%len(s.batches)]
	s.next++
	return b
}

var identity = EvaluatorFunc[float64](func(g float64) float64 { return g })

func TestAlphaChildReturnsFirstImprovement(t *testing.T) {
	inner := &scripted{batches: [][]float64{{1, 2}, {4, 11}, {12, 0}}}
	counter := NewCounter[float64](identity)
	ac, err := NewAlphaChild[float64](inner, counter, Maximize, 5)
	require.NoError(t, err)

	out := ac.Cross(Scored[float64]{Genome: 10, Fitness: 10}, Scored[float64]{Genome: 5, Fitness: 5}, nil)
	assert.Equal(t, []float64{11}, out)
	assert.Equal(t, 2, inner.next, "search stops at the first improving child")
	assert.EqualValues(t, 4, counter.Count())
}

func TestAlphaChildCrossScored(t *testing.T) {
	inner := &scripted{batches: [][]float64{{1, 2}, {7, 3}}}
	counter := NewCounter[float64](identity)
	ac, err := NewAlphaChild[float64](inner, counter, Maximize, 2)
	require.NoError(t, err)

	out := ac.CrossScored(Scored[float64]{Genome: 10, Fitness: 10}, Scored[float64]{Genome: 5, Fitness: 5}, nil)
	assert.Equal(t, []Scored[float64]{{Genome: 7, Fitness: 7}}, out)
	assert.EqualValues(t, 4, counter.Count())

	var _ ScoredCrossover[float64] = ac
}

func TestAlphaChildFallsBackToBestSeen(t *testing.T) {
	inner := &scripted{batches: [][]float64{{1, 2}, {7, 3}, {10, 0}}}
	ac, err := NewAlphaChild[float64](inner, identity, Maximize, 3)
	require.NoError(t, err)

	// Ties with the baseline do not count as improvements.
	out := ac.Cross(Scored[float64]{Genome: 10, Fitness: 10}, Scored[float64]{Genome: 5, Fitness: 5}, nil)
	assert.Equal(t, []float64{10}, out)
	assert.Equal(t, 3, inner.next)

	_, err = NewAlphaChild[float64](inner, identity, Maximize, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAlphaChildProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	var sampled []float64
	inner := CrossoverFunc[float64](func(a, b Scored[float64], rng *rand.Rand) []float64 {
		w := rng.Float64()
		kids := []float64{a.Genome*w + b.Genome*(1-w), rng.Float64() * 20}
		sampled = append(sampled, kids...)
		return kids
	})
	ac, err := NewAlphaChild[float64](inner, identity, Maximize, 4)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		sampled = sampled[:0]
		a := rng.Float64() * 20
		b := rng.Float64() * 20
		child := ac.Cross(Scored[float64]{Genome: a, Fitness: a}, Scored[float64]{Genome: b, Fitness: b}, rng)
		require.Len(t, child, 1)

		first := slices.IndexFunc(sampled, func(v float64) bool { return v > max(a, b) })
		if first >= 0 {
			assert.Equal(t, sampled[first], child[0], "the first improving sample is returned")
		} else {
			assert.Equal(t, slices.Max(sampled), child[0], "without improvement the best sample is returned")
		}
	}
}

func TestChain(t *testing.T) {
	add := func(n int) Mutation[int] {
		return MutationFunc[int](func(g int, _ *rand.Rand) (int, bool) { return g + n, true })
	}
	absent := NoMutation[int]{}

	out, ok := Chain[int]{add(1), add(10)}.Mutate(5, nil)
	assert.True(t, ok)
	assert.Equal(t, 16, out)

	_, ok = Chain[int]{add(1), absent}.Mutate(5, nil)
	assert.False(t, ok, "an absent final step makes the chain absent")

	assert.PanicsWithValue(t, ErrNoMutation, func() {
		Chain[int]{absent, add(1)}.Mutate(5, nil)
	})

	_, ok = Chain[int]{}.Mutate(5, nil)
	assert.False(t, ok)
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter[float64](identity)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Evaluate(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 800, c.Count())
}

func TestCheckProbability(t *testing.T) {
	assert.NoError(t, CheckProbability("p", 0))
	assert.NoError(t, CheckProbability("p", 1))
	assert.ErrorIs(t, CheckProbability("p", 1.01), ErrInvalidConfig)
	assert.ErrorIs(t, CheckProbability("p", -0.1), ErrInvalidConfig)

	var verr *ValidationError
	require.ErrorAs(t, CheckProbability("CrossoverProbability", 2), &verr)
	assert.Equal(t, "CrossoverProbability", verr.Field)
}
