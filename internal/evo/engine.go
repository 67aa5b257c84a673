package evo

import (
	"log/slog"
	"math/rand"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// Config is the complete, immutable description of a run.
type Config[G, S any] struct {
	PopulationSize       int
	CrossoverProbability float64
	Objective            Objective

	// Parallel evaluates and breeds on a bounded worker pool. Workers caps
	// the pool; zero means GOMAXPROCS.
	Parallel bool
	Workers  int

	// Seed drives the engine's master random source.
	Seed int64

	// Seeds are placed verbatim into generation 0 ahead of initialized
	// individuals. Extra seeds beyond PopulationSize are ignored.
	Seeds []G

	Initializer Initializer[G]
	Selector    Selector[G]
	Crossover   Crossover[G]
	Mutation    Mutation[G]    // nil means no mutation
	Replacement Replacement[G] // nil means Generational
	Evaluator   Evaluator[G]
	Termination Termination[S]
	Stats       StatsFactory[G, S]
}

// populationValidator is implemented by replacements whose parameters depend
// on the population size.
type populationValidator interface {
	ValidatePopulation(size int) error
}

// Validate checks the configuration before any work starts.
func (c *Config[G, S]) Validate() error {
	if c.PopulationSize < 2 {
		return &ValidationError{Field: "PopulationSize", Reason: "must be at least 2"}
	}
	if err := CheckProbability("CrossoverProbability", c.CrossoverProbability); err != nil {
		return err
	}
	if c.Workers < 0 {
		return &ValidationError{Field: "Workers", Reason: "cannot be negative"}
	}
	switch {
	case c.Initializer == nil:
		return &ValidationError{Field: "Initializer", Reason: "is required"}
	case c.Selector == nil:
		return &ValidationError{Field: "Selector", Reason: "is required"}
	case c.Crossover == nil && c.CrossoverProbability > 0:
		return &ValidationError{Field: "Crossover", Reason: "is required when crossover probability is positive"}
	case c.Evaluator == nil:
		return &ValidationError{Field: "Evaluator", Reason: "is required"}
	case c.Termination == nil:
		return &ValidationError{Field: "Termination", Reason: "is required"}
	case c.Stats == nil:
		return &ValidationError{Field: "Stats", Reason: "is required"}
	}
	if v, ok := c.Replacement.(populationValidator); ok {
		if err := v.ValidatePopulation(c.PopulationSize); err != nil {
			return err
		}
	}
	return nil
}

// Engine runs the generational loop:
//
//	initialize -> evaluate -> [report -> terminate? -> replace -> breed -> evaluate]*
//
// One master source seeds a fresh *rand.Rand per task in task order, so a
// parallel run produces exactly the same populations as a sequential one.
type Engine[G, S any] struct {
	cfg     Config[G, S]
	counter *Counter[G]
	rng     *rand.Rand
	workers int

	population []Scored[G]
}

// New validates cfg and builds an engine. If cfg.Evaluator is a *Counter it
// is used as is, so operators sharing it contribute to the count.
func New[G, S any](cfg Config[G, S]) (*Engine[G, S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Replacement == nil {
		cfg.Replacement = Generational[G]{}
	}
	if cfg.Mutation == nil {
		cfg.Mutation = NoMutation[G]{}
	}

	counter, ok := cfg.Evaluator.(*Counter[G])
	if !ok {
		counter = NewCounter(cfg.Evaluator)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Engine[G, S]{
		cfg:     cfg,
		counter: counter,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		workers: workers,
	}, nil
}

// Run executes epochs until the termination condition declines to continue
// and returns one statistics record per epoch. Epoch 0 is the evaluated
// initial population, so the result is never empty.
func (e *Engine[G, S]) Run() []S {
	slog.Info("Starting evolution",
		"population", e.cfg.PopulationSize,
		"objective", e.cfg.Objective.String(),
		"parallel", e.cfg.Parallel,
	)

	start := time.Now()
	e.population = e.initialize()

	var history []S
	for epoch := 0; ; epoch++ {
		best := Best(e.cfg.Objective, e.population)
		history = append(history, e.cfg.Stats(epoch, time.Since(start), e.counter.Count(), best, e.population))

		slog.Debug("Epoch complete",
			"epoch", epoch,
			"best_fitness", best.Fitness,
			"evaluations", e.counter.Count(),
			"elapsed", time.Since(start),
		)

		if !e.cfg.Termination.Continue(history) {
			break
		}

		start = time.Now()
		e.population = e.nextGeneration(e.population)
	}

	slog.Info("Evolution finished",
		"epochs", len(history),
		"evaluations", e.counter.Count(),
		"best_fitness", Best(e.cfg.Objective, e.population).Fitness,
	)
	return history
}

// Population returns the final scored population after Run.
func (e *Engine[G, S]) Population() []Scored[G] {
	return e.population
}

// Evaluations returns the number of decode+score calls so far.
func (e *Engine[G, S]) Evaluations() int64 {
	return e.counter.Count()
}

func (e *Engine[G, S]) initialize() []Scored[G] {
	n := e.cfg.PopulationSize
	seeds := e.seeds(n)
	pop := make([]Scored[G], n)
	e.forEach(n, func(i int) {
		var g G
		if i < len(e.cfg.Seeds) {
			g = e.cfg.Seeds[i]
		} else {
			g = e.cfg.Initializer.Initialize(rand.New(rand.NewSource(seeds[i])))
		}
		pop[i] = Scored[G]{Genome: g, Fitness: e.counter.Evaluate(g)}
	})
	return pop
}

func (e *Engine[G, S]) nextGeneration(pop []Scored[G]) []Scored[G] {
	survivors := e.cfg.Replacement.Survivors(pop)
	need := e.cfg.PopulationSize - len(survivors)

	children := e.breed(pop, need)
	scored := make([]Scored[G], len(children))
	e.forEach(len(children), func(i int) {
		c := children[i]
		if !c.scored {
			c.fitness = e.counter.Evaluate(c.genome)
		}
		scored[i] = Scored[G]{Genome: c.genome, Fitness: c.fitness}
	})

	next := make([]Scored[G], 0, e.cfg.PopulationSize)
	next = append(next, survivors...)
	return append(next, scored...)
}

// offspring is a bred child. It is already scored when a ScoredCrossover
// produced it and no mutation changed it since.
type offspring[G any] struct {
	genome  G
	fitness float64
	scored  bool
}

// breed produces exactly n children. Each task yields one or two children;
// tasks run in rounds until enough exist and overflow is trimmed.
func (e *Engine[G, S]) breed(pop []Scored[G], n int) []offspring[G] {
	children := make([]offspring[G], 0, n+1)
	for len(children) < n {
		tasks := (n - len(children) + 1) / 2
		seeds := e.seeds(tasks)
		results := make([][]offspring[G], tasks)
		e.forEach(tasks, func(i int) {
			results[i] = e.breedOne(pop, rand.New(rand.NewSource(seeds[i])))
		})
		for _, r := range results {
			if len(r) == 0 {
				panic("evo: crossover produced no children")
			}
			children = append(children, r...)
		}
	}
	return children[:n]
}

func (e *Engine[G, S]) breedOne(pop []Scored[G], rng *rand.Rand) []offspring[G] {
	a := e.cfg.Selector.Select(pop, rng)
	b := e.cfg.Selector.Select(pop, rng)

	var kids []offspring[G]
	if e.cfg.CrossoverProbability > 0 && rng.Float64() < e.cfg.CrossoverProbability {
		kids = e.cross(a, b, rng)
	} else {
		kids = []offspring[G]{{genome: a.Genome}, {genome: b.Genome}}
	}

	for i := range kids {
		if m, ok := e.cfg.Mutation.Mutate(kids[i].genome, rng); ok {
			kids[i] = offspring[G]{genome: m}
		}
	}
	return kids
}

func (e *Engine[G, S]) cross(a, b Scored[G], rng *rand.Rand) []offspring[G] {
	if sc, ok := e.cfg.Crossover.(ScoredCrossover[G]); ok {
		scored := sc.CrossScored(a, b, rng)
		kids := make([]offspring[G], len(scored))
		for i, s := range scored {
			kids[i] = offspring[G]{genome: s.Genome, fitness: s.Fitness, scored: true}
		}
		return kids
	}

	genomes := e.cfg.Crossover.Cross(a, b, rng)
	kids := make([]offspring[G], len(genomes))
	for i, g := range genomes {
		kids[i] = offspring[G]{genome: g}
	}
	return kids
}

func (e *Engine[G, S]) seeds(n int) []int64 {
	s := make([]int64, n)
	for i := range s {
		s[i] = e.rng.Int63()
	}
	return s
}

// forEach runs fn for 0..n-1, on the worker pool when Parallel is set.
func (e *Engine[G, S]) forEach(n int, fn func(i int)) {
	if !e.cfg.Parallel || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	p := pool.New().WithMaxGoroutines(e.workers)
	for i := 0; i < n; i++ {
		p.Go(func() { fn(i) })
	}
	p.Wait()
}
