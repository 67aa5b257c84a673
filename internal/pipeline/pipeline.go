package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/cwbudde/evopolyfit/internal/polyop"
	"github.com/cwbudde/evopolyfit/internal/report"
	"github.com/cwbudde/evopolyfit/internal/store"
)

// ResumePerturbRate is the per-polygon delta rate applied to the copies of
// a resumed genome that fill generation 0.
const ResumePerturbRate = 0.2

type (
	genome = fit.Genome
	stats  = report.EpochStats
)

// Pipeline is a validated operator set bound to one reference image.
type Pipeline struct {
	opts     Options
	fitness  *fit.Fitness
	renderer fit.Renderer
	counter  *evo.Counter[genome]
	band     fit.AlphaBand

	initializer evo.Initializer[genome]
	selector    evo.Selector[genome]
	crossover   evo.Crossover[genome]
	mutation    evo.Mutation[genome]
	replacement evo.Replacement[genome]

	resume fit.Genome
}

// Output wires a run to its sinks. Every field is optional.
type Output struct {
	RunID   string
	Dir     string // best.png and generation_<epoch>.png
	Trace   *store.TraceWriter
	History store.History
	Metrics *report.Metrics
	OnEpoch func(s report.EpochStats, improved bool)

	// FirstEpoch and PriorEvaluations continue the numbering of a resumed
	// run: its generation 0 is recorded as FirstEpoch.
	FirstEpoch       int
	PriorEvaluations int64
}

// Result is what a finished run hands back.
type Result struct {
	History     []report.EpochStats
	Summary     report.Summary
	Best        fit.Genome
	BestFitness float64
	Evaluations int64 // spent by this run; History carries the running total
	Cancelled   bool
}

// Build validates opts and constructs every operator against ref.
func Build(ref image.Image, opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	f, err := fit.NewFitness(ref, opts.GridFactor)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	renderer := fit.NewDecoder(f.Canvas())
	p := &Pipeline{
		opts:     opts,
		fitness:  f,
		renderer: renderer,
		counter:  evo.NewCounter[genome](&fit.Evaluator{Renderer: renderer, Fitness: f}),
		band:     fit.AlphaBand{Min: opts.AlphaMin, Max: opts.AlphaMax},
	}

	if p.initializer, err = polyop.NewRandom(f.Canvas(), opts.Polygons, opts.Vertices, p.band); err != nil {
		return nil, err
	}
	if p.selector, err = evo.NewTournament[genome](opts.TournamentSize, evo.Maximize); err != nil {
		return nil, err
	}
	if p.crossover, err = p.buildCrossover(); err != nil {
		return nil, err
	}
	if p.mutation, err = p.buildMutation(); err != nil {
		return nil, err
	}
	if p.replacement, err = p.buildReplacement(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) buildCrossover() (evo.Crossover[genome], error) {
	var (
		inner evo.Crossover[genome]
		err   error
	)
	switch p.opts.Crossover {
	case CrossoverSinglePoint:
		inner, err = polyop.NewSinglePoint(p.opts.CrossoverPoint)
	default:
		inner, err = polyop.NewUniform(p.opts.UniformProbability)
	}
	if err != nil || p.opts.AlphaChildTries == 0 {
		return inner, err
	}
	return evo.NewAlphaChild(inner, evo.Evaluator[genome](p.counter), evo.Maximize, p.opts.AlphaChildTries)
}

func (p *Pipeline) buildMutation() (evo.Mutation[genome], error) {
	if len(p.opts.Mutations) == 0 {
		return nil, nil
	}

	o := p.opts
	chain := make(evo.Chain[genome], 0, len(o.Mutations))
	for _, name := range o.Mutations {
		var (
			m   evo.Mutation[genome]
			err error
		)
		switch name {
		case MutationDelta:
			m, err = polyop.NewDelta(o.MutationRate, o.VertexExtent, o.ColourExtent, p.fitness.Canvas())
		case MutationReplacement:
			m, err = polyop.NewReplacement(o.MutationRate, p.band, p.fitness.Canvas(), o.SeedDistance)
		case MutationLocalSearch:
			m, err = polyop.NewLocalSearch(o.MutationRate, p.band, o.Vertices, p.fitness, p.renderer, p.counter)
		case MutationPolish:
			m, err = polyop.NewColourPolish(o.MutationRate, p.band, o.PolishIterations, o.PolishSwarm, p.counter)
		}
		if err != nil {
			return nil, fmt.Errorf("mutation %s: %w", name, err)
		}
		chain = append(chain, m)
	}
	return chain, nil
}

func (p *Pipeline) buildReplacement() (evo.Replacement[genome], error) {
	if p.opts.Replacement == ReplacementElitism {
		return evo.NewElitism[genome](p.opts.Elites, p.opts.PopulationSize, evo.Maximize)
	}
	return evo.Generational[genome]{}, nil
}

// Fitness exposes the cached reference for diff images.
func (p *Pipeline) Fitness() *fit.Fitness {
	return p.fitness
}

// Renderer decodes genomes on the pipeline's canvas.
func (p *Pipeline) Renderer() fit.Renderer {
	return p.renderer
}

// Options returns the validated options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Resume seeds the next run with g: it enters generation 0 unchanged and
// the rest of the population starts as perturbed copies of it.
func (p *Pipeline) Resume(g fit.Genome) error {
	if len(g) != p.opts.Polygons {
		return fmt.Errorf("resume genome has %d polygons, options ask for %d", len(g), p.opts.Polygons)
	}
	if err := p.fitness.Canvas().Validate(g); err != nil {
		return fmt.Errorf("resume genome: %w", err)
	}
	p.resume = g.Clone()
	return nil
}

func (p *Pipeline) termination(ctx context.Context) (evo.Termination[stats], error) {
	var conds []evo.Termination[stats]
	if p.opts.Epochs > 0 {
		conds = append(conds, evo.MaxEpochs[stats](p.opts.Epochs))
	}
	if p.opts.Patience > 0 {
		st, err := evo.NewStagnation(evo.ConvergenceConfig{Patience: p.opts.Patience, Threshold: p.opts.Threshold}, evo.Maximize, report.BestFitness)
		if err != nil {
			return nil, err
		}
		conds = append(conds, st)
	}
	return evo.UntilDone(ctx, evo.All(conds...)), nil
}

// Run executes one evolution. Cancelling ctx ends the run after the current
// epoch; the result is still returned with Cancelled set. When an output
// sink failed the result is returned together with that error.
func (p *Pipeline) Run(ctx context.Context, out Output) (*Result, error) {
	term, err := p.termination(ctx)
	if err != nil {
		return nil, err
	}

	recorder := &report.Recorder{
		RunID:       out.RunID,
		Renderer:    p.renderer,
		OutDir:      out.Dir,
		RenderEvery: p.opts.RenderEvery,
		Trace:       out.Trace,
		History:     out.History,
		Metrics:     out.Metrics,
		OnEpoch:     out.OnEpoch,

		EpochOffset:      out.FirstEpoch,
		EvaluationOffset: out.PriorEvaluations,
	}

	cfg := evo.Config[genome, stats]{
		PopulationSize:       p.opts.PopulationSize,
		CrossoverProbability: p.opts.CrossoverProbability,
		Objective:            evo.Maximize,
		Parallel:             p.opts.Parallel,
		Workers:              p.opts.Workers,
		Seed:                 p.opts.Seed,
		Initializer:          p.initializer,
		Selector:             p.selector,
		Crossover:            p.crossover,
		Mutation:             p.mutation,
		Replacement:          p.replacement,
		Evaluator:            p.counter,
		Termination:          term,
		Stats:                recorder.Stats,
	}
	if p.resume != nil {
		perturb, err := polyop.NewDelta(ResumePerturbRate, p.opts.VertexExtent, p.opts.ColourExtent, p.fitness.Canvas())
		if err != nil {
			return nil, err
		}
		cfg.Seeds = []genome{p.resume}
		cfg.Initializer = &polyop.Seeded{Seed: p.resume, Perturb: perturb}
	}

	engine, err := evo.New(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("Run starting",
		"run_id", out.RunID,
		"polygons", p.opts.Polygons,
		"population", p.opts.PopulationSize,
		"canvas", fmt.Sprintf("%dx%d", p.fitness.Canvas().Width, p.fitness.Canvas().Height),
		"resumed", p.resume != nil,
		"first_epoch", out.FirstEpoch,
	)

	history := engine.Run()
	summary, err := report.Summarize(history)
	if err != nil {
		return nil, err
	}
	best, bestFitness, _ := recorder.Best()

	res := &Result{
		History:     history,
		Summary:     summary,
		Best:        best,
		BestFitness: bestFitness,
		Evaluations: engine.Evaluations(),
		Cancelled:   ctx.Err() != nil,
	}
	slog.Info("Run finished", "run_id", out.RunID, "summary", summary, "cancelled", res.Cancelled)

	if err := recorder.Err(); err != nil {
		return res, fmt.Errorf("run output: %w", err)
	}
	return res, nil
}
