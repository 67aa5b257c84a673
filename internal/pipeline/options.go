// Package pipeline assembles a polygon-fitting run from Options and runs it.
// The CLI and the job server both go through here.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
)

// Operator names accepted in Options.
const (
	SelectionTournament = "tournament"
	SelectionRoulette   = "roulette"

	CrossoverUniform     = "uniform"
	CrossoverSinglePoint = "single-point"

	MutationDelta       = "delta"
	MutationReplacement = "replacement"
	MutationLocalSearch = "local-search"
	MutationPolish      = "polish"

	ReplacementGenerational = "generational"
	ReplacementElitism      = "elitism"
)

// Options is the complete configuration surface of a run. It doubles as
// the server's job payload.
type Options struct {
	Polygons       int   `json:"polygons"`
	Vertices       int   `json:"vertices"`
	PopulationSize int   `json:"populationSize"`
	Epochs         int   `json:"epochs"` // 0 runs until stagnation or cancellation
	Seed           int64 `json:"seed"`
	Parallel       bool  `json:"parallel"`
	Workers        int   `json:"workers,omitempty"`
	GridFactor     int   `json:"gridFactor"`

	AlphaMin float64 `json:"alphaMin"`
	AlphaMax float64 `json:"alphaMax"`

	Selection      string `json:"selection"`
	TournamentSize int    `json:"tournamentSize"`

	Crossover            string  `json:"crossover"`
	CrossoverProbability float64 `json:"crossoverProbability"`
	CrossoverPoint       float64 `json:"crossoverPoint"`
	UniformProbability   float64 `json:"uniformProbability"`
	AlphaChildTries      int     `json:"alphaChildTries"` // 0 disables the wrapper

	Mutations        []string `json:"mutations"`
	MutationRate     float64  `json:"mutationRate"`
	VertexExtent     float64  `json:"vertexExtent"`
	ColourExtent     float64  `json:"colourExtent"`
	SeedDistance     float64  `json:"seedDistance,omitempty"`
	PolishIterations int      `json:"polishIterations"`
	PolishSwarm      int      `json:"polishSwarm"`

	Replacement string `json:"replacement"`
	Elites      int    `json:"elites"`

	// Patience > 0 stops the run after that many epochs without a relative
	// improvement above Threshold.
	Patience  int     `json:"patience,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`

	RenderEvery int `json:"renderEvery"`
}

// DefaultOptions mirrors the classic configuration: 100 five-sided polygons,
// 50 individuals, tournament of 3, alpha-child uniform crossover, delta then
// replacement mutation.
func DefaultOptions() Options {
	return Options{
		Polygons:             100,
		Vertices:             5,
		PopulationSize:       50,
		Epochs:               1000,
		Seed:                 1,
		Parallel:             true,
		GridFactor:           fit.DefaultGridFactor,
		AlphaMin:             0.125,
		AlphaMax:             0.25,
		Selection:            SelectionTournament,
		TournamentSize:       3,
		Crossover:            CrossoverUniform,
		CrossoverProbability: 0.9,
		CrossoverPoint:       0.9,
		UniformProbability:   0.5,
		AlphaChildTries:      20,
		Mutations:            []string{MutationDelta, MutationReplacement},
		MutationRate:         0.05,
		VertexExtent:         0.1,
		ColourExtent:         0.1,
		PolishIterations:     20,
		PolishSwarm:          20,
		Replacement:          ReplacementGenerational,
		Elites:               1,
		Threshold:            0.001,
		RenderEvery:          100,
	}
}

// Validate checks option values and operator names. Operator parameters are
// checked again by their constructors in Build.
func (o *Options) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &evo.ValidationError{Field: field, Reason: reason})
	}

	if o.Polygons < 1 {
		add("Polygons", "must be positive")
	}
	if o.Vertices < 3 {
		add("Vertices", "must be at least 3")
	}
	if o.PopulationSize < 2 {
		add("PopulationSize", "must be at least 2")
	}
	if o.Epochs < 0 {
		add("Epochs", "cannot be negative")
	}
	if o.Workers < 0 {
		add("Workers", "cannot be negative")
	}
	if o.GridFactor < 1 {
		add("GridFactor", "must be positive")
	}
	if err := (fit.AlphaBand{Min: o.AlphaMin, Max: o.AlphaMax}).Validate(); err != nil {
		add("AlphaBand", err.Error())
	}
	if o.RenderEvery < 0 {
		add("RenderEvery", "cannot be negative")
	}
	if o.Patience < 0 {
		add("Patience", "cannot be negative")
	}

	switch o.Selection {
	case SelectionTournament:
		if o.TournamentSize < 1 {
			add("TournamentSize", "must be positive")
		}
	case SelectionRoulette:
		// Image fitness is a negated error sum, so every individual scores
		// <= 0 and roulette weights are undefined.
		add("Selection", "roulette needs non-negative fitness, but image fitness is a negated error (<= 0); use tournament")
	default:
		add("Selection", fmt.Sprintf("unknown selection %q", o.Selection))
	}

	if o.Crossover != CrossoverUniform && o.Crossover != CrossoverSinglePoint {
		add("Crossover", fmt.Sprintf("unknown crossover %q", o.Crossover))
	}
	if o.AlphaChildTries < 0 {
		add("AlphaChildTries", "cannot be negative")
	}

	known := []string{MutationDelta, MutationReplacement, MutationLocalSearch, MutationPolish}
	for _, m := range o.Mutations {
		if !slices.Contains(known, m) {
			add("Mutations", fmt.Sprintf("unknown mutation %q (want one of %s)", m, strings.Join(known, ", ")))
		}
	}

	switch o.Replacement {
	case ReplacementGenerational:
	case ReplacementElitism:
		if o.Elites < 1 || o.Elites >= o.PopulationSize {
			add("Elites", "must lie in [1, PopulationSize)")
		}
	default:
		add("Replacement", fmt.Sprintf("unknown replacement %q", o.Replacement))
	}

	return errors.Join(errs...)
}

// ParseMutations splits a comma separated mutation chain, dropping blanks.
func ParseMutations(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
