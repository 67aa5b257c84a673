// Package polyop implements the polygon-specific evolutionary operators:
// genome initializers, crossover over polygon lists and the mutations that
// perturb, replace or locally re-fit polygons. Every operator returns a new
// genome and never writes to its input.
package polyop

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
)

// Random builds genomes of Polygons random polygons with Vertices vertices
// each.
type Random struct {
	Canvas   fit.Canvas
	Polygons int
	Vertices int
	Band     fit.AlphaBand
}

// NewRandom validates the genome shape.
func NewRandom(c fit.Canvas, polygons, vertices int, band fit.AlphaBand) (*Random, error) {
	if polygons < 1 {
		return nil, &evo.ValidationError{Field: "Polygons", Reason: "must be positive"}
	}
	if vertices < 3 {
		return nil, &evo.ValidationError{Field: "Vertices", Reason: fmt.Sprintf("must be at least 3, got %d", vertices)}
	}
	if err := band.Validate(); err != nil {
		return nil, &evo.ValidationError{Field: "AlphaBand", Reason: err.Error()}
	}
	return &Random{Canvas: c, Polygons: polygons, Vertices: vertices, Band: band}, nil
}

func (r *Random) Initialize(rng *rand.Rand) fit.Genome {
	g := make(fit.Genome, r.Polygons)
	for i := range g {
		g[i] = fit.RandomPolygon(rng, r.Canvas, r.Vertices, r.Band)
	}
	return g
}

// Seeded derives every genome from a known one, typically a checkpointed
// best, by applying Perturb to a copy. A nil Perturb hands out clones.
type Seeded struct {
	Seed    fit.Genome
	Perturb evo.Mutation[fit.Genome]
}

func (s *Seeded) Initialize(rng *rand.Rand) fit.Genome {
	g := s.Seed.Clone()
	if s.Perturb == nil {
		return g
	}
	if m, ok := s.Perturb.Mutate(g, rng); ok {
		return m
	}
	return g
}
