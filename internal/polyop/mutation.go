package polyop

import (
	"image/color"
	"math/rand"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
)

// Replacement swaps each polygon, with probability Rate, for a freshly
// randomized one with the same vertex count. When SeedDistance is positive
// the new vertices are drawn within SeedDistance*extent of a random seed
// point, which favours small polygons.
type Replacement struct {
	Rate         float64
	Band         fit.AlphaBand
	Canvas       fit.Canvas
	SeedDistance float64
}

// NewReplacement validates rate, band and seed distance.
func NewReplacement(rate float64, band fit.AlphaBand, c fit.Canvas, seedDistance float64) (*Replacement, error) {
	if err := evo.CheckProbability("MutationRate", rate); err != nil {
		return nil, err
	}
	if err := band.Validate(); err != nil {
		return nil, &evo.ValidationError{Field: "AlphaBand", Reason: err.Error()}
	}
	if seedDistance < 0 || seedDistance > 1 {
		return nil, &evo.ValidationError{Field: "SeedDistance", Reason: "must lie in [0, 1]"}
	}
	return &Replacement{Rate: rate, Band: band, Canvas: c, SeedDistance: seedDistance}, nil
}

func (m *Replacement) Mutate(g fit.Genome, rng *rand.Rand) (fit.Genome, bool) {
	out := make(fit.Genome, len(g))
	for i, p := range g {
		if rng.Float64() < m.Rate {
			out[i] = m.fresh(len(p.Vertices), rng)
		} else {
			out[i] = p.Clone()
		}
	}
	return out, true
}

func (m *Replacement) fresh(vertices int, rng *rand.Rand) fit.Polygon {
	if m.SeedDistance <= 0 {
		return fit.RandomPolygon(rng, m.Canvas, vertices, m.Band)
	}

	seed := m.Canvas.RandomPoint(rng)
	dx := int(m.SeedDistance * float64(m.Canvas.Width))
	dy := int(m.SeedDistance * float64(m.Canvas.Height))
	pts := make([]fit.Point, vertices)
	for j := range pts {
		pts[j] = fit.Point{
			X: sampleAround(rng, seed.X, dx, 0, m.Canvas.Width-1),
			Y: sampleAround(rng, seed.Y, dy, 0, m.Canvas.Height-1),
		}
	}
	return fit.Polygon{Vertices: pts, Colour: fit.RandomColour(rng, m.Band)}
}

// Delta nudges each polygon, with probability Rate: every vertex moves by up
// to VertexExtent of the canvas size and every colour channel by up to
// ColourExtent of 255. Results are clamped; alpha is never touched.
type Delta struct {
	Rate         float64
	VertexExtent float64
	ColourExtent float64
	Canvas       fit.Canvas
}

// NewDelta validates the rate and extents.
func NewDelta(rate, vertexExtent, colourExtent float64, c fit.Canvas) (*Delta, error) {
	if err := evo.CheckProbability("MutationRate", rate); err != nil {
		return nil, err
	}
	if err := evo.CheckProbability("VertexExtent", vertexExtent); err != nil {
		return nil, err
	}
	if err := evo.CheckProbability("ColourExtent", colourExtent); err != nil {
		return nil, err
	}
	return &Delta{Rate: rate, VertexExtent: vertexExtent, ColourExtent: colourExtent, Canvas: c}, nil
}

func (m *Delta) Mutate(g fit.Genome, rng *rand.Rand) (fit.Genome, bool) {
	dx := int(m.VertexExtent * float64(m.Canvas.Width))
	dy := int(m.VertexExtent * float64(m.Canvas.Height))
	dc := int(m.ColourExtent * 255)

	out := make(fit.Genome, len(g))
	for i, p := range g {
		if rng.Float64() >= m.Rate {
			out[i] = p.Clone()
			continue
		}

		pts := make([]fit.Point, len(p.Vertices))
		for j, v := range p.Vertices {
			pts[j] = fit.Point{
				X: sampleAround(rng, v.X, dx, 0, m.Canvas.Width-1),
				Y: sampleAround(rng, v.Y, dy, 0, m.Canvas.Height-1),
			}
		}
		out[i] = fit.Polygon{
			Vertices: pts,
			Colour: color.NRGBA{
				R: uint8(sampleAround(rng, int(p.Colour.R), dc, 0, 255)),
				G: uint8(sampleAround(rng, int(p.Colour.G), dc, 0, 255)),
				B: uint8(sampleAround(rng, int(p.Colour.B), dc, 0, 255)),
				A: p.Colour.A,
			},
		}
	}
	return out, true
}

// sampleAround draws uniformly from [v-d, v+d] intersected with [lo, hi].
func sampleAround(rng *rand.Rand, v, d, lo, hi int) int {
	a, b := max(lo, v-d), min(hi, v+d)
	if a >= b {
		return min(hi, max(lo, v))
	}
	return a + rng.Intn(b-a+1)
}
