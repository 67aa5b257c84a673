package fit

import "image"

// Evaluator pairs a Renderer with a Fitness: one Evaluate call is one
// decode+score.
type Evaluator struct {
	Renderer Renderer
	Fitness  *Fitness
}

// NewEvaluator builds the default decoder over the fitness canvas.
func NewEvaluator(f *Fitness) *Evaluator {
	return &Evaluator{Renderer: NewDecoder(f.Canvas()), Fitness: f}
}

// Evaluate decodes g and scores the raster.
func (e *Evaluator) Evaluate(g Genome) float64 {
	return e.Fitness.Score(e.Renderer.Decode(g))
}

// Render decodes g without scoring it.
func (e *Evaluator) Render(g Genome) *image.RGBA {
	return e.Renderer.Decode(g)
}
