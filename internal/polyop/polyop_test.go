package polyop

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/cwbudde/evopolyfit/internal/evo"
	"github.com/cwbudde/evopolyfit/internal/fit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCanvas = fit.Canvas{Width: 40, Height: 30}
	testBand   = fit.AlphaBand{Min: 0.125, Max: 0.25}
)

func randomGenome(t *testing.T, rng *rand.Rand, polygons int) fit.Genome {
	t.Helper()
	init, err := NewRandom(testCanvas, polygons, 5, testBand)
	require.NoError(t, err)
	return init.Initialize(rng)
}

func solidReference(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRandomInitializer(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	g := randomGenome(t, rng, 25)
	require.Len(t, g, 25)
	require.NoError(t, testCanvas.Validate(g))
	for _, p := range g {
		assert.Len(t, p.Vertices, 5)
		assert.GreaterOrEqual(t, p.Colour.A, uint8(32))
		assert.LessOrEqual(t, p.Colour.A, uint8(64))
	}

	_, err := NewRandom(testCanvas, 10, 2, testBand)
	assert.ErrorIs(t, err, evo.ErrInvalidConfig)
	_, err = NewRandom(testCanvas, 0, 3, testBand)
	assert.ErrorIs(t, err, evo.ErrInvalidConfig)
	_, err = NewRandom(testCanvas, 10, 3, fit.AlphaBand{Min: 0.5, Max: 0.1})
	assert.ErrorIs(t, err, evo.ErrInvalidConfig)
}

func TestSeededInitializer(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	seed := randomGenome(t, rng, 8)

	plain := &Seeded{Seed: seed}
	clone := plain.Initialize(rng)
	assert.True(t, clone.Equal(seed))
	clone[0].Vertices[0] = fit.Point{X: 39, Y: 29}
	assert.NotEqual(t, fit.Point{X: 39, Y: 29}, seed[0].Vertices[0], "seeded genomes must not alias the seed")

	delta, err := NewDelta(1, 0.1, 0.1, testCanvas)
	require.NoError(t, err)
	perturbed := (&Seeded{Seed: seed, Perturb: delta}).Initialize(rng)
	assert.Len(t, perturbed, len(seed))
	assert.False(t, perturbed.Equal(seed))
}

// Children must take each gene from one parent and the complementary gene
// from the other.
func TestCrossoverConservation(t *testing.T) {
	sp, err := NewSinglePoint(0.3)
	require.NoError(t, err)
	un, err := NewUniform(0.5)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for _, cross := range []evo.Crossover[fit.Genome]{sp, un} {
		for trial := 0; trial < 100; trial++ {
			n := 1 + rng.Intn(20)
			a := randomGenome(t, rng, n)
			b := randomGenome(t, rng, n)
			aCopy, bCopy := a.Clone(), b.Clone()

			kids := cross.Cross(scored{Genome: a}, scored{Genome: b}, rng)
			require.Len(t, kids, 2)
			require.Len(t, kids[0], n)
			require.Len(t, kids[1], n)

			for i := 0; i < n; i++ {
				fromA := kids[0][i].Equal(a[i]) && kids[1][i].Equal(b[i])
				fromB := kids[0][i].Equal(b[i]) && kids[1][i].Equal(a[i])
				require.True(t, fromA || fromB, "gene %d is not a complementary choice", i)
			}

			// Children own their polygons.
			kids[0][0].Vertices[0] = fit.Point{X: -1, Y: -1}
			assert.True(t, a.Equal(aCopy))
			assert.True(t, b.Equal(bCopy))
		}
	}
}

func TestSinglePointSplit(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := randomGenome(t, rng, 10)
	b := randomGenome(t, rng, 10)

	sp, err := NewSinglePoint(0.25) // round(2.5) = 3
	require.NoError(t, err)
	kids := sp.Cross(scored{Genome: a}, scored{Genome: b}, rng)
	for i := 0; i < 10; i++ {
		if i < 3 {
			assert.True(t, kids[0][i].Equal(a[i]), "index %d", i)
		} else {
			assert.True(t, kids[0][i].Equal(b[i]), "index %d", i)
		}
	}

	for _, bad := range []float64{0, 1, -0.5, 1.5} {
		_, err := NewSinglePoint(bad)
		assert.ErrorIs(t, err, evo.ErrInvalidConfig, "point %v", bad)
	}

	assert.Panics(t, func() {
		sp.Cross(scored{Genome: a}, scored{Genome: b[:5]}, rng)
	})
}

func TestUniformExtremes(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randomGenome(t, rng, 6)
	b := randomGenome(t, rng, 6)

	always, err := NewUniform(1)
	require.NoError(t, err)
	kids := always.Cross(scored{Genome: a}, scored{Genome: b}, rng)
	assert.True(t, kids[0].Equal(a))
	assert.True(t, kids[1].Equal(b))

	never, err := NewUniform(0)
	require.NoError(t, err)
	kids = never.Cross(scored{Genome: a}, scored{Genome: b}, rng)
	assert.True(t, kids[0].Equal(b))
	assert.True(t, kids[1].Equal(a))
}

func TestReplacementMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	g := randomGenome(t, rng, 30)
	orig := g.Clone()

	none, err := NewReplacement(0, testBand, testCanvas, 0)
	require.NoError(t, err)
	out, ok := none.Mutate(g, rng)
	require.True(t, ok)
	assert.True(t, out.Equal(g))

	all, err := NewReplacement(1, testBand, testCanvas, 0)
	require.NoError(t, err)
	out, ok = all.Mutate(g, rng)
	require.True(t, ok)
	require.NoError(t, testCanvas.Validate(out))
	assert.False(t, out.Equal(g))
	assert.True(t, g.Equal(orig), "input must not change")
	for i := range out {
		assert.Len(t, out[i].Vertices, len(g[i].Vertices))
	}
}

func TestReplacementSeedDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := randomGenome(t, rng, 50)

	m, err := NewReplacement(1, testBand, testCanvas, 0.05)
	require.NoError(t, err)
	out, _ := m.Mutate(g, rng)

	// 5% of 40x30 gives +-2 x +-1 around the seed.
	for _, p := range out {
		minX, maxX, minY, maxY := p.Vertices[0].X, p.Vertices[0].X, p.Vertices[0].Y, p.Vertices[0].Y
		for _, v := range p.Vertices {
			minX, maxX = min(minX, v.X), max(maxX, v.X)
			minY, maxY = min(minY, v.Y), max(maxY, v.Y)
		}
		assert.LessOrEqual(t, maxX-minX, 4)
		assert.LessOrEqual(t, maxY-minY, 2)
	}

	_, err = NewReplacement(1.1, testBand, testCanvas, 0)
	assert.ErrorIs(t, err, evo.ErrInvalidConfig)
}

func TestDeltaMutation(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	g := randomGenome(t, rng, 40)
	orig := g.Clone()

	m, err := NewDelta(1, 0.1, 0.1, testCanvas)
	require.NoError(t, err)
	out, ok := m.Mutate(g, rng)
	require.True(t, ok)
	require.NoError(t, testCanvas.Validate(out))
	assert.True(t, g.Equal(orig), "input must not change")

	for i := range out {
		assert.Equal(t, g[i].Colour.A, out[i].Colour.A, "alpha is untouched")
		for j, v := range out[i].Vertices {
			assert.LessOrEqual(t, abs(v.X-g[i].Vertices[j].X), 4)
			assert.LessOrEqual(t, abs(v.Y-g[i].Vertices[j].Y), 3)
		}
		assert.LessOrEqual(t, abs(int(out[i].Colour.R)-int(g[i].Colour.R)), 25)
	}

	still, err := NewDelta(0, 0.1, 0.1, testCanvas)
	require.NoError(t, err)
	out, _ = still.Mutate(g, rng)
	assert.True(t, out.Equal(g))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestLocalSearchTargetsWorstSegment(t *testing.T) {
	// White reference; the genome paints an opaque black square in the
	// top-left corner, which is the only error on the canvas.
	ref := solidReference(20, 20, color.NRGBA{255, 255, 255, 255})
	f, err := fit.NewFitness(ref, 2)
	require.NoError(t, err)
	decoder := fit.NewDecoderWithBackground(f.Canvas(), color.RGBA{255, 255, 255, 255})
	eval := evo.NewCounter[fit.Genome](&fit.Evaluator{Renderer: decoder, Fitness: f})

	g := fit.Genome{
		{Vertices: []fit.Point{{X: 0, Y: 0}, {X: 8, Y: 0}, {X: 8, Y: 8}, {X: 0, Y: 8}}, Colour: color.NRGBA{A: 255}},
	}

	ls, err := NewLocalSearch(1, testBand, 4, f, decoder, eval)
	require.NoError(t, err)
	out, ok := ls.Mutate(g, rand.New(rand.NewSource(9)))
	require.True(t, ok)
	require.Len(t, out, 1)

	p := out[0]
	assert.Len(t, p.Vertices, 4)
	for _, v := range p.Vertices {
		assert.Less(t, v.X, 10, "vertex should lie in the worst (top-left) segment")
		assert.Less(t, v.Y, 10)
	}
	assert.Equal(t, uint8(255), p.Colour.R, "colour comes from the reference majority")
	assert.GreaterOrEqual(t, p.Colour.A, uint8(32))
	assert.LessOrEqual(t, p.Colour.A, uint8(64))
	assert.EqualValues(t, DefaultLocalSearchTournament, eval.Count(), "removal trials go through the shared counter")

	assert.Equal(t, color.NRGBA{A: 255}, g[0].Colour, "input must not change")
}

func TestLocalSearchPicksMostHarmfulPolygon(t *testing.T) {
	ref := solidReference(20, 20, color.NRGBA{A: 255})
	f, err := fit.NewFitness(ref, 4)
	require.NoError(t, err)
	decoder := fit.NewDecoder(f.Canvas())
	eval := &fit.Evaluator{Renderer: decoder, Fitness: f}

	harmless := fit.Polygon{Vertices: []fit.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 3}}, Colour: color.NRGBA{A: 0}}
	harmful := fit.Polygon{Vertices: []fit.Point{{X: 0, Y: 0}, {X: 19, Y: 0}, {X: 19, Y: 19}, {X: 0, Y: 19}}, Colour: color.NRGBA{R: 255, G: 255, B: 255, A: 200}}
	g := fit.Genome{harmless, harmful, harmless.Clone()}

	ls, err := NewLocalSearch(1, testBand, 3, f, decoder, eval)
	require.NoError(t, err)
	ls.TournamentSize = 50 // every index is sampled with near certainty

	out, _ := ls.Mutate(g, rand.New(rand.NewSource(10)))
	assert.True(t, out[0].Equal(harmless))
	assert.True(t, out[2].Equal(harmless))
	assert.False(t, out[1].Equal(harmful), "the white square should be replaced")
}

func TestLocalSearchRateZeroCopies(t *testing.T) {
	ref := solidReference(10, 10, color.NRGBA{A: 255})
	f, err := fit.NewFitness(ref, 10)
	require.NoError(t, err)
	eval := fit.NewEvaluator(f)

	ls, err := NewLocalSearch(0, testBand, 3, f, eval.Renderer, eval)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	g := fit.Genome{fit.RandomPolygon(rng, f.Canvas(), 3, testBand)}
	out, ok := ls.Mutate(g, rng)
	require.True(t, ok)
	assert.True(t, out.Equal(g))
	out[0].Vertices[0] = fit.Point{X: 9, Y: 9}
	assert.NotEqual(t, fit.Point{X: 9, Y: 9}, g[0].Vertices[0])
}

func TestColourPolishNeverWorsens(t *testing.T) {
	ref := solidReference(12, 12, color.NRGBA{200, 40, 40, 255})
	f, err := fit.NewFitness(ref, 4)
	require.NoError(t, err)
	eval := fit.NewEvaluator(f)

	g := fit.Genome{{
		Vertices: []fit.Point{{X: 0, Y: 0}, {X: 11, Y: 0}, {X: 11, Y: 11}, {X: 0, Y: 11}},
		Colour:   color.NRGBA{0, 0, 255, 40},
	}}
	before := eval.Evaluate(g)

	polish, err := NewColourPolish(1, fit.AlphaBand{Min: 0.1, Max: 1}, 15, 20, eval)
	require.NoError(t, err)
	out, ok := polish.Mutate(g, rand.New(rand.NewSource(12)))
	require.True(t, ok)

	assert.GreaterOrEqual(t, eval.Evaluate(out), before)
	assert.Equal(t, g[0].Vertices, out[0].Vertices, "vertices stay fixed")
	assert.Equal(t, color.NRGBA{0, 0, 255, 40}, g[0].Colour, "input must not change")
}
