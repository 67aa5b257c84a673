package fit

import (
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"slices"
)

// Point is a polygon vertex in integer pixel coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Polygon is a translucent filled outline. Vertices keep their order; the
// colour alpha blends the fill over whatever was painted before it.
type Polygon struct {
	Vertices []Point     `json:"vertices"`
	Colour   color.NRGBA `json:"colour"`
}

// Genome is an ordered list of polygons painted back to front.
type Genome []Polygon

// NewPolygon validates the vertex count and copies the vertices.
func NewPolygon(vertices []Point, colour color.NRGBA) (Polygon, error) {
	if len(vertices) < 3 {
		return Polygon{}, fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidGeometry, len(vertices))
	}
	return Polygon{Vertices: slices.Clone(vertices), Colour: colour}, nil
}

// Clone returns a deep copy that shares no memory with p.
func (p Polygon) Clone() Polygon {
	return Polygon{Vertices: slices.Clone(p.Vertices), Colour: p.Colour}
}

// Equal reports structural equality (vertices and colour).
func (p Polygon) Equal(other Polygon) bool {
	return p.Colour == other.Colour && slices.Equal(p.Vertices, other.Vertices)
}

// Clone deep-copies every polygon.
func (g Genome) Clone() Genome {
	if g == nil {
		return nil
	}
	out := make(Genome, len(g))
	for i, p := range g {
		out[i] = p.Clone()
	}
	return out
}

// Equal reports structural equality polygon by polygon.
func (g Genome) Equal(other Genome) bool {
	return slices.EqualFunc(g, other, Polygon.Equal)
}

// Without returns a deep copy of g with the polygon at index removed.
func (g Genome) Without(index int) Genome {
	out := make(Genome, 0, len(g)-1)
	for i, p := range g {
		if i != index {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Canvas holds the fixed raster extent shared by the decoder and the operators.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewCanvas validates the extent.
func NewCanvas(width, height int) (Canvas, error) {
	if width <= 0 || height <= 0 {
		return Canvas{}, fmt.Errorf("%w: canvas must be positive, got %dx%d", ErrInvalidGeometry, width, height)
	}
	return Canvas{Width: width, Height: height}, nil
}

// Contains reports whether pt is a representable pixel coordinate.
func (c Canvas) Contains(pt Point) bool {
	return pt.X >= 0 && pt.X < c.Width && pt.Y >= 0 && pt.Y < c.Height
}

// Clamp moves pt onto the nearest representable pixel.
func (c Canvas) Clamp(pt Point) Point {
	return Point{
		X: clampInt(pt.X, 0, c.Width-1),
		Y: clampInt(pt.Y, 0, c.Height-1),
	}
}

// RandomPoint draws a uniform pixel coordinate.
func (c Canvas) RandomPoint(rng *rand.Rand) Point {
	return Point{X: rng.Intn(c.Width), Y: rng.Intn(c.Height)}
}

// Validate checks a genome against the canvas. Genomes are checked when they
// are built; the decoder assumes well-formed input.
func (c Canvas) Validate(g Genome) error {
	for i, p := range g {
		if len(p.Vertices) < 3 {
			return fmt.Errorf("%w: polygon %d has %d vertices", ErrInvalidGeometry, i, len(p.Vertices))
		}
		for j, v := range p.Vertices {
			if !c.Contains(v) {
				return fmt.Errorf("%w: polygon %d vertex %d (%d,%d) outside %dx%d canvas",
					ErrInvalidGeometry, i, j, v.X, v.Y, c.Width, c.Height)
			}
		}
	}
	return nil
}

// AlphaBand constrains polygon opacity to [Min, Max], both in [0,1].
type AlphaBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate rejects bands outside [0,1] or with Min > Max.
func (b AlphaBand) Validate() error {
	if b.Min < 0 || b.Max > 1 || b.Min > b.Max {
		return fmt.Errorf("%w: alpha band [%g, %g] must satisfy 0 <= min <= max <= 1", ErrInvalidGeometry, b.Min, b.Max)
	}
	return nil
}

// Sample draws an 8-bit alpha uniformly from the band.
func (b AlphaBand) Sample(rng *rand.Rand) uint8 {
	a := b.Min + rng.Float64()*(b.Max-b.Min)
	return uint8(math.Round(a * 255))
}

// RandomColour draws uniform RGB channels and a band-limited alpha.
func RandomColour(rng *rand.Rand, band AlphaBand) color.NRGBA {
	return color.NRGBA{
		R: uint8(rng.Intn(256)),
		G: uint8(rng.Intn(256)),
		B: uint8(rng.Intn(256)),
		A: band.Sample(rng),
	}
}

// RandomPolygon builds a polygon with uniform vertices and a random colour.
func RandomPolygon(rng *rand.Rand, c Canvas, vertices int, band AlphaBand) Polygon {
	pts := make([]Point, vertices)
	for i := range pts {
		pts[i] = c.RandomPoint(rng)
	}
	return Polygon{Vertices: pts, Colour: RandomColour(rng, band)}
}

func clampInt(val, lo, hi int) int {
	return max(lo, min(hi, val))
}
