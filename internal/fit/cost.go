package fit

import (
	"fmt"
	"image"
	"image/color"
)

// DefaultGridFactor splits the canvas into a 10x10 grid for worst-segment search.
const DefaultGridFactor = 10

// Fitness scores decoded rasters against a reference image. Scores are the
// negated sum of squared RGB error, so higher is better and a perfect match
// scores 0.
//
// The reference is decomposed once into planar channel arrays. A Fitness is
// read-only after construction and safe for concurrent use.
type Fitness struct {
	width, height int
	gridFactor    int

	ref   image.Image
	alpha []uint8
	red   []uint8
	green []uint8
	blue  []uint8
}

// NewFitness caches the reference channels. gridFactor controls the
// worst-segment grid; values < 1 select DefaultGridFactor.
func NewFitness(ref image.Image, gridFactor int) (*Fitness, error) {
	b := ref.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty reference image", ErrInvalidGeometry)
	}
	if gridFactor < 1 {
		gridFactor = DefaultGridFactor
	}

	w, h := b.Dx(), b.Dy()
	f := &Fitness{
		width:      w,
		height:     h,
		gridFactor: gridFactor,
		ref:        ref,
		alpha:      make([]uint8, w*h),
		red:        make([]uint8, w*h),
		green:      make([]uint8, w*h),
		blue:       make([]uint8, w*h),
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(ref.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			j := y*w + x
			f.alpha[j] = c.A
			f.red[j] = c.R
			f.green[j] = c.G
			f.blue[j] = c.B
		}
	}
	return f, nil
}

// Maximize reports that higher scores are better.
func (f *Fitness) Maximize() bool {
	return true
}

// Canvas returns the reference extent, which every scored raster must match.
func (f *Fitness) Canvas() Canvas {
	return Canvas{Width: f.width, Height: f.height}
}

// GridFactor returns the worst-segment grid resolution.
func (f *Fitness) GridFactor() int {
	return f.gridFactor
}

// Score is the hot-path scorer. It reads raw Pix bytes, so img must be an
// opaque *image.RGBA anchored at the origin with the reference extent. Any
// other layout is a programming error and panics; use ScoreSlow for arbitrary
// images.
func (f *Fitness) Score(img *image.RGBA) float64 {
	f.mustMatch(img)
	return -float64(fastSSD(img.Pix, img.Stride, f.red, f.green, f.blue, f.width, f.height))
}

// ScoreSlow recomputes the score pixel by pixel from the reference image
// through the color.Color interface. It accepts any image of the reference
// extent and exists to validate Score.
func (f *Fitness) ScoreSlow(img image.Image) float64 {
	b := img.Bounds()
	if b.Dx() != f.width || b.Dy() != f.height {
		panic(fmt.Sprintf("fit: ScoreSlow: raster %dx%d does not match reference %dx%d",
			b.Dx(), b.Dy(), f.width, f.height))
	}
	rb := f.ref.Bounds()

	var sum float64
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			r := color.NRGBAModel.Convert(f.ref.At(rb.Min.X+x, rb.Min.Y+y)).(color.NRGBA)
			dr := float64(c.R) - float64(r.R)
			dg := float64(c.G) - float64(r.G)
			db := float64(c.B) - float64(r.B)
			sum += dr*dr + dg*dg + db*db
		}
	}
	return -sum
}

// Reference returns a copy of the cached reference as a straight-alpha image.
func (f *Fitness) Reference() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	for j := range f.red {
		i := j * 4
		img.Pix[i+0] = f.red[j]
		img.Pix[i+1] = f.green[j]
		img.Pix[i+2] = f.blue[j]
		img.Pix[i+3] = f.alpha[j]
	}
	return img
}

func (f *Fitness) mustMatch(img *image.RGBA) {
	b := img.Bounds()
	if b.Min != (image.Point{}) || b.Dx() != f.width || b.Dy() != f.height {
		panic(fmt.Sprintf("fit: raster bounds %v do not match reference %dx%d", b, f.width, f.height))
	}
}
