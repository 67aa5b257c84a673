package fit

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/vector"
)

// Decoder implements software rendering of polygon genomes.
//
// The output is an *image.RGBA over an opaque background, so its Pix bytes are
// the straight (non-premultiplied) channel values the fitness fast path reads.
type Decoder struct {
	canvas     Canvas
	background color.RGBA
	rasters    sync.Pool
}

// NewDecoder creates a decoder painting on an opaque black canvas.
func NewDecoder(c Canvas) *Decoder {
	return NewDecoderWithBackground(c, color.RGBA{A: 255})
}

// NewDecoderWithBackground creates a decoder with a custom background. The
// background alpha is forced to opaque.
func NewDecoderWithBackground(c Canvas, bg color.RGBA) *Decoder {
	bg.A = 255
	d := &Decoder{canvas: c, background: bg}
	d.rasters.New = func() any {
		return vector.NewRasterizer(c.Width, c.Height)
	}
	return d
}

// Canvas returns the fixed raster extent.
func (d *Decoder) Canvas() Canvas {
	return d.canvas
}

// Decode paints each polygon in genome order, blending by its alpha over
// what is already painted.
func (d *Decoder) Decode(g Genome) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, d.canvas.Width, d.canvas.Height))
	d.fill(img)

	z := d.rasters.Get().(*vector.Rasterizer)
	defer d.rasters.Put(z)

	for _, p := range g {
		if p.Colour.A == 0 || len(p.Vertices) < 3 {
			continue
		}
		d.paintPolygon(z, img, p)
	}
	return img
}

func (d *Decoder) fill(img *image.RGBA) {
	bg := d.background
	pix := img.Pix
	if len(pix) < 4 {
		return
	}
	pix[0], pix[1], pix[2], pix[3] = bg.R, bg.G, bg.B, bg.A
	// Double the filled prefix until the buffer is covered.
	for filled := 4; filled < len(pix); filled *= 2 {
		copy(pix[filled:], pix[:filled])
	}
}

// paintPolygon rasterises the outline with anti-aliased coverage and
// composites the fill with Porter-Duff "over".
func (d *Decoder) paintPolygon(z *vector.Rasterizer, img *image.RGBA, p Polygon) {
	z.Reset(d.canvas.Width, d.canvas.Height)
	z.DrawOp = draw.Over

	first := p.Vertices[0]
	z.MoveTo(pixelCentre(first.X), pixelCentre(first.Y))
	for _, v := range p.Vertices[1:] {
		z.LineTo(pixelCentre(v.X), pixelCentre(v.Y))
	}
	z.ClosePath()

	z.Draw(img, img.Bounds(), image.NewUniform(p.Colour), image.Point{})
}

func pixelCentre(v int) float32 {
	return float32(v) + 0.5
}
