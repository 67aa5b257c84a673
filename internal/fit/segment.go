package fit

import (
	"image"
	"image/color"
)

// Segment is a rectangular canvas region in pixels. Row and Col are the
// top-left corner (y and x).
type Segment struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Rect converts the segment to an image rectangle.
func (s Segment) Rect() image.Rectangle {
	return image.Rect(s.Col, s.Row, s.Col+s.Width, s.Row+s.Height)
}

// Centre returns the pixel at the middle of the segment.
func (s Segment) Centre() Point {
	return Point{X: s.Col + s.Width/2, Y: s.Row + s.Height/2}
}

// cellSize is ceil(extent/factor), never below one pixel.
func cellSize(extent, factor int) int {
	return max(1, (extent+factor-1)/factor)
}

// WorstSegment returns the grid cell with the highest accumulated squared
// error. Cells are ceil(extent/factor) pixels and tile from the origin; the
// last row and column are clipped to the canvas and may be narrower. Ties go
// to the first cell in row-major order.
func (f *Fitness) WorstSegment(img *image.RGBA) Segment {
	f.mustMatch(img)

	cellW := cellSize(f.width, f.gridFactor)
	cellH := cellSize(f.height, f.gridFactor)
	cols := (f.width + cellW - 1) / cellW
	rows := (f.height + cellH - 1) / cellH

	cells := make([]int64, rows*cols)
	for y := 0; y < f.height; y++ {
		rowOff := (y / cellH) * cols
		pixOff := y * img.Stride
		for x := 0; x < f.width; x++ {
			i := pixOff + x*4
			j := y*f.width + x
			dr := int64(img.Pix[i+0]) - int64(f.red[j])
			dg := int64(img.Pix[i+1]) - int64(f.green[j])
			db := int64(img.Pix[i+2]) - int64(f.blue[j])
			cells[rowOff+x/cellW] += dr*dr + dg*dg + db*db
		}
	}

	worst := 0
	for k, e := range cells {
		if e > cells[worst] {
			worst = k
		}
	}

	r, c := worst/cols, worst%cols
	top, left := r*cellH, c*cellW
	return Segment{
		Row:    top,
		Col:    left,
		Height: min(cellH, f.height-top),
		Width:  min(cellW, f.width-left),
	}
}

// MajorityColour returns the most frequent reference colour inside the circle
// centred on the segment with radius min(width, height)/2. Ties go to the
// colour met first in row-major scan order. The result is opaque.
func (f *Fitness) MajorityColour(s Segment) color.NRGBA {
	centre := f.Canvas().Clamp(s.Centre())
	radius := max(0, min(s.Width, s.Height)/2)

	x0, x1 := max(0, centre.X-radius), min(f.width-1, centre.X+radius)
	y0, y1 := max(0, centre.Y-radius), min(f.height-1, centre.Y+radius)

	counts := make(map[uint32]int)
	var order []uint32
	for y := y0; y <= y1; y++ {
		dy := y - centre.Y
		for x := x0; x <= x1; x++ {
			dx := x - centre.X
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			j := y*f.width + x
			key := uint32(f.red[j])<<16 | uint32(f.green[j])<<8 | uint32(f.blue[j])
			if counts[key] == 0 {
				order = append(order, key)
			}
			counts[key]++
		}
	}

	best := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[best] {
			best = key
		}
	}
	return color.NRGBA{R: uint8(best >> 16), G: uint8(best >> 8), B: uint8(best), A: 255}
}
