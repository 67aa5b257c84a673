package fit

import (
	"image"
	"math"
)

// maxRGBDistance is the Euclidean distance between black and white.
var maxRGBDistance = math.Sqrt(3 * 255 * 255)

// DiffImage renders a false-colour error map of img against the reference:
// black where the raster matches, brighter red where the per-pixel RGB
// distance is larger.
func (f *Fitness) DiffImage(img *image.RGBA) *image.NRGBA {
	f.mustMatch(img)

	diff := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			i := y*img.Stride + x*4
			j := y*f.width + x
			dr := float64(img.Pix[i+0]) - float64(f.red[j])
			dg := float64(img.Pix[i+1]) - float64(f.green[j])
			db := float64(img.Pix[i+2]) - float64(f.blue[j])

			mag := math.Sqrt(dr*dr+dg*dg+db*db) / maxRGBDistance * 255
			o := diff.PixOffset(x, y)
			diff.Pix[o+0] = uint8(math.Min(255, math.Round(mag)))
			diff.Pix[o+3] = 255
		}
	}
	return diff
}
