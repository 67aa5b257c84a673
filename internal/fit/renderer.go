package fit

import "image"

// Renderer decodes a genome into a raster of fixed extent.
type Renderer interface {
	// Decode paints the genome back to front onto a fresh opaque canvas.
	Decode(g Genome) *image.RGBA

	// Canvas returns the fixed raster extent.
	Canvas() Canvas
}
