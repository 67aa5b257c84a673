// Package imageio moves rasters across the filesystem boundary: reference
// images in, rendered genomes out.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/transform"
)

// JPEGQuality is used for .jpg/.jpeg output.
const JPEGQuality = 90

// ErrUnsupportedFormat is returned by Save for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Load reads the reference image at path. See Decode for maxSize.
func Load(path string, maxSize int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := Decode(f, maxSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode reads any registered format (PNG, JPEG, GIF) into an RGBA raster
// anchored at the origin. With maxSize > 0 an image whose longer side
// exceeds maxSize is downscaled to fit, keeping its aspect ratio.
func Decode(r io.Reader, maxSize int) (*image.RGBA, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if src.Bounds().Empty() {
		return nil, errors.New("image has no pixels")
	}

	if w, h, ok := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxSize); ok {
		return transform.Resize(src, w, h, transform.Lanczos), nil
	}
	return toRGBA(src), nil
}

// fitWithin scales (w, h) so the longer side equals limit. ok is false when
// no scaling is needed.
func fitWithin(w, h, limit int) (int, int, bool) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h, false
	}
	if w >= h {
		return limit, max(1, h*limit/w), true
	}
	return max(1, w*limit/h), limit, true
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Save encodes img by the extension of path (.png, .jpg, .jpeg). The file is
// written to a temp name first and renamed, so readers never see a partial
// image.
func Save(path string, img image.Image) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Encode(f, img, format); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename output file: %w", err)
	}
	return nil
}

// Encode writes img as "png" or "jpeg".
func Encode(w io.Writer, img image.Image, format string) error {
	var err error
	switch format {
	case "png":
		err = png.Encode(w, img)
	case "jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png", nil
	case ".jpg", ".jpeg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
