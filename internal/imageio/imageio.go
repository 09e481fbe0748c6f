// Package imageio loads images from the local filesystem into the two
// representations the rest of the pipeline needs: a decoded image.Image for
// model-facing code, and a flat BGR raster for the hand-rolled pixel-level
// heuristics (skin masking, face search, mosaic/POV detection).
package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// LoadError reports that a file's bytes could not be decoded as a
// supported image. Callers distinguish it from other I/O errors with
// errors.As.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var supportedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsSupported reports whether path's extension is one the loader decodes.
func IsSupported(path string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(path))]
}

// Raster is a flat, row-major BGR pixel buffer: 3 bytes per pixel, no
// padding. It backs the skin-mask and variance math in internal/signals,
// which is cheaper over a flat byte slice than through image.Image's
// interface-dispatched At().
type Raster struct {
	Width  int
	Height int
	Pix    []uint8 // len == Width*Height*3, BGR order
}

// At returns the BGR triple at (x, y).
func (r *Raster) At(x, y int) (b, g, rr uint8) {
	i := (y*r.Width + x) * 3
	return r.Pix[i], r.Pix[i+1], r.Pix[i+2]
}

// Load reads path and returns both representations, or a *LoadError if the
// bytes do not decode as a supported image.
func Load(path string) (image.Image, *Raster, error) {
	if !IsSupported(path) {
		return nil, nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported extension %q", filepath.Ext(path))}
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Path: path, Err: err}
	}

	return img, ToBGRRaster(img), nil
}

// ToBGRRaster converts a decoded image.Image into a flat BGR raster.
func ToBGRRaster(img image.Image) *Raster {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]uint8, w*h*3)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba := img.At(x, y)
			r, g, b, _ := rgba.RGBA()
			pix[i] = uint8(b >> 8)
			pix[i+1] = uint8(g >> 8)
			pix[i+2] = uint8(r >> 8)
			i += 3
		}
	}

	return &Raster{Width: w, Height: h, Pix: pix}
}
