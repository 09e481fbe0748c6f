// Package signals implements the independent, pure-over-one-image signal
// extractors described in the classification pipeline's component design:
// general and region NSFW scoring, face measurement, mosaic/censorship
// detection, POV-composition detection, and an aesthetic scorer.
package signals

import (
	"context"
	"image"

	"github.com/ST2Projects/tierscan/internal/imageio"
)

// Box is an axis-aligned pixel rectangle.
type Box struct {
	X1, Y1, X2, Y2 int
}

// Width returns the box's width in pixels.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the box's height in pixels.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Area returns the box's area in pixels.
func (b Box) Area() int { return b.Width() * b.Height() }

// Detection is one region NSFW detector hit: a labeled, confidence-scored
// bounding box.
type Detection struct {
	Label      Label
	Confidence float64
	Box        Box
}

// FaceBox is one face-detector hit.
type FaceBox struct {
	Box Box
}

// FalconsaiScorer is the general, whole-image NSFW classifier. Named after
// the reference model this pairs with (Falconsai/nsfw_image_detection);
// implementations are free to use any model whose label set contains at
// least one of {nsfw, porn, sexy, hentai}.
type FalconsaiScorer interface {
	Score(ctx context.Context, img image.Image) (float64, error)
}

// NudeNetDetector is the region NSFW detector, named after the reference
// model family (NudeNet) this pairs with.
type NudeNetDetector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// FaceDetector finds faces in an image. It operates on the BGR raster, not
// image.Image, because the heuristic implementation shares its sliding
// window scan with the mosaic detector's pixel-level math.
type FaceDetector interface {
	Detect(ctx context.Context, raster *imageio.Raster) ([]FaceBox, error)
}
