// Package blur implements the smart-blur remediation pipeline:
// detect the NSFW regions of an image, redact them with a stacked
// blur/pixelate/desaturate/overlay pass and save the result as a JPEG, so an
// image the tier classifier flagged nsfw can be promoted back into the safe
// pool for gallery use.
package blur

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"github.com/ST2Projects/tierscan/internal/config"
	"github.com/ST2Projects/tierscan/internal/signals"
)

// state is the engine's per-batch lifecycle: Init -> LoadDetector
// -> ProcessImage* -> Idle.
type state int

const (
	stateInit state = iota
	stateReady
	stateIdle
)

// Engine applies the redaction stack to detected NSFW regions. It owns no
// model weights of its own; region detection and the post-redaction
// fixpoint check are delegated to the same signals.NudeNetDetector and
// signals.FalconsaiScorer the classification pipeline already uses.
type Engine struct {
	cfg        config.BlurConfig
	thresholds config.ThresholdConfig
	detector   signals.NudeNetDetector
	scorer     signals.FalconsaiScorer
	state      state
}

// NewEngine constructs a blur engine. With a nil detector the engine never
// leaves Init and ProcessImage blurs nothing; with a nil scorer ProcessImage
// skips the fixpoint check and keeps the first redaction pass.
func NewEngine(cfg config.BlurConfig, thresholds config.ThresholdConfig, detector signals.NudeNetDetector, scorer signals.FalconsaiScorer) *Engine {
	return &Engine{cfg: cfg, thresholds: thresholds, detector: detector, scorer: scorer, state: stateInit}
}

// loadDetector transitions Init -> Ready. Idempotent: once ready, it is a
// no-op. Failure leaves the engine in Init.
func (e *Engine) loadDetector() error {
	if e.state == stateReady {
		return nil
	}
	if e.detector == nil {
		return fmt.Errorf("blur engine has no region detector configured")
	}
	e.state = stateReady
	return nil
}

// ProcessImage detects NSFW regions in img, redacts them, and saves the
// result as a JPEG named "<stem>_blurred.jpg" under cfg.OutputDir. Returns
// was_blurred=false and an empty path when zero NSFW regions were detected,
// when the detector failed to load, or when region detection returned an
// error.
func (e *Engine) ProcessImage(ctx context.Context, sourcePath string, img image.Image) (wasBlurred bool, outputPath string, err error) {
	if err := e.loadDetector(); err != nil {
		log.Warnf("blur engine not ready, skipping %s: %v", sourcePath, err)
		return false, "", nil
	}

	detections, err := e.detector.Detect(ctx, img)
	if err != nil {
		log.Warnf("region detection failed during blur pass for %s: %v", sourcePath, err)
		return false, "", nil
	}

	nsfwBoxes := nsfwBoxesOf(detections)
	if len(nsfwBoxes) == 0 {
		return false, "", nil
	}

	redacted := e.redactAll(img, nsfwBoxes, e.cfg.BlurPasses)
	redacted = e.ensureFixpoint(ctx, redacted, nsfwBoxes)

	if err := os.MkdirAll(e.cfg.OutputDir, 0755); err != nil {
		return false, "", fmt.Errorf("failed to create blur output directory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	outputPath = filepath.Join(e.cfg.OutputDir, stem+"_blurred.jpg")

	f, err := os.Create(outputPath)
	if err != nil {
		return false, "", fmt.Errorf("failed to create blurred output file: %w", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, redacted, &jpeg.Options{Quality: 92}); err != nil {
		return false, "", fmt.Errorf("failed to encode blurred output: %w", err)
	}

	e.state = stateIdle
	return true, outputPath, nil
}

// ensureFixpoint re-scores the redacted image with the general scorer and,
// if that score has not dropped below the configured NSFW threshold, applies
// additional redaction passes (up to MaxAdditionalPasses) rather than silently
// accepting an insufficient result.
func (e *Engine) ensureFixpoint(ctx context.Context, redacted image.Image, boxes []signals.Box) image.Image {
	if e.scorer == nil {
		return redacted
	}

	extra := 0
	for {
		score, err := e.scorer.Score(ctx, redacted)
		if err != nil {
			log.Warnf("blur fixpoint check failed, keeping current redaction: %v", err)
			return redacted
		}
		if score < e.thresholds.NSFWThreshold || extra >= e.cfg.MaxAdditionalPasses {
			return redacted
		}
		extra++
		log.Debugf("blur pass insufficient (score %.4f >= threshold %.4f), applying additional pass %d/%d", score, e.thresholds.NSFWThreshold, extra, e.cfg.MaxAdditionalPasses)
		redacted = e.redactAll(redacted, boxes, 1)
	}
}

func nsfwBoxesOf(detections []signals.Detection) []signals.Box {
	var boxes []signals.Box
	for _, d := range detections {
		if d.Label.IsNSFW(false) {
			boxes = append(boxes, d.Box)
		}
	}
	return boxes
}

// redactAll expands and redacts every box in boxes over img, applying
// passes Gaussian blur repetitions to each box before the rest of the stack.
func (e *Engine) redactAll(img image.Image, boxes []signals.Box, passes int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := imaging.Clone(img)

	for _, box := range boxes {
		expanded := expandBox(box, w, h, e.cfg.ExpandPercent)
		region := image.Rect(expanded.X1, expanded.Y1, expanded.X2, expanded.Y2)
		sub := imaging.Crop(out, region)
		redacted := redactRegion(sub, e.cfg.BlurRadius, passes)
		out = imaging.Paste(out, redacted, image.Pt(expanded.X1, expanded.Y1))
	}

	return out
}

// expandBox grows box by percent of its width/height on each side, clamped
// to image bounds. percent is used as given; neither this function nor
// config validation restricts it to a range.
func expandBox(box signals.Box, imageWidth, imageHeight int, percent float64) signals.Box {
	dx := int(float64(box.Width()) * percent)
	dy := int(float64(box.Height()) * percent)

	x1 := box.X1 - dx
	y1 := box.Y1 - dy
	x2 := box.X2 + dx
	y2 := box.Y2 + dy

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > imageWidth {
		x2 = imageWidth
	}
	if y2 > imageHeight {
		y2 = imageHeight
	}

	return signals.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// redactRegion applies the stacked redaction to a cropped
// sub-image: repeated Gaussian blur, pixelation, desaturation, then a
// neutral gray overlay.
func redactRegion(sub image.Image, blurRadius, passes int) image.Image {
	bounds := sub.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return sub
	}

	result := sub
	sigma := float64(2*blurRadius+1) / 6.0
	for i := 0; i < passes; i++ {
		result = imaging.Blur(result, sigma)
	}

	result = pixelate(result, w, h)
	result = desaturate(result, 0.2)

	gray := imaging.New(w, h, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	result = imaging.Overlay(result, gray, image.Pt(0, 0), 0.55)

	return result
}

// pixelate downsamples to a coarse grid and upscales with nearest-neighbor,
// pixel_size ~= max(w,h)/6.
func pixelate(img image.Image, w, h int) image.Image {
	maxDim := w
	if h > maxDim {
		maxDim = h
	}
	pixelSize := maxDim / 6
	if pixelSize < 1 {
		pixelSize = 1
	}

	smallW := maxInt(1, w/pixelSize)
	smallH := maxInt(1, h/pixelSize)

	small := imaging.Resize(img, smallW, smallH, imaging.NearestNeighbor)
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}

// desaturate multiplies HSV saturation by factor across every pixel. No
// library in the retrieval pack offers HSV color manipulation (see
// DESIGN.md), so this is a direct round-trip over image/color.
func desaturate(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	nrgba := imaging.Clone(img)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := nrgba.At(x, y).RGBA()
			h, s, v := rgbToHSV(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			s *= factor
			nr, ng, nb := hsvToRGB(h, s, v)
			nrgba.Set(x, y, color.NRGBA{R: nr, G: ng, B: nb, A: uint8(a >> 8)})
		}
	}

	return nrgba
}

func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v = max
	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}

	if delta == 0 {
		h = 0
	} else {
		switch max {
		case rf:
			h = 60 * math.Mod((gf-bf)/delta, 6)
		case gf:
			h = 60 * ((bf-rf)/delta + 2)
		default:
			h = 60 * ((rf-gf)/delta + 4)
		}
		if h < 0 {
			h += 360
		}
	}

	return h, s, v
}

func hsvToRGB(h, s, v float64) (r, g, b uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return to8(rf + m), to8(gf + m), to8(bf + m)
}

func to8(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
