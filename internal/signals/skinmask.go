package signals

import (
	"math"

	"github.com/ST2Projects/tierscan/internal/imageio"
)

// rgbToHSV converts an 8-bit RGB triple to OpenCV-style HSV: H in [0,180),
// S and V in [0,255]. The skin-tone ranges (H∈[0,25]∪[170,180], S∈[40,170],
// V∈[80,255]) are expressed on this scale.
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v = max * 255

	if max == 0 {
		s = 0
	} else {
		s = (delta / max) * 255
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
		h /= 2 // fold 0-360 degrees onto the 0-180 OpenCV scale
	}

	return h, s, v
}

// isSkinHSV reports whether an HSV triple falls inside the skin-tone union
// of ranges used by the mosaic and POV detectors.
func isSkinHSV(h, s, v float64) bool {
	hueMatch := (h >= 0 && h <= 25) || (h >= 170 && h <= 180)
	return hueMatch && s >= 40 && s <= 170 && v >= 80 && v <= 255
}

// SkinMask builds a binary skin mask over raster: true where the pixel
// falls in the HSV skin-tone range.
func SkinMask(raster *imageio.Raster) []bool {
	mask := make([]bool, raster.Width*raster.Height)
	for y := 0; y < raster.Height; y++ {
		for x := 0; x < raster.Width; x++ {
			b, g, r := raster.At(x, y)
			h, s, v := rgbToHSV(r, g, b)
			mask[y*raster.Width+x] = isSkinHSV(h, s, v)
		}
	}
	return mask
}

// regionSkinRatio returns the fraction of true pixels in mask within the
// rectangle [x0,y0)-[x1,y1), clamped to raster bounds.
func regionSkinRatio(mask []bool, width, height, x0, y0, x1, y1 int) float64 {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > width {
		x1 = width
	}
	if y1 > height {
		y1 = height
	}
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	count := 0
	total := 0
	for y := y0; y < y1; y++ {
		base := y * width
		for x := x0; x < x1; x++ {
			if mask[base+x] {
				count++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

// grayValue returns the simple-average gray level of a BGR pixel, matching
// the luminance proxy used by the aesthetic scorer and Laplacian variance
// computations.
func grayValue(b, g, r uint8) float64 {
	return (float64(r) + float64(g) + float64(b)) / 3
}

// toGray converts a raster into a flat row-major slice of gray levels,
// used by the Laplacian-variance sharpness estimator and the mosaic
// detector's block statistics.
func toGray(raster *imageio.Raster) []float64 {
	gray := make([]float64, raster.Width*raster.Height)
	for y := 0; y < raster.Height; y++ {
		for x := 0; x < raster.Width; x++ {
			b, g, r := raster.At(x, y)
			gray[y*raster.Width+x] = grayValue(b, g, r)
		}
	}
	return gray
}

// laplacianVariance computes the variance of the discrete Laplacian over a
// gray-level raster, restricted to the rectangle [x0,y0)-[x1,y1). A high
// value indicates strong edges (sharp focus, or in the mosaic detector's
// case, hard block boundaries).
func laplacianVariance(gray []float64, width, height, x0, y0, x1, y1 int) float64 {
	if x0 < 1 {
		x0 = 1
	}
	if y0 < 1 {
		y0 = 1
	}
	if x1 > width-1 {
		x1 = width - 1
	}
	if y1 > height-1 {
		y1 = height - 1
	}
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	var values []float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			center := gray[y*width+x]
			lap := gray[y*width+x-1] + gray[y*width+x+1] +
				gray[(y-1)*width+x] + gray[(y+1)*width+x] - 4*center
			values = append(values, lap)
		}
	}
	return variance(values)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
