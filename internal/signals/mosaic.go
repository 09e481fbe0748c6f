package signals

import "github.com/ST2Projects/tierscan/internal/imageio"

// mosaicBlockSizes are the window sizes swept by the mosaic detector.
var mosaicBlockSizes = []int{8, 12, 16, 20}

// mosaicLaplacianBoost is the additive score bump applied when the
// skin-masked area shows strong edges (large block boundaries). 0.1 is
// above the default 0.005 threshold, so the boost on its own flags an
// image; skinLaplacianVariance only counts pixels whose whole neighborhood
// is skin, which keeps sharp non-skin detail from triggering it.
const mosaicLaplacianBoost = 0.1

// MosaicResult is the outcome of the mosaic/censorship detector.
type MosaicResult struct {
	Score    float64
	Detected bool
}

// DetectMosaic sweeps multiple block sizes over the
// skin mask looking for grids of uniform-color blocks, the signature of
// pixel censorship.
func DetectMosaic(raster *imageio.Raster, mask []bool, threshold float64) MosaicResult {
	gray := toGray(raster)
	best := 0.0

	for _, blockSize := range mosaicBlockSizes {
		ratio := mosaicRatioForBlockSize(raster, mask, gray, blockSize)
		if ratio > best {
			best = ratio
		}
	}

	if skinLaplacianVariance(gray, mask, raster.Width, raster.Height) > 500 {
		best += mosaicLaplacianBoost
	}

	return MosaicResult{Score: best, Detected: best > threshold}
}

// skinLaplacianVariance computes the variance of the discrete Laplacian
// restricted to the skin-masked area: only pixels whose full 4-neighborhood
// is skin contribute, so edges between skin and background never count.
// Smooth real skin keeps this low; hard mosaic block boundaries inside a
// skin region push it high.
func skinLaplacianVariance(gray []float64, mask []bool, width, height int) float64 {
	var values []float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			if !mask[i] || !mask[i-1] || !mask[i+1] || !mask[i-width] || !mask[i+width] {
				continue
			}
			lap := gray[i-1] + gray[i+1] + gray[i-width] + gray[i+width] - 4*gray[i]
			values = append(values, lap)
		}
	}
	return variance(values)
}

func mosaicRatioForBlockSize(raster *imageio.Raster, mask []bool, gray []float64, blockSize int) float64 {
	stride := blockSize / 2
	if stride < 1 {
		stride = 1
	}

	skinWindows := 0
	hits := 0

	for y := 0; y+blockSize <= raster.Height; y += stride {
		for x := 0; x+blockSize <= raster.Width; x += stride {
			skinRatio := regionSkinRatio(mask, raster.Width, raster.Height, x, y, x+blockSize, y+blockSize)
			if skinRatio < 0.3 {
				continue
			}
			skinWindows++

			if isMosaicHit(gray, raster.Width, x, y, blockSize) {
				hits++
			}
		}
	}

	if skinWindows <= 10 {
		return 0
	}
	return float64(hits) / float64(skinWindows)
}

// isMosaicHit splits the window into a 2x2 grid of
// sub-blocks and test the uniform-block-grid signature.
func isMosaicHit(gray []float64, width, x, y, blockSize int) bool {
	half := blockSize / 2
	if half == 0 {
		return false
	}

	tl := subBlockStats(gray, width, x, y, half)
	tr := subBlockStats(gray, width, x+half, y, half)
	bl := subBlockStats(gray, width, x, y+half, half)
	br := subBlockStats(gray, width, x+half, y+half, half)

	variances := []float64{tl.variance, tr.variance, bl.variance, br.variance}
	means := []float64{tl.mean, tr.mean, bl.mean, br.mean}

	maxVar := maxOf(variances)
	meanVar := mean(variances)
	maxMean := maxOf(means)
	minMean := minOf(means)

	rowDelta := absDiff(mean([]float64{tl.mean, tr.mean}), mean([]float64{bl.mean, br.mean}))
	colDelta := absDiff(mean([]float64{tl.mean, bl.mean}), mean([]float64{tr.mean, br.mean}))

	return maxVar < 120 &&
		meanVar < 80 &&
		(maxMean-minMean) > 15 &&
		(rowDelta > 12 || colDelta > 12)
}

type blockStats struct {
	mean     float64
	variance float64
}

func subBlockStats(gray []float64, width, x0, y0, size int) blockStats {
	var values []float64
	for y := y0; y < y0+size; y++ {
		base := y * width
		for x := x0; x < x0+size; x++ {
			values = append(values, gray[base+x])
		}
	}
	return blockStats{mean: mean(values), variance: variance(values)}
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
