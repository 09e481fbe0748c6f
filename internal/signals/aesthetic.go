package signals

import "github.com/ST2Projects/tierscan/internal/imageio"

// AestheticScore is a sharpness + brightness heuristic.
func AestheticScore(raster *imageio.Raster) float64 {
	gray := toGray(raster)

	lapVar := laplacianVariance(gray, raster.Width, raster.Height, 0, 0, raster.Width, raster.Height)
	sharpness := clamp01(lapVar / 500)

	meanGray := mean(gray)
	brightness := 1 - 2*abs(meanGray/255-0.5)

	return clamp01(0.6*sharpness + 0.4*brightness)
}
