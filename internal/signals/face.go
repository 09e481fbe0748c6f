package signals

import (
	"context"

	"github.com/ST2Projects/tierscan/internal/imageio"
)

// faceScaleFactor and faceMinNeighbors mirror the classic Haar-cascade
// frontal-face detector parameters each scan pass grows
// the window by this factor, and a cluster of overlapping candidate
// windows must reach this size before it counts as a detection.
const (
	faceScaleFactor     = 1.1
	faceMinNeighbors    = 5
	faceMinSize         = 50
	faceCandidateStride = 4 // window size / faceCandidateStride
)

// HeuristicFaceDetector finds face-like regions without any cascade
// classifier library (none exists anywhere in the example corpus). It
// reuses the mosaic detector's windowed-scan idiom: faces are approximated
// as skin-toned regions with enough internal edge texture to be a face
// rather than bare skin, confirmed by requiring a cluster of overlapping
// candidate windows at neighboring scales (the min-neighbors parameter).
type HeuristicFaceDetector struct{}

// NewHeuristicFaceDetector constructs the default face detector.
func NewHeuristicFaceDetector() *HeuristicFaceDetector {
	return &HeuristicFaceDetector{}
}

// Detect implements FaceDetector.
func (d *HeuristicFaceDetector) Detect(_ context.Context, raster *imageio.Raster) ([]FaceBox, error) {
	mask := SkinMask(raster)
	gray := toGray(raster)

	var candidates []Box
	size := faceMinSize
	maxSize := raster.Width
	if raster.Height < maxSize {
		maxSize = raster.Height
	}

	for size <= maxSize {
		stride := size / faceCandidateStride
		if stride < 1 {
			stride = 1
		}

		for y := 0; y+size <= raster.Height; y += stride {
			for x := 0; x+size <= raster.Width; x += stride {
				if isFaceCandidate(mask, gray, raster.Width, raster.Height, x, y, size) {
					candidates = append(candidates, Box{X1: x, Y1: y, X2: x + size, Y2: y + size})
				}
			}
		}

		next := int(float64(size) * faceScaleFactor)
		if next <= size {
			next = size + 1
		}
		size = next
	}

	return clusterFaceCandidates(candidates, faceMinNeighbors), nil
}

func isFaceCandidate(mask []bool, gray []float64, width, height, x, y, size int) bool {
	skinRatio := regionSkinRatio(mask, width, height, x, y, x+size, y+size)
	if skinRatio < 0.25 || skinRatio > 0.85 {
		return false
	}

	v := laplacianVariance(gray, width, height, x, y, x+size, y+size)
	return v > 40 && v < 2000
}

// clusterFaceCandidates merges overlapping candidate windows into
// confirmed detections, requiring at least minNeighbors overlapping
// candidates per cluster (the min-neighbors heuristic).
func clusterFaceCandidates(candidates []Box, minNeighbors int) []FaceBox {
	used := make([]bool, len(candidates))
	var faces []FaceBox

	for i, c := range candidates {
		if used[i] {
			continue
		}

		cluster := []Box{c}
		used[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			if iou(c, candidates[j]) > 0.3 {
				cluster = append(cluster, candidates[j])
				used[j] = true
			}
		}

		if len(cluster) < minNeighbors {
			continue
		}

		faces = append(faces, FaceBox{Box: boundingBox(cluster)})
	}

	return faces
}

func iou(a, b Box) float64 {
	x1 := maxInt(a.X1, b.X1)
	y1 := maxInt(a.Y1, b.Y1)
	x2 := minInt(a.X2, b.X2)
	y2 := minInt(a.Y2, b.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Area() + b.Area() - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func boundingBox(boxes []Box) Box {
	b := boxes[0]
	for _, other := range boxes[1:] {
		b.X1 = minInt(b.X1, other.X1)
		b.Y1 = minInt(b.Y1, other.Y1)
		b.X2 = maxInt(b.X2, other.X2)
		b.Y2 = maxInt(b.Y2, other.Y2)
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FaceScore implements the area-ratio scoring curve on a detection's area ratio.
func FaceScore(faces []FaceBox, imageWidth, imageHeight int) float64 {
	if len(faces) == 0 || imageWidth == 0 || imageHeight == 0 {
		return 0
	}

	largest := faces[0].Box
	for _, f := range faces[1:] {
		if f.Box.Area() > largest.Area() {
			largest = f.Box
		}
	}

	r := float64(largest.Area()) / float64(imageWidth*imageHeight)
	switch {
	case r < 0.01:
		return r * 10
	case r > 0.5:
		return 0.5
	default:
		return clamp01(r * 5)
	}
}

// LargestFace returns the largest detected face, if any.
func LargestFace(faces []FaceBox) (FaceBox, bool) {
	if len(faces) == 0 {
		return FaceBox{}, false
	}
	largest := faces[0]
	for _, f := range faces[1:] {
		if f.Box.Area() > largest.Box.Area() {
			largest = f
		}
	}
	return largest, true
}
