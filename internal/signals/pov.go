package signals

// POVResult is the outcome of the POV-composition detector.
type POVResult struct {
	Score    float64
	Detected bool
}

// DetectPOV is a geometric predicate over the largest face
// and the skin distribution across the bottom of the frame, meant to flag
// "point of view" adult compositions that otherwise look safe (no mosaic,
// modest nsfw_score).
//
// The point-scale for each contributing signal (+0.2 vs +0.3) is
// deliberately ambiguous between two documented weights; this
// implementation awards the base amount for clearing the named threshold
// and a further +0.1 for clearing a stronger version of the same
// threshold, so the total per-signal contribution matches both.
func DetectPOV(faces []FaceBox, mask []bool, width, height int) POVResult {
	face, ok := LargestFace(faces)
	if !ok || width == 0 || height == 0 {
		return POVResult{}
	}

	faceRatio := float64(face.Box.Area()) / float64(width*height)
	faceCenterX := float64(face.Box.X1+face.Box.X2) / 2
	faceCenterY := float64(face.Box.Y1+face.Box.Y2) / 2
	halfWidth := float64(width) / 2
	offsetRatio := abs(faceCenterX-halfWidth) / halfWidth

	if faceRatio < 0.15 || offsetRatio > 0.40 || faceCenterY > float64(height)*0.5 {
		return POVResult{}
	}

	bottom40Y := int(float64(height) * 0.6)
	bottom10Y := int(float64(height) * 0.9)

	bottomSkinRatio := regionSkinRatio(mask, width, height, 0, bottom40Y, width, height)
	edgeSkinRatio := regionSkinRatio(mask, width, height, 0, bottom10Y, width, height)

	third := width / 3
	leftRatio := regionSkinRatio(mask, width, height, 0, bottom40Y, third, height)
	centerRatio := regionSkinRatio(mask, width, height, third, bottom40Y, 2*third, height)
	rightRatio := regionSkinRatio(mask, width, height, 2*third, bottom40Y, width, height)

	var vShape float64
	switch {
	case centerRatio > leftRatio && centerRatio > rightRatio:
		vShape = centerRatio
	case centerRatio >= 0.15:
		vShape = centerRatio * 0.8
	default:
		vShape = 0
	}

	score := 0.0

	switch {
	case faceRatio >= 0.25:
		score += 0.3
	case faceRatio >= 0.15:
		score += 0.2
	}

	switch {
	case bottomSkinRatio > 0.35:
		score += 0.3
	case bottomSkinRatio > 0.20:
		score += 0.2
	}

	switch {
	case vShape >= 0.30:
		score += 0.3
	case vShape > 0:
		score += 0.2
	}

	if faceCenterY < float64(height)*0.4 {
		score += 0.2
	}

	detected := score >= 0.7 && bottomSkinRatio > 0.20 && edgeSkinRatio > 0.50

	return POVResult{Score: clamp01(score), Detected: detected}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
