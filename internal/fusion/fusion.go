// Package fusion combines the general and region NSFW scores into a single
// fused score and assigns each image its safety tier.
package fusion

import "github.com/ST2Projects/tierscan/internal/config"

// Fuse combines falconsai (whole-image) and nudenet (region) scores into
// the fused nsfw_score, per the piecewise rule below. The kink at n=0.25
// and n=0.6 is intentional (documented), not a bug to smooth away.
func Fuse(falconsai, nudenet float64) float64 {
	switch {
	case nudenet < 0.25:
		return clamp01(0.3 * falconsai)
	case nudenet > 0.6:
		return clamp01(nudenet)
	default:
		return clamp01(0.7*nudenet + 0.3*falconsai)
	}
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

// Tier is one of the four safety tiers a Classification can carry.
type Tier string

const (
	TierSuperSafe Tier = "super_safe"
	TierSafe      Tier = "safe"
	TierNSFW      Tier = "nsfw"
	TierError     Tier = "error"
)

// Signals is the set of per-image extractor outputs the tier classifier
// consumes. It mirrors SignalBundle from the data model.
type Signals struct {
	FalconsaiScore float64
	NudeNetScore   float64
	FaceScore      float64
	AestheticScore float64
	MosaicDetected bool
	MosaicScore    float64
	POVDetected    bool
	POVScore       float64
}

// Result is the tier classifier's total output.
type Result struct {
	Tier      Tier
	NSFWScore float64
	Reason    string
}

// Classify applies the fixed-precedence tier rules. It is a total
// function: every well-formed Signals value produces exactly one Result.
func Classify(s Signals, thresholds config.ThresholdConfig) Result {
	fused := Fuse(s.FalconsaiScore, s.NudeNetScore)

	if s.MosaicDetected {
		return Result{Tier: TierNSFW, NSFWScore: fused, Reason: "mosaic detected"}
	}

	if s.POVDetected {
		return Result{Tier: TierSafe, NSFWScore: fused, Reason: "POV composition detected"}
	}

	if fused < thresholds.SuperSafeThreshold && s.FaceScore > thresholds.MinFaceScore {
		return Result{Tier: TierSuperSafe, NSFWScore: fused, Reason: "low nsfw score with a confident face detection"}
	}

	if fused < thresholds.NSFWThreshold {
		reason := "nsfw score too high for super_safe"
		if s.FaceScore <= thresholds.MinFaceScore {
			reason = "no face detected"
		}
		return Result{Tier: TierSafe, NSFWScore: fused, Reason: reason}
	}

	return Result{Tier: TierNSFW, NSFWScore: fused, Reason: "nsfw score exceeds threshold"}
}
