package fusion

import (
	"math"
	"testing"

	"github.com/ST2Projects/tierscan/internal/config"
)

func defaultThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		NSFWThreshold:      0.30,
		SuperSafeThreshold: 0.15,
		MinFaceScore:       0.10,
	}
}

func TestFuse(t *testing.T) {
	tests := []struct {
		name      string
		falconsai float64
		nudenet   float64
		wantScore float64
	}{
		{"region silent dominates", 0.9, 0.1, 0.27},
		{"region confident authoritative", 0.1, 0.8, 0.8},
		{"ambiguous blend", 0.5, 0.4, 0.7*0.4 + 0.3*0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fuse(tt.falconsai, tt.nudenet)
			if math.Abs(got-tt.wantScore) > 1e-9 {
				t.Errorf("Fuse(%v, %v) = %v, want %v", tt.falconsai, tt.nudenet, got, tt.wantScore)
			}
		})
	}
}

func TestFuseBoundaryContinuity(t *testing.T) {
	// The kink at n=0.25 and n=0.6 is documented and
	// intentional, but values either side of it should stay within a
	// generous epsilon of each other for a fixed falconsai score.
	const epsilon = 0.2

	falconsai := 0.5
	below := Fuse(falconsai, 0.24)
	above := Fuse(falconsai, 0.26)
	if math.Abs(above-below) > epsilon {
		t.Errorf("fusion kink at n=0.25 too large: below=%v above=%v", below, above)
	}

	below = Fuse(falconsai, 0.59)
	above = Fuse(falconsai, 0.61)
	if math.Abs(above-below) > epsilon {
		t.Errorf("fusion kink at n=0.6 too large: below=%v above=%v", below, above)
	}
}

func TestClassifyMosaicPrecedence(t *testing.T) {
	s := Signals{FalconsaiScore: 0, NudeNetScore: 0, FaceScore: 0.9, MosaicDetected: true}
	result := Classify(s, defaultThresholds())
	if result.Tier != TierNSFW {
		t.Errorf("mosaic-detected image classified as %v, want nsfw", result.Tier)
	}
}

func TestClassifyPOVPrecedence(t *testing.T) {
	s := Signals{FalconsaiScore: 0, NudeNetScore: 0, FaceScore: 0.9, POVDetected: true}
	result := Classify(s, defaultThresholds())
	if result.Tier != TierSafe {
		t.Errorf("pov-detected image classified as %v, want safe", result.Tier)
	}
}

func TestClassifySuperSafe(t *testing.T) {
	s := Signals{FalconsaiScore: 0.05, NudeNetScore: 0.05, FaceScore: 0.6}
	result := Classify(s, defaultThresholds())
	if result.Tier != TierSuperSafe {
		t.Errorf("got tier %v, want super_safe", result.Tier)
	}
}

func TestClassifySuperSafeImpliesSafe(t *testing.T) {
	// tier==super_safe implies the safe predicate also holds
	// (modulo the mosaic override, which cannot fire here since super_safe
	// requires ¬mosaic_detected by construction).
	thresholds := defaultThresholds()
	s := Signals{FalconsaiScore: 0.05, NudeNetScore: 0.05, FaceScore: 0.6}
	result := Classify(s, thresholds)
	if result.Tier != TierSuperSafe {
		t.Fatalf("setup failed: got %v, want super_safe", result.Tier)
	}
	if result.NSFWScore >= thresholds.NSFWThreshold {
		t.Errorf("super_safe result has nsfw_score %v >= nsfw_threshold %v", result.NSFWScore, thresholds.NSFWThreshold)
	}
}

func TestClassifyNoFaceReason(t *testing.T) {
	s := Signals{FalconsaiScore: 0.1, NudeNetScore: 0.1, FaceScore: 0}
	result := Classify(s, defaultThresholds())
	if result.Tier != TierSafe {
		t.Fatalf("got tier %v, want safe", result.Tier)
	}
	if result.Reason != "no face detected" {
		t.Errorf("reason = %q, want %q", result.Reason, "no face detected")
	}
}

func TestClassifyNSFW(t *testing.T) {
	s := Signals{FalconsaiScore: 0.9, NudeNetScore: 0.9, FaceScore: 0.9}
	result := Classify(s, defaultThresholds())
	if result.Tier != TierNSFW {
		t.Errorf("got tier %v, want nsfw", result.Tier)
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	// Lowering the NSFW threshold must never decrease the nsfw count
	// across a fixed set of fused scores.
	fusedScores := []float64{0.1, 0.2, 0.28, 0.31, 0.4, 0.5, 0.9}

	countNSFW := func(threshold float64) int {
		thresholds := defaultThresholds()
		thresholds.NSFWThreshold = threshold
		count := 0
		for _, score := range fusedScores {
			s := Signals{FalconsaiScore: score, NudeNetScore: score, FaceScore: 0.5}
			if Classify(s, thresholds).Tier == TierNSFW {
				count++
			}
		}
		return count
	}

	highCount := countNSFW(0.30)
	lowCount := countNSFW(0.15)
	if lowCount < highCount {
		t.Errorf("lowering NSFW_THRESHOLD decreased nsfw_count: %d (threshold 0.15) < %d (threshold 0.30)", lowCount, highCount)
	}
}
