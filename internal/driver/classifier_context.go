package driver

import (
	"github.com/ST2Projects/tierscan/internal/signals"
)

// ClassifierContext holds the three long-lived model handles for the life
// of a process. It is owned by the driver and never shared across
// goroutines; there is no internal locking because nothing in this module
// accesses it concurrently.
type ClassifierContext struct {
	Scorer   signals.FalconsaiScorer
	Detector signals.NudeNetDetector
	Faces    signals.FaceDetector
}

// NewClassifierContext builds a context from its three model handles. A
// nil handle is valid and causes the corresponding signal to degrade to
// its neutral value for every image (see the safeScore, safeDetect and
// safeFaces helpers in driver.go).
func NewClassifierContext(scorer signals.FalconsaiScorer, detector signals.NudeNetDetector, faces signals.FaceDetector) *ClassifierContext {
	return &ClassifierContext{Scorer: scorer, Detector: detector, Faces: faces}
}

// NewDefaultClassifierContext builds a context from the module's
// deterministic heuristic implementations, with no network or model
// weights required.
func NewDefaultClassifierContext() *ClassifierContext {
	return &ClassifierContext{
		Scorer:   signals.NewHeuristicFalconsaiScorer(),
		Detector: signals.NewHeuristicNudeNetDetector(),
		Faces:    signals.NewHeuristicFaceDetector(),
	}
}
