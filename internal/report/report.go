// Package report builds and serializes the BatchReport, the single JSON
// document a batch run produces. It owns no classification logic; it only
// accumulates per-image results and derives aggregate statistics.
package report

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/ST2Projects/tierscan/internal/fusion"
)

// Classification is one image's entry in the report's "results" map.
type Classification struct {
	Filename       string  `json:"filename"`
	IsSuperSafe    bool    `json:"is_super_safe"`
	IsSafe         bool    `json:"is_safe"`
	NSFWScore      float64 `json:"nsfw_score"`
	FaceScore      float64 `json:"face_score"`
	AestheticScore float64 `json:"aesthetic_score"`
	FalconsaiScore float64 `json:"falconsai_score"`
	NudeNetScore   float64 `json:"nudenet_score"`
	MosaicDetected bool    `json:"mosaic_detected"`
	MosaicScore    float64 `json:"mosaic_score"`
	POVDetected    bool    `json:"pov_detected"`
	POVScore       float64 `json:"pov_score"`
	Classification string  `json:"classification"`
	Reason         string  `json:"reason"`
	Error          string  `json:"error"`
}

// Stats is the report's "stats" block: aggregate counts and averages over
// every surviving (post-dedup) image.
type Stats struct {
	TotalImages       int     `json:"total_images"`
	OriginalImages    int     `json:"original_images"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	SuperSafeCount    int     `json:"super_safe_count"`
	SafeCount         int     `json:"safe_count"`
	NSFWCount         int     `json:"nsfw_count"`
	ErrorCount        int     `json:"error_count"`
	MosaicCount       int     `json:"mosaic_count"`
	POVCount          int     `json:"pov_count"`
	AvgNSFWScore      float64 `json:"avg_nsfw_score"`
	AvgFaceScore      float64 `json:"avg_face_score"`
	ProcessingTimeSec float64 `json:"processing_time_sec"`
}

// BatchReport is the full document written to stdout or --output.
type BatchReport struct {
	Results    map[string]Classification `json:"results"`
	Stats      Stats                     `json:"stats"`
	OutputPath string                    `json:"output_path"`
}

// Builder accumulates per-image Classifications in the order the driver
// processes them (lexicographic filename order, per the ordering
// guarantees) and derives the aggregate Stats on Build.
//
// encoding/json marshals map[string]T keys in sorted order, so the
// resulting Results map serializes in the required lexicographic order
// without the builder needing to track ordering itself.
type Builder struct {
	inputPath         string
	originalImages    int
	duplicatesRemoved int
	entries           []Classification
}

// NewBuilder starts a report for a run over inputPath that began with
// originalImages images before deduplication.
func NewBuilder(inputPath string, originalImages int) *Builder {
	return &Builder{inputPath: inputPath, originalImages: originalImages}
}

// SetDuplicatesRemoved records the dedup pass's removed-count statistic.
func (b *Builder) SetDuplicatesRemoved(n int) {
	b.duplicatesRemoved = n
}

// Add records one surviving image's Classification.
func (b *Builder) Add(c Classification) {
	b.entries = append(b.entries, c)
}

// Build finalizes the report: rounds every float to 4 decimals and
// computes aggregate statistics over the accumulated entries.
func (b *Builder) Build(elapsed time.Duration, outputPath string) *BatchReport {
	results := make(map[string]Classification, len(b.entries))
	stats := Stats{
		OriginalImages:    b.originalImages,
		DuplicatesRemoved: b.duplicatesRemoved,
		TotalImages:       len(b.entries),
		ProcessingTimeSec: round4(elapsed.Seconds()),
	}

	var nsfwSum, faceSum float64
	for _, c := range b.entries {
		c.NSFWScore = round4(c.NSFWScore)
		c.FaceScore = round4(c.FaceScore)
		c.AestheticScore = round4(c.AestheticScore)
		c.FalconsaiScore = round4(c.FalconsaiScore)
		c.NudeNetScore = round4(c.NudeNetScore)
		c.MosaicScore = round4(c.MosaicScore)
		c.POVScore = round4(c.POVScore)
		results[c.Filename] = c

		nsfwSum += c.NSFWScore
		faceSum += c.FaceScore

		switch fusion.Tier(c.Classification) {
		case fusion.TierSuperSafe:
			stats.SuperSafeCount++
		case fusion.TierSafe:
			stats.SafeCount++
		case fusion.TierNSFW:
			stats.NSFWCount++
		case fusion.TierError:
			stats.ErrorCount++
		}
		if c.MosaicDetected {
			stats.MosaicCount++
		}
		if c.POVDetected {
			stats.POVCount++
		}
	}

	if len(b.entries) > 0 {
		stats.AvgNSFWScore = round4(nsfwSum / float64(len(b.entries)))
		stats.AvgFaceScore = round4(faceSum / float64(len(b.entries)))
	}

	return &BatchReport{Results: results, Stats: stats, OutputPath: outputPath}
}

// round4 rounds v to 4 decimal places. Values stay plain float64 so they
// survive encoding/json round-trips as ordinary JSON numbers.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Write serializes report as indented JSON to w.
func Write(w io.Writer, report *BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
