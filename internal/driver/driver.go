// Package driver wires every other package into the single synchronous
// batch pipeline: folder → Loader → Deduper → for each
// survivor { Signal Extractors → Fusion → Tier } → Report.
package driver

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ST2Projects/tierscan/internal/blur"
	"github.com/ST2Projects/tierscan/internal/config"
	"github.com/ST2Projects/tierscan/internal/fusion"
	"github.com/ST2Projects/tierscan/internal/imageio"
	"github.com/ST2Projects/tierscan/internal/phash"
	"github.com/ST2Projects/tierscan/internal/progressws"
	"github.com/ST2Projects/tierscan/internal/report"
	"github.com/ST2Projects/tierscan/internal/signals"
	"github.com/ST2Projects/tierscan/internal/store"
)

// InputPathMissing is returned by Run when the configured input path does
// not exist; callers map it to exit code 1 with a JSON error payload.
var InputPathMissing = errors.New("input path does not exist")

// Driver owns everything one batch run needs: the classifier models, the
// optional ambient features, and the reporter every call site logs
// through. It holds no mutable state across runs.
type Driver struct {
	Classifier   *ClassifierContext
	Reporter     Reporter
	History      *store.DB
	Blur         *blur.Engine
	Progress     *progressws.Tracker
	IncludeBelly bool
}

// New builds a Driver from its required classifier context. The optional
// fields (History, Blur, Progress) are left nil and can be set directly;
// a nil field simply disables that ambient feature.
func New(cc *ClassifierContext) *Driver {
	return &Driver{Classifier: cc, Reporter: LogrusReporter{}}
}

// inputImage is one input file as tracked across the dedup pass. The
// decoded pixels are not retained here: the hash pass decodes, hashes, and
// drops each image, and survivors are decoded again one at a time during
// classification so rasters stay bound to the current iteration.
type inputImage struct {
	filename string
	path     string
	loadErr  error
}

// Run executes one full batch over cfg.Paths.Input and returns the
// finished report. Any panic from a signal extractor's model call is
// recovered at the call site and converted into a degraded, neutral signal
// value; the optional blur pass's model calls are not wrapped this way.
func (d *Driver) Run(ctx context.Context, cfg *config.Config) (*report.BatchReport, error) {
	start := time.Now()

	paths, err := enumerateInputs(cfg.Paths.Input)
	if err != nil {
		return nil, err
	}

	if d.Progress != nil {
		d.Progress.Start(len(paths))
		defer d.Progress.Stop()
		d.Progress.UpdateOperation("loading")
	}

	inputs := make([]inputImage, 0, len(paths))
	candidates := make([]phash.Candidate, 0, len(paths))
	for _, p := range paths {
		img, _, loadErr := imageio.Load(p)
		in := inputImage{filename: filepath.Base(p), path: p, loadErr: loadErr}
		inputs = append(inputs, in)

		if loadErr != nil {
			candidates = append(candidates, phash.Candidate{Filename: in.filename})
			continue
		}
		h, err := phash.Compute(img)
		if err != nil {
			d.Reporter.Warnf("failed to hash %s: %v", in.filename, err)
			candidates = append(candidates, phash.Candidate{Filename: in.filename})
			continue
		}
		candidates = append(candidates, phash.Candidate{Filename: in.filename, Hash: h})
	}

	dedup := phash.Result{Representatives: nil, DuplicatesRemoved: 0}
	if cfg.Skip.Dedup {
		dedup.Representatives = candidates
	} else {
		dedup = phash.Dedup(candidates, cfg.Thresholds.DedupThreshold)
	}

	byFilename := make(map[string]inputImage, len(inputs))
	for _, in := range inputs {
		byFilename[in.filename] = in
	}

	builder := report.NewBuilder(cfg.Paths.Input, len(inputs))
	builder.SetDuplicatesRemoved(dedup.DuplicatesRemoved)

	if d.Progress != nil {
		d.Progress.UpdateOperation("classifying")
	}

	for _, cand := range dedup.Representatives {
		in := byFilename[cand.Filename]
		classification := d.classifyOne(ctx, cfg, in)
		builder.Add(classification)
		if d.Progress != nil {
			d.Progress.IncrementImages(classification.Filename, classification.Classification)
		}
	}

	return builder.Build(time.Since(start), cfg.Paths.Output), nil
}

// classifyOne runs the full signal-extraction → fusion → tier pipeline for
// a single surviving image, consulting and updating the history cache when
// one is configured. The image is decoded here and released when this
// call returns; nothing outside this frame holds its rasters.
func (d *Driver) classifyOne(ctx context.Context, cfg *config.Config, in inputImage) report.Classification {
	loadErr := in.loadErr
	var img image.Image
	var raster *imageio.Raster
	if loadErr == nil {
		img, raster, loadErr = imageio.Load(in.path)
	}
	if loadErr != nil {
		var le *imageio.LoadError
		reason := "failed to load image"
		if errors.As(loadErr, &le) {
			reason = fmt.Sprintf("failed to load image: %v", le.Err)
		}
		return report.Classification{
			Filename:       in.filename,
			NSFWScore:      1.0,
			Classification: string(fusion.TierError),
			Reason:         reason,
			Error:          loadErr.Error(),
		}
	}

	var contentHash string
	if d.History != nil {
		if h, err := hashFile(in.path); err != nil {
			d.Reporter.Warnf("failed to hash content of %s: %v", in.filename, err)
		} else {
			contentHash = h
			if rec, err := d.History.Lookup(contentHash); err != nil {
				d.Reporter.Warnf("history lookup failed for %s: %v", in.filename, err)
			} else if rec != nil {
				d.Reporter.Infof("reusing cached classification for %s (unchanged content)", in.filename)
				if c, ok := decodeCachedClassification(rec.ClassificationJSON, in.filename); ok {
					return c
				}
			}
		}
	}

	bundle := d.extractSignals(ctx, cfg, in.filename, img, raster)
	result := fusion.Classify(bundle.toFusionSignals(), cfg.Thresholds)

	classification := report.Classification{
		Filename:       in.filename,
		IsSuperSafe:    result.Tier == fusion.TierSuperSafe,
		IsSafe:         result.Tier == fusion.TierSuperSafe || result.Tier == fusion.TierSafe,
		NSFWScore:      result.NSFWScore,
		FaceScore:      bundle.FaceScore,
		AestheticScore: bundle.AestheticScore,
		FalconsaiScore: bundle.FalconsaiScore,
		NudeNetScore:   bundle.NudeNetScore,
		MosaicDetected: bundle.Mosaic.Detected,
		MosaicScore:    bundle.Mosaic.Score,
		POVDetected:    bundle.POV.Detected,
		POVScore:       bundle.POV.Score,
		Classification: string(result.Tier),
		Reason:         result.Reason,
	}

	d.Reporter.Debugf("%s: %s (nsfw=%.4f face=%.4f mosaic=%v pov=%v) - %s",
		in.filename, classification.Classification, classification.NSFWScore,
		classification.FaceScore, classification.MosaicDetected,
		classification.POVDetected, classification.Reason)

	if result.Tier == fusion.TierNSFW && d.Blur != nil {
		wasBlurred, outPath, err := d.Blur.ProcessImage(ctx, in.path, img)
		if err != nil {
			d.Reporter.Warnf("blur pass failed for %s: %v", in.filename, err)
		} else if wasBlurred {
			d.Reporter.Infof("blurred %s -> %s", in.filename, outPath)
		}
	}

	if d.History != nil && contentHash != "" {
		if err := d.saveHistory(contentHash, in.path, img, classification); err != nil {
			d.Reporter.Warnf("failed to save history record for %s: %v", in.filename, err)
		}
	}

	return classification
}

// signalBundle mirrors SignalBundle from the data model: every raw
// extractor output for one image, before fusion.
type signalBundle struct {
	FalconsaiScore float64
	NudeNetScore   float64
	FaceScore      float64
	AestheticScore float64
	Mosaic         signals.MosaicResult
	POV            signals.POVResult
}

func (b signalBundle) toFusionSignals() fusion.Signals {
	return fusion.Signals{
		FalconsaiScore: b.FalconsaiScore,
		NudeNetScore:   b.NudeNetScore,
		FaceScore:      b.FaceScore,
		AestheticScore: b.AestheticScore,
		MosaicDetected: b.Mosaic.Detected,
		MosaicScore:    b.Mosaic.Score,
		POVDetected:    b.POV.Detected,
		POVScore:       b.POV.Score,
	}
}

// extractSignals runs every signal extractor in the fixed order the
// pipeline prescribes, degrading each one independently on error or panic
// rather than aborting the image.
func (d *Driver) extractSignals(ctx context.Context, cfg *config.Config, filename string, img image.Image, raster *imageio.Raster) signalBundle {
	var bundle signalBundle

	bundle.FalconsaiScore = d.safeScore(ctx, filename, img)

	detections := d.safeDetect(ctx, filename, img)
	bundle.NudeNetScore = signals.NSFWScore(detections, d.IncludeBelly)

	faces := d.safeFaces(ctx, filename, raster)
	bundle.FaceScore = signals.FaceScore(faces, raster.Width, raster.Height)

	bundle.AestheticScore = signals.AestheticScore(raster)

	if cfg.Skip.Mosaic && cfg.Skip.POV {
		return bundle
	}

	mask := signals.SkinMask(raster)

	if !cfg.Skip.Mosaic {
		bundle.Mosaic = signals.DetectMosaic(raster, mask, cfg.Thresholds.MosaicThreshold)
	}
	if !cfg.Skip.POV {
		bundle.POV = signals.DetectPOV(faces, mask, raster.Width, raster.Height)
	}

	return bundle
}

// safeScore calls the general NSFW scorer, recovering any panic and
// degrading to the neutral score 0 on panic or error (a
// SignalExtractionFailure).
func (d *Driver) safeScore(ctx context.Context, filename string, img image.Image) (score float64) {
	if d.Classifier.Scorer == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			d.Reporter.Warnf("falconsai scorer panicked on %s: %v", filename, r)
			score = 0
		}
	}()

	s, err := d.Classifier.Scorer.Score(ctx, img)
	if err != nil {
		d.Reporter.Warnf("falconsai scorer failed on %s: %v", filename, err)
		return 0
	}
	return s
}

// safeDetect calls the region NSFW detector, degrading to no detections on
// panic or error.
func (d *Driver) safeDetect(ctx context.Context, filename string, img image.Image) (detections []signals.Detection) {
	if d.Classifier.Detector == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			d.Reporter.Warnf("nudenet detector panicked on %s: %v", filename, r)
			detections = nil
		}
	}()

	dets, err := d.Classifier.Detector.Detect(ctx, img)
	if err != nil {
		d.Reporter.Warnf("nudenet detector failed on %s: %v", filename, err)
		return nil
	}
	return dets
}

// safeFaces calls the face detector, degrading to no faces on panic or
// error.
func (d *Driver) safeFaces(ctx context.Context, filename string, raster *imageio.Raster) (faces []signals.FaceBox) {
	if d.Classifier.Faces == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			d.Reporter.Warnf("face detector panicked on %s: %v", filename, r)
			faces = nil
		}
	}()

	fs, err := d.Classifier.Faces.Detect(ctx, raster)
	if err != nil {
		d.Reporter.Warnf("face detector failed on %s: %v", filename, err)
		return nil
	}
	return fs
}

// enumerateInputs resolves cfg input to a sorted list of supported image
// paths. A single supported file is a batch of one; a directory is listed
// non-recursively and filtered to supported extensions.
func enumerateInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", InputPathMissing, input)
	}

	if !info.IsDir() {
		if !imageio.IsSupported(input) {
			return nil, fmt.Errorf("%s is not a supported image file", input)
		}
		return []string{input}, nil
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !imageio.IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(input, e.Name()))
	}

	sort.Slice(paths, func(i, j int) bool {
		return strings.ToLower(filepath.Base(paths[i])) < strings.ToLower(filepath.Base(paths[j]))
	})

	return paths, nil
}
