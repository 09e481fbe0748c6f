// Package cliapp builds the command-line surface: a urfave/cli/v2 app
// whose flags construct a config.Config and hand it to internal/driver.Run.
// Unlike a long-running server with no flags of its own, a batch tool like
// this one is flag-heavy by nature (see DESIGN.md).
package cliapp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	log "github.com/sirupsen/logrus"

	"github.com/ST2Projects/tierscan/internal/blur"
	"github.com/ST2Projects/tierscan/internal/config"
	"github.com/ST2Projects/tierscan/internal/driver"
	"github.com/ST2Projects/tierscan/internal/progressws"
	"github.com/ST2Projects/tierscan/internal/report"
	"github.com/ST2Projects/tierscan/internal/store"
)

// New builds the cli.App. version is embedded in the app's --version output.
func New(version string) *cli.App {
	return &cli.App{
		Name:    "tierscan",
		Usage:   "classify a folder of images into super_safe/safe/nsfw tiers",
		Version: version,
		Flags:   flags(),
		Action:  Action,
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input file or directory", Required: true},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "-", Usage: "output JSON path, or - for stdout"},
		&cli.Float64Flag{Name: "threshold", Value: 0.30, Usage: "fused NSFW threshold"},
		&cli.Float64Flag{Name: "super-safe-threshold", Value: 0.15, Usage: "super_safe NSFW ceiling"},
		&cli.Float64Flag{Name: "min-face-score", Value: 0.10, Usage: "minimum face score for super_safe"},
		&cli.BoolFlag{Name: "verbose", Usage: "enable debug-level logging"},
		&cli.BoolFlag{Name: "skip-mosaic", Usage: "disable mosaic/censorship detection"},
		&cli.BoolFlag{Name: "skip-pov", Usage: "disable POV-composition detection"},
		&cli.BoolFlag{Name: "skip-dedup", Usage: "disable perceptual-hash deduplication"},
		&cli.IntFlag{Name: "dedup-threshold", Value: 8, Usage: "Hamming distance threshold for dedup"},

		&cli.StringFlag{Name: "config", Usage: "path to a YAML RunConfig file; flags override its values"},
		&cli.Float64Flag{Name: "mosaic-threshold", Value: 0.005, Usage: "mosaic detection score threshold"},
		&cli.BoolFlag{Name: "blur", Usage: "enable the smart-blur engine for nsfw-tier images"},
		&cli.StringFlag{Name: "blur-output-dir", Usage: "directory for blurred JPEG output"},
		&cli.StringFlag{Name: "history-db", Usage: "path to a sqlite classification history cache"},
		&cli.StringFlag{Name: "progress-addr", Usage: "serve a websocket progress feed on this address"},
		&cli.BoolFlag{Name: "include-belly", Usage: "count exposed-belly detections toward the NSFW score"},
	}
}

// Action is the cli.App's Action: it builds a config.Config from flags
// (overlaying a --config file when given), wires the optional ambient
// features, runs the batch, and writes the report.
func Action(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return writeErrorAndExit(err)
	}

	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	d := driver.New(driver.NewDefaultClassifierContext())
	d.IncludeBelly = cfg.IncludeBelly

	if cfg.History.Enabled {
		db, err := store.New(cfg.History.DBPath)
		if err != nil {
			return writeErrorAndExit(fmt.Errorf("failed to open history database: %w", err))
		}
		defer db.Close()
		d.History = db
	}

	if cfg.Blur.Enabled {
		d.Blur = blur.NewEngine(cfg.Blur, cfg.Thresholds, d.Classifier.Detector, d.Classifier.Scorer)
	}

	var tracker *progressws.Tracker
	if cfg.Progress.Enabled {
		tracker = progressws.NewTracker()
		d.Progress = tracker
		go func() {
			if err := progressws.ListenAndServe(cfg.Progress.Addr, tracker); err != nil {
				log.Errorf("progress server stopped: %v", err)
			}
		}()
	}

	batchReport, err := d.Run(context.Background(), cfg)
	if err != nil {
		return writeErrorAndExit(err)
	}

	s := batchReport.Stats
	log.Infof("classified %d images in %.2fs: %d super_safe, %d safe, %d nsfw, %d errors (%d duplicates removed)",
		s.TotalImages, s.ProcessingTimeSec, s.SuperSafeCount, s.SafeCount, s.NSFWCount, s.ErrorCount, s.DuplicatesRemoved)

	return writeReport(cfg.Paths.Output, batchReport)
}

// buildConfig assembles a config.Config from an optional --config YAML
// file overlaid with explicit flags, following a
// file-then-flag-overlay precedence.
func buildConfig(c *cli.Context) (*config.Config, error) {
	var cfg config.Config

	if path := c.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if v := c.String("input"); v != "" {
		cfg.Paths.Input = v
	}
	if c.IsSet("output") || cfg.Paths.Output == "" {
		cfg.Paths.Output = c.String("output")
	}
	if c.IsSet("threshold") || cfg.Thresholds.NSFWThreshold == 0 {
		cfg.Thresholds.NSFWThreshold = c.Float64("threshold")
	}
	if c.IsSet("super-safe-threshold") || cfg.Thresholds.SuperSafeThreshold == 0 {
		cfg.Thresholds.SuperSafeThreshold = c.Float64("super-safe-threshold")
	}
	if c.IsSet("min-face-score") || cfg.Thresholds.MinFaceScore == 0 {
		cfg.Thresholds.MinFaceScore = c.Float64("min-face-score")
	}
	if c.IsSet("dedup-threshold") || cfg.Thresholds.DedupThreshold == 0 {
		cfg.Thresholds.DedupThreshold = c.Int("dedup-threshold")
	}
	if c.IsSet("mosaic-threshold") || cfg.Thresholds.MosaicThreshold == 0 {
		cfg.Thresholds.MosaicThreshold = c.Float64("mosaic-threshold")
	}

	cfg.Verbose = cfg.Verbose || c.Bool("verbose")
	cfg.IncludeBelly = cfg.IncludeBelly || c.Bool("include-belly")
	cfg.Skip.Mosaic = cfg.Skip.Mosaic || c.Bool("skip-mosaic")
	cfg.Skip.POV = cfg.Skip.POV || c.Bool("skip-pov")
	cfg.Skip.Dedup = cfg.Skip.Dedup || c.Bool("skip-dedup")

	if c.Bool("blur") {
		cfg.Blur.Enabled = true
	}
	if v := c.String("blur-output-dir"); v != "" {
		cfg.Blur.OutputDir = v
	}
	if v := c.String("history-db"); v != "" {
		cfg.History.Enabled = true
		cfg.History.DBPath = v
	}
	if v := c.String("progress-addr"); v != "" {
		cfg.Progress.Enabled = true
		cfg.Progress.Addr = v
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// writeReport writes the finished report to outputPath, or stdout when
// outputPath is "-".
func writeReport(outputPath string, r *report.BatchReport) error {
	if outputPath == "" || outputPath == "-" {
		return report.Write(os.Stdout, r)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()
	return report.Write(f, r)
}

// writeErrorAndExit prints a JSON error payload to stdout and returns an
// error that carries exit code 1, (InputPathMissing/FatalException
// both terminate the process this way).
func writeErrorAndExit(err error) error {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	fmt.Fprintln(os.Stdout, string(payload))
	return cli.Exit(err.Error(), 1)
}
