// Package config holds the run configuration for a tierscan batch: safety
// thresholds, input/output paths, and the optional ambient features (history
// cache, live progress, blur remediation).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full run configuration. CLI flags overlay whatever is
// loaded from a YAML file via --config.
type Config struct {
	Thresholds ThresholdConfig `yaml:"thresholds" json:"thresholds"`
	Paths      PathsConfig     `yaml:"paths" json:"paths"`
	Skip       SkipConfig      `yaml:"skip" json:"skip"`
	Blur       BlurConfig      `yaml:"blur" json:"blur"`
	History    HistoryConfig   `yaml:"history" json:"history"`
	Progress   ProgressConfig  `yaml:"progress" json:"progress"`
	Verbose    bool            `yaml:"verbose" json:"verbose"`

	// IncludeBelly extends the region detector's NSFW label set with
	// BELLY_EXPOSED, for stricter moderation policies.
	IncludeBelly bool `yaml:"include_belly" json:"include_belly"`
}

// ThresholdConfig carries every tunable cutoff used by the fusion and tier
// classifier. It is constructed once per run and passed by value; nothing
// in this module keeps a mutable package-level copy.
type ThresholdConfig struct {
	NSFWThreshold      float64 `yaml:"nsfw_threshold" json:"nsfw_threshold"`
	SuperSafeThreshold float64 `yaml:"super_safe_threshold" json:"super_safe_threshold"`
	MinFaceScore       float64 `yaml:"min_face_score" json:"min_face_score"`
	DedupThreshold     int     `yaml:"dedup_threshold" json:"dedup_threshold"`
	MosaicThreshold    float64 `yaml:"mosaic_threshold" json:"mosaic_threshold"`
}

// PathsConfig holds the input/output surface.
type PathsConfig struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
}

// SkipConfig toggles optional signal extractors off.
type SkipConfig struct {
	Mosaic bool `yaml:"mosaic" json:"mosaic"`
	POV    bool `yaml:"pov" json:"pov"`
	Dedup  bool `yaml:"dedup" json:"dedup"`
}

// BlurConfig controls the smart-blur remediation pass.
type BlurConfig struct {
	Enabled             bool    `yaml:"enabled" json:"enabled"`
	OutputDir           string  `yaml:"output_dir" json:"output_dir"`
	ExpandPercent       float64 `yaml:"expand_percent" json:"expand_percent"`
	BlurRadius          int     `yaml:"blur_radius" json:"blur_radius"`
	BlurPasses          int     `yaml:"blur_passes" json:"blur_passes"`
	MaxAdditionalPasses int     `yaml:"max_additional_passes" json:"max_additional_passes"`
}

// HistoryConfig controls the optional sqlite classification cache.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DBPath  string `yaml:"db_path" json:"db_path"`
}

// ProgressConfig controls the optional websocket progress feed.
type ProgressConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Paths.Input == "" {
		return fmt.Errorf("paths.input is required")
	}
	if c.Thresholds.NSFWThreshold <= 0 || c.Thresholds.NSFWThreshold > 1 {
		return fmt.Errorf("thresholds.nsfw_threshold must be in (0,1]")
	}
	if c.Thresholds.SuperSafeThreshold <= 0 || c.Thresholds.SuperSafeThreshold > 1 {
		return fmt.Errorf("thresholds.super_safe_threshold must be in (0,1]")
	}
	if c.Thresholds.SuperSafeThreshold > c.Thresholds.NSFWThreshold {
		return fmt.Errorf("thresholds.super_safe_threshold must not exceed thresholds.nsfw_threshold")
	}
	if c.Thresholds.DedupThreshold < 0 || c.Thresholds.DedupThreshold > 64 {
		return fmt.Errorf("thresholds.dedup_threshold must be in [0,64]")
	}
	if c.Blur.Enabled && c.Blur.OutputDir == "" {
		return fmt.Errorf("blur.output_dir is required when blur.enabled is true")
	}
	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path is required when history.enabled is true")
	}
	if c.Progress.Enabled && c.Progress.Addr == "" {
		return fmt.Errorf("progress.addr is required when progress.enabled is true")
	}
	return nil
}

// SetDefaults fills in the documented defaults for any threshold or output
// field left zero; the blur fields are filled only when blur is enabled.
func (c *Config) SetDefaults() {
	if c.Thresholds.NSFWThreshold == 0 {
		c.Thresholds.NSFWThreshold = 0.30
	}
	if c.Thresholds.SuperSafeThreshold == 0 {
		c.Thresholds.SuperSafeThreshold = 0.15
	}
	if c.Thresholds.MinFaceScore == 0 {
		c.Thresholds.MinFaceScore = 0.10
	}
	if c.Thresholds.DedupThreshold == 0 {
		c.Thresholds.DedupThreshold = 8
	}
	if c.Thresholds.MosaicThreshold == 0 {
		c.Thresholds.MosaicThreshold = 0.005
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "-"
	}

	if c.Blur.Enabled {
		if c.Blur.ExpandPercent == 0 {
			c.Blur.ExpandPercent = 0.5
		}
		if c.Blur.BlurRadius == 0 {
			c.Blur.BlurRadius = 75
		}
		if c.Blur.BlurPasses == 0 {
			c.Blur.BlurPasses = 6
		}
		if c.Blur.MaxAdditionalPasses == 0 {
			c.Blur.MaxAdditionalPasses = 3
		}
	}
}
