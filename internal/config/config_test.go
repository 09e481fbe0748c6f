package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid minimal config",
			cfg: Config{
				Paths:      PathsConfig{Input: "./images"},
				Thresholds: ThresholdConfig{NSFWThreshold: 0.3, SuperSafeThreshold: 0.15, DedupThreshold: 8},
			},
			wantErr: false,
		},
		{
			name:    "missing input path",
			cfg:     Config{Thresholds: ThresholdConfig{NSFWThreshold: 0.3, SuperSafeThreshold: 0.15}},
			wantErr: true,
		},
		{
			name: "super safe threshold above nsfw threshold",
			cfg: Config{
				Paths:      PathsConfig{Input: "./images"},
				Thresholds: ThresholdConfig{NSFWThreshold: 0.2, SuperSafeThreshold: 0.5},
			},
			wantErr: true,
		},
		{
			name: "dedup threshold out of range",
			cfg: Config{
				Paths:      PathsConfig{Input: "./images"},
				Thresholds: ThresholdConfig{NSFWThreshold: 0.3, SuperSafeThreshold: 0.15, DedupThreshold: 65},
			},
			wantErr: true,
		},
		{
			name: "blur enabled without output dir",
			cfg: Config{
				Paths:      PathsConfig{Input: "./images"},
				Thresholds: ThresholdConfig{NSFWThreshold: 0.3, SuperSafeThreshold: 0.15, DedupThreshold: 8},
				Blur:       BlurConfig{Enabled: true},
			},
			wantErr: true,
		},
		{
			name: "history enabled without db path",
			cfg: Config{
				Paths:      PathsConfig{Input: "./images"},
				Thresholds: ThresholdConfig{NSFWThreshold: 0.3, SuperSafeThreshold: 0.15, DedupThreshold: 8},
				History:    HistoryConfig{Enabled: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.Paths.Input = "./images"
	cfg.SetDefaults()

	if cfg.Thresholds.NSFWThreshold != 0.30 {
		t.Errorf("NSFWThreshold = %v, want 0.30", cfg.Thresholds.NSFWThreshold)
	}
	if cfg.Thresholds.SuperSafeThreshold != 0.15 {
		t.Errorf("SuperSafeThreshold = %v, want 0.15", cfg.Thresholds.SuperSafeThreshold)
	}
	if cfg.Thresholds.MinFaceScore != 0.10 {
		t.Errorf("MinFaceScore = %v, want 0.10", cfg.Thresholds.MinFaceScore)
	}
	if cfg.Thresholds.DedupThreshold != 8 {
		t.Errorf("DedupThreshold = %v, want 8", cfg.Thresholds.DedupThreshold)
	}
	if cfg.Thresholds.MosaicThreshold != 0.005 {
		t.Errorf("MosaicThreshold = %v, want 0.005", cfg.Thresholds.MosaicThreshold)
	}
	if cfg.Paths.Output != "-" {
		t.Errorf("Output = %q, want %q", cfg.Paths.Output, "-")
	}
}

func TestSetDefaultsBlur(t *testing.T) {
	cfg := Config{
		Paths: PathsConfig{Input: "./images"},
		Blur:  BlurConfig{Enabled: true, OutputDir: "./blurred"},
	}
	cfg.SetDefaults()

	if cfg.Blur.ExpandPercent != 0.5 {
		t.Errorf("ExpandPercent = %v, want 0.5", cfg.Blur.ExpandPercent)
	}
	if cfg.Blur.BlurRadius != 75 {
		t.Errorf("BlurRadius = %v, want 75", cfg.Blur.BlurRadius)
	}
	if cfg.Blur.BlurPasses != 6 {
		t.Errorf("BlurPasses = %v, want 6", cfg.Blur.BlurPasses)
	}
	if cfg.Blur.MaxAdditionalPasses != 3 {
		t.Errorf("MaxAdditionalPasses = %v, want 3", cfg.Blur.MaxAdditionalPasses)
	}
}
