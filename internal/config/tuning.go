// Package config loads the analysis tuning file. Fields are pointers so a
// partial JSON file only overrides what it names; every accessor falls back
// to the documented default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/courtside-data/rally.report/internal/court"
	"github.com/courtside-data/rally.report/internal/track"
)

// TuningConfig represents the root configuration for analysis tuning
// parameters. None of the tolerances is authoritative; they are expected to
// be recalibrated against real footage per camera setup.
type TuningConfig struct {
	FrameRate              *float64 `json:"frame_rate,omitempty"`
	MaxGapFillFrames       *int     `json:"max_gap_fill_frames,omitempty"`
	OutlierSpeedMultiplier *float64 `json:"outlier_speed_multiplier,omitempty"`
	SmoothingWindowFrames  *int     `json:"smoothing_window_frames,omitempty"`
	MinValidFraction       *float64 `json:"min_valid_fraction,omitempty"`
	BounceMinSeparation    *int     `json:"bounce_min_separation_frames,omitempty"`
	BounceConfirmWindow    *int     `json:"bounce_confirm_window_frames,omitempty"`
	ReprojectionTolerance  *float64 `json:"reprojection_tolerance_m,omitempty"`
	PlayMode               *string  `json:"play_mode,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset; every
// accessor then reports its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning file: %w", err)
	}
	return cfg, nil
}

// Validate checks that any set values are usable. Full semantic validation
// happens once the values land in track.AnalysisConfig.
func (c *TuningConfig) Validate() error {
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %v", *c.FrameRate)
	}
	if c.MaxGapFillFrames != nil && *c.MaxGapFillFrames < 0 {
		return fmt.Errorf("max_gap_fill_frames must be non-negative, got %d", *c.MaxGapFillFrames)
	}
	if c.MinValidFraction != nil && (*c.MinValidFraction < 0 || *c.MinValidFraction > 1) {
		return fmt.Errorf("min_valid_fraction must be between 0 and 1, got %v", *c.MinValidFraction)
	}
	if c.PlayMode != nil && !court.PlayMode(*c.PlayMode).Valid() {
		return fmt.Errorf("play_mode must be %q or %q, got %q", court.ModeSingles, court.ModeDoubles, *c.PlayMode)
	}
	return nil
}

// GetFrameRate returns the frame_rate value or the default.
func (c *TuningConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 24.0
	}
	return *c.FrameRate
}

// GetMaxGapFillFrames returns the max_gap_fill_frames value or the default.
func (c *TuningConfig) GetMaxGapFillFrames() int {
	if c.MaxGapFillFrames == nil {
		return 5
	}
	return *c.MaxGapFillFrames
}

// GetOutlierSpeedMultiplier returns the outlier_speed_multiplier value or the default.
func (c *TuningConfig) GetOutlierSpeedMultiplier() float64 {
	if c.OutlierSpeedMultiplier == nil {
		return 4.0
	}
	return *c.OutlierSpeedMultiplier
}

// GetSmoothingWindowFrames returns the smoothing_window_frames value or the default.
func (c *TuningConfig) GetSmoothingWindowFrames() int {
	if c.SmoothingWindowFrames == nil {
		return 5
	}
	return *c.SmoothingWindowFrames
}

// GetMinValidFraction returns the min_valid_fraction value or the default.
func (c *TuningConfig) GetMinValidFraction() float64 {
	if c.MinValidFraction == nil {
		return 0.6
	}
	return *c.MinValidFraction
}

// GetBounceMinSeparation returns the bounce_min_separation_frames value or the default.
func (c *TuningConfig) GetBounceMinSeparation() int {
	if c.BounceMinSeparation == nil {
		return 12
	}
	return *c.BounceMinSeparation
}

// GetBounceConfirmWindow returns the bounce_confirm_window_frames value or the default.
func (c *TuningConfig) GetBounceConfirmWindow() int {
	if c.BounceConfirmWindow == nil {
		return 6
	}
	return *c.BounceConfirmWindow
}

// GetReprojectionTolerance returns the reprojection_tolerance_m value or the default.
func (c *TuningConfig) GetReprojectionTolerance() float64 {
	if c.ReprojectionTolerance == nil {
		return 0.35
	}
	return *c.ReprojectionTolerance
}

// GetPlayMode returns the play_mode value or the default.
func (c *TuningConfig) GetPlayMode() court.PlayMode {
	if c.PlayMode == nil {
		return court.ModeSingles
	}
	return court.PlayMode(*c.PlayMode)
}

// AnalysisConfig materialises the tuning values into the fixed per-run
// configuration consumed by the pipeline.
func (c *TuningConfig) AnalysisConfig() track.AnalysisConfig {
	return track.AnalysisConfig{
		FrameRate:              c.GetFrameRate(),
		MaxGapFill:             c.GetMaxGapFillFrames(),
		OutlierSpeedMultiplier: c.GetOutlierSpeedMultiplier(),
		SmoothingWindow:        c.GetSmoothingWindowFrames(),
		MinValidFraction:       c.GetMinValidFraction(),
		BounceMinSeparation:    c.GetBounceMinSeparation(),
		BounceConfirmWindow:    c.GetBounceConfirmWindow(),
		ReprojectionToleranceM: c.GetReprojectionTolerance(),
		Mode:                   c.GetPlayMode(),
	}
}
