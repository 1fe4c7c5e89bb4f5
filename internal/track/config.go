package track

import (
	"fmt"

	"github.com/courtside-data/rally.report/internal/court"
)

// AnalysisConfig holds the fixed configuration for one analysis run.
// Tolerances default to values tuned on broadcast footage; none of them is
// authoritative and all are expected to be recalibrated per camera setup.
type AnalysisConfig struct {
	FrameRate              float64        // Frames per second of the source video
	MaxGapFill             int            // Longest run of missing frames to interpolate
	OutlierSpeedMultiplier float64        // Multiple of recent median step that flags a spike
	SmoothingWindow        int            // Moving-average window (frames), odd
	MinValidFraction       float64        // Minimum fraction of frames with a valid position
	BounceMinSeparation    int            // Minimum frames between two reported bounces
	BounceConfirmWindow    int            // Frames the post-bounce trend must persist
	ReprojectionToleranceM float64        // Calibration residual tolerance (metres)
	Mode                   court.PlayMode // Active play configuration for line calls
}

// DefaultAnalysisConfig returns the documented defaults. The 24 fps default
// matches the reference footage the thresholds were tuned against.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		FrameRate:              24.0,
		MaxGapFill:             5,
		OutlierSpeedMultiplier: 4.0,
		SmoothingWindow:        5,
		MinValidFraction:       0.6,
		BounceMinSeparation:    12,
		BounceConfirmWindow:    6,
		ReprojectionToleranceM: 0.35,
		Mode:                   court.ModeSingles,
	}
}

// Validate checks the configuration before any frame processing starts.
func (c AnalysisConfig) Validate() error {
	if c.FrameRate <= 0 {
		return &ConfigurationError{Field: "frame_rate", Detail: fmt.Sprintf("must be positive, got %v", c.FrameRate)}
	}
	if c.MaxGapFill < 0 {
		return &ConfigurationError{Field: "max_gap_fill", Detail: fmt.Sprintf("must be non-negative, got %d", c.MaxGapFill)}
	}
	if c.OutlierSpeedMultiplier <= 1 {
		return &ConfigurationError{Field: "outlier_speed_multiplier", Detail: fmt.Sprintf("must exceed 1, got %v", c.OutlierSpeedMultiplier)}
	}
	if c.SmoothingWindow < 1 || c.SmoothingWindow%2 == 0 {
		return &ConfigurationError{Field: "smoothing_window", Detail: fmt.Sprintf("must be odd and at least 1, got %d", c.SmoothingWindow)}
	}
	if c.MinValidFraction < 0 || c.MinValidFraction > 1 {
		return &ConfigurationError{Field: "min_valid_fraction", Detail: fmt.Sprintf("must be in [0, 1], got %v", c.MinValidFraction)}
	}
	if c.BounceMinSeparation < 1 {
		return &ConfigurationError{Field: "bounce_min_separation", Detail: fmt.Sprintf("must be at least 1, got %d", c.BounceMinSeparation)}
	}
	if c.BounceConfirmWindow < 1 {
		return &ConfigurationError{Field: "bounce_confirm_window", Detail: fmt.Sprintf("must be at least 1, got %d", c.BounceConfirmWindow)}
	}
	if c.ReprojectionToleranceM <= 0 {
		return &ConfigurationError{Field: "reprojection_tolerance_m", Detail: fmt.Sprintf("must be positive, got %v", c.ReprojectionToleranceM)}
	}
	if !c.Mode.Valid() {
		return &ConfigurationError{Field: "play_mode", Detail: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	return nil
}

// FrameSeconds converts a frame-index delta to elapsed seconds.
func (c AnalysisConfig) FrameSeconds(frames int) float64 {
	return float64(frames) / c.FrameRate
}
