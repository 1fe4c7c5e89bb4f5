// Package track implements the trajectory analytics core: detection ingest,
// track stabilization, court calibration, kinematics, bounce judgment,
// coverage, and report aggregation.
package track

import (
	"errors"
	"fmt"

	"github.com/courtside-data/rally.report/internal/court"
)

// EntityID identifies one tracked entity: the ball, or a player track.
type EntityID string

// BallEntity is the single ball track. At most one ball is tracked per video.
const BallEntity EntityID = "ball"

// PlayerEntity returns the entity ID for a detector-assigned player track id.
func PlayerEntity(trackID int) EntityID {
	return EntityID(fmt.Sprintf("player_%d", trackID))
}

// PixelPoint is a position in image coordinates.
type PixelPoint struct {
	X float64
	Y float64
}

// BoundingBox is a pixel rectangle from the detector, in image coordinates
// with the origin at the top-left of the frame.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Center returns the box centre, used as the ball's reference point.
func (b BoundingBox) Center() PixelPoint {
	return PixelPoint{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// FootPoint returns the bottom-centre of the box. Player positions are
// measured at the feet so that the court-plane mapping lands on the ground.
func (b BoundingBox) FootPoint() PixelPoint {
	return PixelPoint{X: (b.Left + b.Right) / 2, Y: b.Bottom}
}

// Height returns the box height in pixels.
func (b BoundingBox) Height() float64 {
	return b.Bottom - b.Top
}

// KeypointSet maps detected court landmarks to their pixel positions.
type KeypointSet map[court.Landmark]PixelPoint

// HasRequired reports whether every landmark needed for calibration is present.
func (k KeypointSet) HasRequired() bool {
	for _, lm := range court.RequiredLandmarks {
		if _, ok := k[lm]; !ok {
			return false
		}
	}
	return true
}

// FrameRange is an inclusive range of frame indices.
type FrameRange struct {
	Start int
	End   int
}

// Contains reports whether the frame index lies within the range.
func (r FrameRange) Contains(frame int) bool {
	return frame >= r.Start && frame <= r.End
}

// TrajectoryPoint is one stabilized position sample.
type TrajectoryPoint struct {
	Frame        int
	Pos          PixelPoint
	Interpolated bool
}

// Trajectory is the stabilized per-entity position sequence produced by the
// Stabilizer. Frame indices are strictly increasing with no duplicates.
// Gaps lists runs of frames that were too long to interpolate; no point
// exists for frames inside a gap.
type Trajectory struct {
	Entity EntityID
	Start  int
	End    int
	Points []TrajectoryPoint
	Gaps   []FrameRange
}

// At returns the position at the given frame, if one exists.
func (t *Trajectory) At(frame int) (PixelPoint, bool) {
	// Points are ordered by frame; binary search.
	lo, hi := 0, len(t.Points)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case t.Points[mid].Frame == frame:
			return t.Points[mid].Pos, true
		case t.Points[mid].Frame < frame:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return PixelPoint{}, false
}

// InGap reports whether the frame falls inside an unfilled gap.
func (t *Trajectory) InGap(frame int) bool {
	for _, g := range t.Gaps {
		if g.Contains(frame) {
			return true
		}
	}
	return false
}

// KinematicSample is a derived speed/distance sample for one entity at one
// frame. Position carries the court-plane location the sample was measured at.
type KinematicSample struct {
	Frame        int
	Position     court.Point
	SpeedMps     float64
	CumDistanceM float64
}

// Verdict is the in/out classification of a bounce.
type Verdict string

const (
	VerdictIn           Verdict = "in"
	VerdictOut          Verdict = "out"
	VerdictUndetermined Verdict = "undetermined"
)

// BounceEvent records one detected ball bounce. MarginM is the unsigned
// distance to the nearest boundary line, a confidence indicator for the
// verdict; it is zero for a ball exactly on the line (which is in).
type BounceEvent struct {
	Frame    int
	Position court.Point
	Verdict  Verdict
	MarginM  float64
}

// CoverageReport summarises a player's movement over a frame window.
type CoverageReport struct {
	Entity      EntityID
	Window      FrameRange
	AreaM2      float64
	DistanceM   float64
	SampleTally int
}

// ErrInsufficientTrack flags an entity whose detections are too sparse over
// the requested range to produce a trustworthy trajectory. Derived metrics
// for that entity are omitted; other entities are unaffected.
var ErrInsufficientTrack = errors.New("insufficient track")

// InsufficientTrackError wraps ErrInsufficientTrack with the entity and the
// observed valid fraction.
type InsufficientTrackError struct {
	Entity        EntityID
	ValidFraction float64
}

func (e *InsufficientTrackError) Error() string {
	return fmt.Sprintf("%s: %v (valid fraction %.2f)", e.Entity, ErrInsufficientTrack, e.ValidFraction)
}

func (e *InsufficientTrackError) Unwrap() error { return ErrInsufficientTrack }

// CalibrationError is fatal to the whole video's analysis: every downstream
// measurement depends on a verified transform.
type CalibrationError struct {
	Reason    string
	ResidualM float64
}

func (e *CalibrationError) Error() string {
	if e.ResidualM > 0 {
		return fmt.Sprintf("calibration failed: %s (residual %.3f m)", e.Reason, e.ResidualM)
	}
	return "calibration failed: " + e.Reason
}

// ConfigurationError reports invalid fixed configuration before any frame
// processing starts.
type ConfigurationError struct {
	Field  string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Detail)
}
