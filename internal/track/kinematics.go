package track

import (
	"github.com/courtside-data/rally.report/internal/court"
)

// Kinematics converts a stabilized pixel trajectory into real-world speed
// and distance through the shared court transform.
type Kinematics struct {
	cfg       AnalysisConfig
	transform *Transform
}

// NewKinematics returns a kinematics engine bound to the run's transform.
func NewKinematics(cfg AnalysisConfig, transform *Transform) *Kinematics {
	return &Kinematics{cfg: cfg, transform: transform}
}

// Samples derives one KinematicSample per consecutive trajectory pair.
// Court-plane positions are smoothed with the same window discipline as the
// pixel-domain filter, so transform nonlinearity near the image edges is
// not amplified into speed spikes. A trajectory with fewer than two points
// yields an empty sequence.
func (k *Kinematics) Samples(traj *Trajectory) []KinematicSample {
	if traj == nil || len(traj.Points) < 2 {
		return nil
	}

	courtPos := k.courtPositions(traj)

	samples := make([]KinematicSample, 0, len(traj.Points)-1)
	cum := 0.0
	for i := 1; i < len(traj.Points); i++ {
		df := traj.Points[i].Frame - traj.Points[i-1].Frame
		if df <= 0 {
			continue
		}
		step := courtPos[i-1].Distance(courtPos[i])
		cum += step
		samples = append(samples, KinematicSample{
			Frame:        traj.Points[i].Frame,
			Position:     courtPos[i],
			SpeedMps:     step / k.cfg.FrameSeconds(df),
			CumDistanceM: cum,
		})
	}
	return samples
}

// courtPositions maps every trajectory point to court coordinates and
// smooths each contiguous run in the court-plane domain.
func (k *Kinematics) courtPositions(traj *Trajectory) []court.Point {
	pts := traj.Points
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		c := k.transform.PixelToCourt(p.Pos)
		xs[i] = c.X
		ys[i] = c.Y
	}

	out := make([]court.Point, len(pts))
	// Smooth each run of frame-contiguous points independently; a gap is a
	// genuine discontinuity that the filter must not bridge.
	i := 0
	for i < len(pts) {
		j := i + 1
		for j < len(pts) && pts[j].Frame == pts[j-1].Frame+1 {
			j++
		}
		sx := movingAverage(xs[i:j], k.cfg.SmoothingWindow)
		sy := movingAverage(ys[i:j], k.cfg.SmoothingWindow)
		for m := i; m < j; m++ {
			out[m] = court.Point{X: sx[m-i], Y: sy[m-i]}
		}
		i = j
	}
	return out
}

// PeakSpeed returns the highest instantaneous speed among samples whose
// frame lies in [startFrame, endFrame]. The ball's shot speed is the peak
// over the flight segment between two consecutive ball events.
func PeakSpeed(samples []KinematicSample, startFrame, endFrame int) float64 {
	peak := 0.0
	for _, s := range samples {
		if s.Frame < startFrame || s.Frame > endFrame {
			continue
		}
		if s.SpeedMps > peak {
			peak = s.SpeedMps
		}
	}
	return peak
}

// DistanceBetween returns the cumulative court distance covered between two
// frames, using the nearest samples at or inside the window edges.
func DistanceBetween(samples []KinematicSample, startFrame, endFrame int) float64 {
	var first, last *KinematicSample
	for i := range samples {
		s := &samples[i]
		if s.Frame < startFrame || s.Frame > endFrame {
			continue
		}
		if first == nil {
			first = s
		}
		last = s
	}
	if first == nil || last == nil || first == last {
		return 0
	}
	return last.CumDistanceM - first.CumDistanceM
}

// SampleAt returns the sample at the exact frame, if present.
func SampleAt(samples []KinematicSample, frame int) (KinematicSample, bool) {
	for _, s := range samples {
		if s.Frame == frame {
			return s, true
		}
	}
	return KinematicSample{}, false
}
