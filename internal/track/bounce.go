package track

import (
	"sort"

	"github.com/courtside-data/rally.report/internal/court"
	"github.com/courtside-data/rally.report/internal/monitoring"
)

// ballPhase is the ball's flight state while scanning its vertical signal.
type ballPhase int

const (
	phaseFlying ballPhase = iota
	phaseBouncing
	phaseSettled
)

// phaseTransition advances the flight state. descending reports the sign of
// the vertical velocity; atMinimum reports a confirmed local minimum of the
// height signal at the current frame. The transitions are deliberately
// explicit so sign-change handling is testable without a full-video run.
func phaseTransition(phase ballPhase, descending, atMinimum, atEnd bool) ballPhase {
	switch phase {
	case phaseFlying:
		if atMinimum {
			return phaseBouncing
		}
		if atEnd && descending {
			return phaseSettled
		}
		return phaseFlying
	case phaseBouncing:
		if atEnd {
			return phaseSettled
		}
		return phaseFlying
	default:
		return phaseSettled
	}
}

// BounceJudge detects discrete ball bounces from the ball trajectory and
// classifies each against the court boundaries.
type BounceJudge struct {
	cfg       AnalysisConfig
	transform *Transform
}

// NewBounceJudge returns a judge bound to the run's transform.
func NewBounceJudge(cfg AnalysisConfig, transform *Transform) *BounceJudge {
	return &BounceJudge{cfg: cfg, transform: transform}
}

// Detect scans the ball trajectory's height signal for bounces and returns
// the classified events in frame order. The height proxy is the negated
// image-plane vertical of the stabilized ball position, so a bounce is a
// local minimum of the signal. Candidate minima closer together than the
// configured separation collapse to the window's global minimum, so one
// physical bounce is never double-counted.
func (j *BounceJudge) Detect(traj *Trajectory) []BounceEvent {
	if traj == nil || len(traj.Points) < 3 {
		return nil
	}
	pts := traj.Points

	height := make([]float64, len(pts))
	for i, p := range pts {
		height[i] = -p.Pos.Y // Image y grows downward
	}
	smoothed := movingAverage(height, j.cfg.SmoothingWindow)

	delta := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		delta[i] = smoothed[i] - smoothed[i-1]
	}

	candidates := j.candidateMinima(smoothed, delta)
	minima := j.mergeCandidates(candidates, smoothed)

	minimumAt := make(map[int]bool, len(minima))
	for _, i := range minima {
		minimumAt[i] = true
	}

	var events []BounceEvent
	phase := phaseFlying
	for i := 1; i < len(pts); i++ {
		atEnd := i == len(pts)-1
		descending := delta[i] < 0
		phase = phaseTransition(phase, descending, minimumAt[i], atEnd)
		if phase == phaseBouncing {
			events = append(events, j.classify(traj, pts[i]))
		}
	}
	if phase == phaseSettled {
		monitoring.Logf("bounce: %s: trajectory ended settled after %d bounce(s)", traj.Entity, len(events))
	}
	return events
}

// candidateMinima returns point indices where the vertical velocity flips
// from downward to upward and the upward trend persists through the
// confirmation window. A momentary sign flip from detection noise does not
// survive the persistence check.
func (j *BounceJudge) candidateMinima(smoothed, delta []float64) []int {
	var out []int
	n := len(smoothed)
	for i := 1; i < n-1; i++ {
		if !(delta[i] < 0 && delta[i+1] >= 0) {
			continue
		}
		lookahead := j.cfg.BounceConfirmWindow
		if i+lookahead > n-1 {
			lookahead = n - 1 - i
		}
		if lookahead == 0 {
			continue
		}
		ascending := 0
		for k := i + 1; k <= i+lookahead; k++ {
			if delta[k] >= 0 {
				ascending++
			}
		}
		if ascending*2 > lookahead {
			out = append(out, i)
		}
	}
	return out
}

// mergeCandidates collapses candidate minima within the minimum separation
// window to the single global minimum of that window.
func (j *BounceJudge) mergeCandidates(candidates []int, smoothed []float64) []int {
	if len(candidates) == 0 {
		return nil
	}
	sort.Ints(candidates)

	var out []int
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c-best < j.cfg.BounceMinSeparation {
			if smoothed[c] < smoothed[best] {
				best = c
			}
			continue
		}
		out = append(out, best)
		best = c
	}
	out = append(out, best)

	// Enforce separation between the merged winners as well.
	filtered := out[:1]
	for _, c := range out[1:] {
		if c-filtered[len(filtered)-1] >= j.cfg.BounceMinSeparation {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// classify produces the BounceEvent for a confirmed minimum. A bounce whose
// surrounding window touches an unfilled trajectory gap cannot be trusted
// for a line call and is reported undetermined rather than guessed.
func (j *BounceJudge) classify(traj *Trajectory, pt TrajectoryPoint) BounceEvent {
	pos := j.transform.PixelToCourt(pt.Pos)
	ev := BounceEvent{Frame: pt.Frame, Position: pos}

	for f := pt.Frame - j.cfg.BounceConfirmWindow; f <= pt.Frame+j.cfg.BounceConfirmWindow; f++ {
		if traj.InGap(f) {
			ev.Verdict = VerdictUndetermined
			return ev
		}
	}

	ev.MarginM = court.BoundaryMargin(j.cfg.Mode, pos)
	if court.Contains(j.cfg.Mode, pos) {
		ev.Verdict = VerdictIn
	} else {
		ev.Verdict = VerdictOut
	}
	return ev
}
