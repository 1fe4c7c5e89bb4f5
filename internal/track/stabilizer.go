package track

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/courtside-data/rally.report/internal/monitoring"
)

// Stabilizer turns a sparse, noisy per-frame detection sequence for one
// entity into a continuous Trajectory: single-frame spikes are suppressed
// and short gaps are interpolated. Residual jitter is low-pass filtered by
// the separate Smooth pass, which the pipeline applies exactly once;
// keeping it out of Stabilize means re-running Stabilize on its own output
// does not alter positions. Suppression and filling see the raw signal so
// genuine discontinuities stay visible.
type Stabilizer struct {
	cfg AnalysisConfig
}

// NewStabilizer returns a stabilizer for the given configuration. The
// configuration must already be validated.
func NewStabilizer(cfg AnalysisConfig) *Stabilizer {
	return &Stabilizer{cfg: cfg}
}

// Stabilize produces the trajectory for one entity over [start, end].
// raw maps frame index to the detected position; frames without a detection
// are absent. Returns an InsufficientTrackError when fewer than the
// configured fraction of frames end up with a valid position.
func (s *Stabilizer) Stabilize(entity EntityID, raw map[int]PixelPoint, start, end int) (*Trajectory, error) {
	if end < start {
		return nil, fmt.Errorf("stabilize %s: invalid range [%d, %d]", entity, start, end)
	}

	n := end - start + 1
	pos := make([]PixelPoint, n)
	valid := make([]bool, n)
	for frame, p := range raw {
		if frame < start || frame > end {
			continue
		}
		pos[frame-start] = p
		valid[frame-start] = true
	}

	// measured marks frames whose final position came straight from the
	// detector; suppression and filling clear it.
	measured := make([]bool, n)
	copy(measured, valid)

	dropped := s.suppressOutliers(pos, valid, measured)
	if dropped > 0 {
		monitoring.Logf("track: %s: suppressed %d spike detections", entity, dropped)
	}

	gaps := s.fillGaps(pos, valid, start)

	validCount := 0
	for _, v := range valid {
		if v {
			validCount++
		}
	}
	fraction := float64(validCount) / float64(n)
	if fraction < s.cfg.MinValidFraction {
		return nil, &InsufficientTrackError{Entity: entity, ValidFraction: fraction}
	}

	traj := &Trajectory{Entity: entity, Start: start, End: end, Gaps: gaps}
	for i := 0; i < n; i++ {
		if !valid[i] {
			continue
		}
		traj.Points = append(traj.Points, TrajectoryPoint{
			Frame:        start + i,
			Pos:          pos[i],
			Interpolated: !measured[i],
		})
	}
	return traj, nil
}

// suppressOutliers invalidates single-frame positions whose displacement
// from both neighbouring detections implies a speed beyond the configured
// multiple of the recent median per-frame step. Returns the number dropped.
func (s *Stabilizer) suppressOutliers(pos []PixelPoint, valid, measured []bool) int {
	idx := validIndices(valid)
	if len(idx) < 3 {
		return 0
	}

	steps := make([]float64, 0, len(idx)-1)
	for k := 1; k < len(idx); k++ {
		i, j := idx[k-1], idx[k]
		steps = append(steps, pixelDist(pos[i], pos[j])/float64(j-i))
	}
	med := medianFloat(steps)
	if med <= 0 {
		return 0
	}
	threshold := s.cfg.OutlierSpeedMultiplier * med

	dropped := 0
	for k := 1; k < len(idx)-1; k++ {
		prev, cur, next := idx[k-1], idx[k], idx[k+1]
		inSpeed := pixelDist(pos[prev], pos[cur]) / float64(cur-prev)
		outSpeed := pixelDist(pos[cur], pos[next]) / float64(next-cur)
		if inSpeed > threshold && outSpeed > threshold {
			valid[cur] = false
			measured[cur] = false
			dropped++
		}
	}
	return dropped
}

// fillGaps interpolates runs of missing frames up to the configured bound.
// Interior gaps get a local curve fit through the nearest valid samples on
// both sides: quadratic when two support samples exist on each side (to
// capture trajectory curvature), linear otherwise. A short leading gap is
// backfilled from the first valid sample. Gaps longer than the bound are
// left unfilled and reported via the returned ranges.
func (s *Stabilizer) fillGaps(pos []PixelPoint, valid []bool, start int) []FrameRange {
	var gaps []FrameRange
	n := len(pos)

	i := 0
	for i < n {
		if valid[i] {
			i++
			continue
		}
		j := i
		for j < n && !valid[j] {
			j++
		}
		runLen := j - i

		switch {
		case runLen > s.cfg.MaxGapFill:
			gaps = append(gaps, FrameRange{Start: start + i, End: start + j - 1})
		case i == 0 && j < n:
			// Leading gap: no sample before it, backfill from the first
			// valid position.
			for k := i; k < j; k++ {
				pos[k] = pos[j]
				valid[k] = true
			}
		case j == n:
			// Trailing gap: nothing to anchor the far side, never guess.
			gaps = append(gaps, FrameRange{Start: start + i, End: start + j - 1})
		default:
			s.interpolateRun(pos, valid, i, j)
		}
		i = j
	}
	return gaps
}

// interpolateRun fills pos[i:j] using the valid samples around the run.
func (s *Stabilizer) interpolateRun(pos []PixelPoint, valid []bool, i, j int) {
	before := supportBefore(valid, i, 2)
	after := supportAfter(valid, j, 2)

	if len(before) >= 2 && len(after) >= 2 {
		support := append(append([]int{}, before...), after...)
		if s.quadraticFill(pos, support, i, j) {
			for k := i; k < j; k++ {
				valid[k] = true
			}
			return
		}
	}

	// Linear interpolation between the bounding samples.
	a, b := i-1, j
	pa, pb := pos[a], pos[b]
	span := float64(b - a)
	for k := i; k < j; k++ {
		t := float64(k-a) / span
		pos[k] = PixelPoint{
			X: pa.X + t*(pb.X-pa.X),
			Y: pa.Y + t*(pb.Y-pa.Y),
		}
		valid[k] = true
	}
}

// quadraticFill fits x(t) and y(t) quadratics through the support samples
// by least squares and evaluates them inside the run. Returns false when
// the system is ill-conditioned, in which case the caller falls back to a
// linear fill.
func (s *Stabilizer) quadraticFill(pos []PixelPoint, support []int, i, j int) bool {
	m := len(support)
	a := mat.NewDense(m, 3, nil)
	bx := mat.NewVecDense(m, nil)
	by := mat.NewVecDense(m, nil)

	// Centre t on the gap for conditioning.
	mid := float64(i+j-1) / 2
	for r, idx := range support {
		t := float64(idx) - mid
		a.Set(r, 0, 1)
		a.Set(r, 1, t)
		a.Set(r, 2, t*t)
		bx.SetVec(r, pos[idx].X)
		by.SetVec(r, pos[idx].Y)
	}

	var cx, cy mat.VecDense
	if err := cx.SolveVec(a, bx); err != nil {
		return false
	}
	if err := cy.SolveVec(a, by); err != nil {
		return false
	}

	for k := i; k < j; k++ {
		t := float64(k) - mid
		pos[k] = PixelPoint{
			X: cx.AtVec(0) + cx.AtVec(1)*t + cx.AtVec(2)*t*t,
			Y: cy.AtVec(0) + cy.AtVec(1)*t + cy.AtVec(2)*t*t,
		}
	}
	return true
}

// Smooth returns a copy of the trajectory with the configured moving
// average applied within each frame-contiguous run; an unfilled gap is a
// genuine discontinuity the filter must not bridge. The pass is applied
// once per run by the pipeline, after stabilization, never by Stabilize
// itself.
func (s *Stabilizer) Smooth(traj *Trajectory) *Trajectory {
	if traj == nil || s.cfg.SmoothingWindow <= 1 {
		return traj
	}

	out := &Trajectory{
		Entity: traj.Entity,
		Start:  traj.Start,
		End:    traj.End,
		Gaps:   traj.Gaps,
		Points: make([]TrajectoryPoint, len(traj.Points)),
	}
	copy(out.Points, traj.Points)

	i := 0
	for i < len(out.Points) {
		j := i + 1
		for j < len(out.Points) && out.Points[j].Frame == out.Points[j-1].Frame+1 {
			j++
		}
		xs := make([]float64, j-i)
		ys := make([]float64, j-i)
		for k := i; k < j; k++ {
			xs[k-i] = out.Points[k].Pos.X
			ys[k-i] = out.Points[k].Pos.Y
		}
		sx := movingAverage(xs, s.cfg.SmoothingWindow)
		sy := movingAverage(ys, s.cfg.SmoothingWindow)
		for k := i; k < j; k++ {
			out.Points[k].Pos = PixelPoint{X: sx[k-i], Y: sy[k-i]}
		}
		i = j
	}
	return out
}

func validIndices(valid []bool) []int {
	idx := make([]int, 0, len(valid))
	for i, v := range valid {
		if v {
			idx = append(idx, i)
		}
	}
	return idx
}

// supportBefore returns up to count valid indices immediately before i,
// in ascending order.
func supportBefore(valid []bool, i, count int) []int {
	var out []int
	for k := i - 1; k >= 0 && len(out) < count; k-- {
		if valid[k] {
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}

// supportAfter returns up to count valid indices at or after j.
func supportAfter(valid []bool, j, count int) []int {
	var out []int
	for k := j; k < len(valid) && len(out) < count; k++ {
		if valid[k] {
			out = append(out, k)
		}
	}
	return out
}

func pixelDist(a, b PixelPoint) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// medianFloat computes the median of a float64 slice without modifying it.
func medianFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// movingAverage returns the rolling mean of values with the given window,
// truncated at the edges. Used by the bounce detector on the vertical
// signal with the same discipline as pixel-domain smoothing.
func movingAverage(values []float64, window int) []float64 {
	if window <= 1 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	half := window / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(values)-1 {
			hi = len(values) - 1
		}
		var sum float64
		for k := lo; k <= hi; k++ {
			sum += values[k]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
