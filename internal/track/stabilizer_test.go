package track

import (
	"errors"
	"math"
	"testing"
)

// flatConfig disables smoothing so positional expectations stay exact.
func flatConfig() AnalysisConfig {
	cfg := DefaultAnalysisConfig()
	cfg.SmoothingWindow = 1
	return cfg
}

// linearRaw builds detections along a straight pixel line, skipping the
// listed frames.
func linearRaw(start, end int, skip ...int) map[int]PixelPoint {
	gaps := make(map[int]bool, len(skip))
	for _, f := range skip {
		gaps[f] = true
	}
	raw := make(map[int]PixelPoint)
	for f := start; f <= end; f++ {
		if gaps[f] {
			continue
		}
		raw[f] = PixelPoint{X: 10 * float64(f), Y: 5 * float64(f)}
	}
	return raw
}

func TestStabilizeFillsShortGap(t *testing.T) {
	stab := NewStabilizer(flatConfig())

	raw := linearRaw(0, 19, 8, 9, 10)
	traj, err := stab.Stabilize(BallEntity, raw, 0, 19)
	if err != nil {
		t.Fatalf("Stabilize failed: %v", err)
	}

	if len(traj.Points) != 20 {
		t.Fatalf("Expected all 20 frames filled, got %d points", len(traj.Points))
	}
	if len(traj.Gaps) != 0 {
		t.Errorf("Expected no reported gaps, got %v", traj.Gaps)
	}

	for _, f := range []int{8, 9, 10} {
		pos, ok := traj.At(f)
		if !ok {
			t.Fatalf("Expected interpolated position at frame %d", f)
		}
		want := PixelPoint{X: 10 * float64(f), Y: 5 * float64(f)}
		if math.Abs(pos.X-want.X) > 1e-6 || math.Abs(pos.Y-want.Y) > 1e-6 {
			t.Errorf("Frame %d: got (%v, %v), want (%v, %v)", f, pos.X, pos.Y, want.X, want.Y)
		}
	}

	for _, p := range traj.Points {
		filled := p.Frame >= 8 && p.Frame <= 10
		if p.Interpolated != filled {
			t.Errorf("Frame %d: Interpolated = %v, want %v", p.Frame, p.Interpolated, filled)
		}
	}
}

func TestStabilizeReportsLongGap(t *testing.T) {
	cfg := flatConfig()
	stab := NewStabilizer(cfg)

	// Gap of MaxGapFill+2 frames must stay unfilled.
	skip := make([]int, 0, cfg.MaxGapFill+2)
	for f := 5; f < 5+cfg.MaxGapFill+2; f++ {
		skip = append(skip, f)
	}
	raw := linearRaw(0, 29, skip...)

	traj, err := stab.Stabilize(BallEntity, raw, 0, 29)
	if err != nil {
		t.Fatalf("Stabilize failed: %v", err)
	}

	if len(traj.Gaps) != 1 {
		t.Fatalf("Expected 1 reported gap, got %v", traj.Gaps)
	}
	gap := traj.Gaps[0]
	if gap.Start != 5 || gap.End != 5+cfg.MaxGapFill+1 {
		t.Errorf("Gap = %+v, want [5, %d]", gap, 5+cfg.MaxGapFill+1)
	}

	for f := gap.Start; f <= gap.End; f++ {
		if _, ok := traj.At(f); ok {
			t.Errorf("Frame %d inside a long gap must have no position", f)
		}
		if !traj.InGap(f) {
			t.Errorf("InGap(%d) = false, want true", f)
		}
	}
}

func TestStabilizeSuppressesSpike(t *testing.T) {
	stab := NewStabilizer(flatConfig())

	raw := linearRaw(0, 19)
	raw[10] = PixelPoint{X: 2000, Y: -900} // Single-frame detector glitch

	traj, err := stab.Stabilize(BallEntity, raw, 0, 19)
	if err != nil {
		t.Fatalf("Stabilize failed: %v", err)
	}

	pos, ok := traj.At(10)
	if !ok {
		t.Fatal("Expected the suppressed frame to be refilled")
	}
	if math.Abs(pos.X-100) > 1e-6 || math.Abs(pos.Y-50) > 1e-6 {
		t.Errorf("Frame 10 = (%v, %v), want the interpolated (100, 50)", pos.X, pos.Y)
	}

	for _, p := range traj.Points {
		if p.Frame == 10 && !p.Interpolated {
			t.Error("Refilled spike frame must be marked interpolated")
		}
	}
}

func TestStabilizeKeepsConsistentJump(t *testing.T) {
	// Two consecutive displaced frames look like genuine fast motion, not
	// a spike; neither leg both enters and leaves at outlier speed for a
	// single frame, so nothing is suppressed.
	stab := NewStabilizer(flatConfig())

	raw := linearRaw(0, 19)
	raw[10] = PixelPoint{X: 500, Y: 300}
	raw[11] = PixelPoint{X: 510, Y: 305}

	traj, err := stab.Stabilize(BallEntity, raw, 0, 19)
	if err != nil {
		t.Fatalf("Stabilize failed: %v", err)
	}
	pos, ok := traj.At(11)
	if !ok {
		t.Fatal("Expected a position at frame 11")
	}
	if pos.X != 510 {
		t.Errorf("Frame 11 X = %v, want the measured 510", pos.X)
	}
}

func TestStabilizeLeadingAndTrailingGaps(t *testing.T) {
	stab := NewStabilizer(flatConfig())

	// Missing frames 0-2 (short leading gap) and 18-19 (trailing gap).
	raw := linearRaw(0, 19, 0, 1, 2, 18, 19)

	traj, err := stab.Stabilize(BallEntity, raw, 0, 19)
	if err != nil {
		t.Fatalf("Stabilize failed: %v", err)
	}

	// Leading gap backfills from the first detection.
	for f := 0; f <= 2; f++ {
		pos, ok := traj.At(f)
		if !ok {
			t.Fatalf("Expected backfilled position at frame %d", f)
		}
		if pos.X != 30 || pos.Y != 15 {
			t.Errorf("Frame %d = (%v, %v), want the backfilled (30, 15)", f, pos.X, pos.Y)
		}
	}

	// Trailing gap is never extrapolated.
	if len(traj.Gaps) != 1 || traj.Gaps[0].Start != 18 || traj.Gaps[0].End != 19 {
		t.Errorf("Expected trailing gap [18, 19], got %v", traj.Gaps)
	}
}

func TestStabilizeInsufficientTrack(t *testing.T) {
	stab := NewStabilizer(flatConfig())

	raw := map[int]PixelPoint{
		0: {X: 0, Y: 0},
		1: {X: 10, Y: 5},
	}
	_, err := stab.Stabilize(PlayerEntity(3), raw, 0, 49)
	if err == nil {
		t.Fatal("Expected insufficient track error")
	}
	if !errors.Is(err, ErrInsufficientTrack) {
		t.Errorf("Expected ErrInsufficientTrack, got %v", err)
	}
	var ite *InsufficientTrackError
	if !errors.As(err, &ite) {
		t.Fatalf("Expected InsufficientTrackError, got %T", err)
	}
	if ite.Entity != PlayerEntity(3) {
		t.Errorf("Error entity = %s, want player_3", ite.Entity)
	}
	if ite.ValidFraction >= DefaultAnalysisConfig().MinValidFraction {
		t.Errorf("Reported fraction %v should be below the threshold", ite.ValidFraction)
	}
}

// restabilize feeds a trajectory's positions back through the stabilizer.
func restabilize(t *testing.T, stab *Stabilizer, traj *Trajectory) *Trajectory {
	t.Helper()
	again := make(map[int]PixelPoint, len(traj.Points))
	for _, p := range traj.Points {
		again[p.Frame] = p.Pos
	}
	second, err := stab.Stabilize(traj.Entity, again, traj.Start, traj.End)
	if err != nil {
		t.Fatalf("Second pass failed: %v", err)
	}
	return second
}

func requireSamePositions(t *testing.T, first, second *Trajectory) {
	t.Helper()
	if len(second.Points) != len(first.Points) {
		t.Fatalf("Point count changed: %d vs %d", len(second.Points), len(first.Points))
	}
	for i := range first.Points {
		a, b := first.Points[i].Pos, second.Points[i].Pos
		if math.Abs(a.X-b.X) > 1e-9 || math.Abs(a.Y-b.Y) > 1e-9 {
			t.Errorf("Frame %d moved on re-run: (%v, %v) vs (%v, %v)",
				first.Points[i].Frame, a.X, a.Y, b.X, b.Y)
		}
	}
}

func TestStabilizeIdempotentDefaultConfig(t *testing.T) {
	stab := NewStabilizer(DefaultAnalysisConfig())

	// A gap-free track with mild sinusoidal jitter: nothing to fill or
	// suppress, so a second pass must return the positions unchanged.
	raw := make(map[int]PixelPoint, 40)
	for f := 0; f < 40; f++ {
		raw[f] = PixelPoint{X: 10 * float64(f), Y: 5*float64(f) + 2*math.Sin(float64(f))}
	}
	first, err := stab.Stabilize(BallEntity, raw, 0, 39)
	if err != nil {
		t.Fatalf("First pass failed: %v", err)
	}
	requireSamePositions(t, first, restabilize(t, stab, first))
}

func TestStabilizeIdempotentAfterGapFill(t *testing.T) {
	stab := NewStabilizer(DefaultAnalysisConfig())

	raw := linearRaw(0, 19, 5, 6)
	first, err := stab.Stabilize(BallEntity, raw, 0, 19)
	if err != nil {
		t.Fatalf("First pass failed: %v", err)
	}
	requireSamePositions(t, first, restabilize(t, stab, first))
}

func TestSmoothRespectsGaps(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	cfg.SmoothingWindow = 3
	stab := NewStabilizer(cfg)

	// Two frame-contiguous runs separated by an unfilled gap. The filter
	// must not average across the gap.
	traj := &Trajectory{
		Entity: BallEntity,
		Start:  0,
		End:    12,
		Gaps:   []FrameRange{{Start: 4, End: 9}},
		Points: []TrajectoryPoint{
			{Frame: 0, Pos: PixelPoint{X: 0, Y: 0}},
			{Frame: 1, Pos: PixelPoint{X: 1, Y: 10}},
			{Frame: 2, Pos: PixelPoint{X: 2, Y: 20}},
			{Frame: 3, Pos: PixelPoint{X: 3, Y: 30}},
			{Frame: 10, Pos: PixelPoint{X: 100, Y: 0}},
			{Frame: 11, Pos: PixelPoint{X: 101, Y: 10}},
			{Frame: 12, Pos: PixelPoint{X: 102, Y: 20}},
		},
	}

	got := stab.Smooth(traj)

	// First run, window 3 truncated at the edges.
	wantX := []float64{0.5, 1, 2, 2.5, 100.5, 101, 101.5}
	for i, w := range wantX {
		if math.Abs(got.Points[i].Pos.X-w) > 1e-9 {
			t.Errorf("Point %d X = %v, want %v", i, got.Points[i].Pos.X, w)
		}
	}
	// Last point of the first run must not see the second run.
	if got.Points[3].Pos.X > 3 {
		t.Error("Smoothing bridged the gap between runs")
	}

	// The input trajectory is left untouched.
	if traj.Points[1].Pos.X != 1 {
		t.Error("Smooth mutated its input trajectory")
	}
}

func TestSmoothWindowOneIsIdentity(t *testing.T) {
	stab := NewStabilizer(flatConfig())
	traj := &Trajectory{
		Entity: BallEntity,
		Points: []TrajectoryPoint{{Frame: 0, Pos: PixelPoint{X: 7, Y: 9}}},
	}
	if got := stab.Smooth(traj); got != traj {
		t.Error("Window 1 must return the trajectory unchanged")
	}
}

func TestStabilizeInvalidRange(t *testing.T) {
	stab := NewStabilizer(flatConfig())
	if _, err := stab.Stabilize(BallEntity, nil, 10, 5); err == nil {
		t.Error("Expected error for end < start")
	}
}

func TestMedianFloat(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{3}, 3},
		{"odd", []float64{5, 1, 3}, 3},
		{"even", []float64{4, 1, 3, 2}, 2.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := medianFloat(tc.values); got != tc.want {
				t.Errorf("medianFloat(%v) = %v, want %v", tc.values, got, tc.want)
			}
		})
	}
}

func TestMovingAverage(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	got := movingAverage(values, 3)

	want := []float64{1.5, 2, 3, 4, 4.5} // Truncated at the edges
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("movingAverage[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	same := movingAverage(values, 1)
	for i := range values {
		if same[i] != values[i] {
			t.Errorf("Window 1 must be identity, index %d changed", i)
		}
	}
}
