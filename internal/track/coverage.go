package track

import (
	"sort"

	"github.com/courtside-data/rally.report/internal/court"
)

// Coverage computes a player's covered area and distance over a frame
// window. Covered area is the convex hull of the court-plane positions
// sampled inside the window; distance is the kinematic cumulative distance
// restricted to the same window. The computation is pure: it can be re-run
// over any window without side effects.
func Coverage(entity EntityID, samples []KinematicSample, window FrameRange) CoverageReport {
	var pts []court.Point
	for _, s := range samples {
		if window.Contains(s.Frame) {
			pts = append(pts, s.Position)
		}
	}
	return CoverageReport{
		Entity:      entity,
		Window:      window,
		AreaM2:      hullArea(convexHull(pts)),
		DistanceM:   DistanceBetween(samples, window.Start, window.End),
		SampleTally: len(pts),
	}
}

// convexHull returns the convex hull of the points in counter-clockwise
// order (Andrew's monotone chain). Fewer than three distinct points give a
// degenerate hull with zero area.
func convexHull(points []court.Point) []court.Point {
	if len(points) < 3 {
		return points
	}
	pts := make([]court.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	var lower []court.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []court.Point
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// cross returns the z-component of (b-a) x (c-a).
func cross(a, b, c court.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// hullArea computes the polygon area by the shoelace formula.
func hullArea(hull []court.Point) float64 {
	if len(hull) < 3 {
		return 0
	}
	area := 0.0
	for i := range hull {
		j := (i + 1) % len(hull)
		area += hull[i].X*hull[j].Y - hull[j].X*hull[i].Y
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}
