// Package court holds the fixed real-world geometry of a regulation tennis
// court and the unit conversions shared by every analytics component.
//
// Court-plane coordinates are expressed in metres with the origin at the
// left doubles corner of the far baseline, X increasing across the court
// and Y increasing towards the near baseline. The playing surface therefore
// spans X in [0, DoublesWidth] and Y in [0, Length].
package court

import "math"

// Regulation court dimensions in metres.
const (
	SinglesWidth   = 8.23
	DoublesWidth   = 10.97
	HalfLength     = 11.885
	Length         = 2 * HalfLength
	ServiceFromNet = 6.40
	AlleyWidth     = (DoublesWidth - SinglesWidth) / 2
)

// Point is a position on the court plane in metres.
type Point struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance to q in metres.
func (p Point) Distance(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// PlayMode selects which sidelines bound the active playing area.
type PlayMode string

const (
	ModeSingles PlayMode = "singles"
	ModeDoubles PlayMode = "doubles"
)

// Valid reports whether the mode is one of the known play modes.
func (m PlayMode) Valid() bool {
	return m == ModeSingles || m == ModeDoubles
}

// Bounds returns the boundary lines of the active playing area for the mode:
// left and right sidelines (X) and the two baselines (Y).
func Bounds(mode PlayMode) (minX, maxX, minY, maxY float64) {
	if mode == ModeSingles {
		return AlleyWidth, AlleyWidth + SinglesWidth, 0, Length
	}
	return 0, DoublesWidth, 0, Length
}

// Contains reports whether p lies within the playing area for the mode.
// A point exactly on a boundary line counts as in, matching the rules.
func Contains(mode PlayMode, p Point) bool {
	minX, maxX, minY, maxY := Bounds(mode)
	return p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY
}

// BoundaryMargin returns the unsigned distance from p to the nearest
// boundary line of the active playing area. The margin is zero for a point
// exactly on a line, whether the point is in or out.
func BoundaryMargin(mode PlayMode, p Point) float64 {
	minX, maxX, minY, maxY := Bounds(mode)
	m := math.Abs(p.X - minX)
	if d := math.Abs(maxX - p.X); d < m {
		m = d
	}
	if d := math.Abs(p.Y - minY); d < m {
		m = d
	}
	if d := math.Abs(maxY - p.Y); d < m {
		m = d
	}
	return m
}

// Landmark names a fixed reference point on the court used for calibration.
type Landmark string

const (
	BaselineFarLeft    Landmark = "baseline_far_left"
	BaselineFarRight   Landmark = "baseline_far_right"
	BaselineNearLeft   Landmark = "baseline_near_left"
	BaselineNearRight  Landmark = "baseline_near_right"
	SinglesFarLeft     Landmark = "singles_far_left"
	SinglesFarRight    Landmark = "singles_far_right"
	SinglesNearLeft    Landmark = "singles_near_left"
	SinglesNearRight   Landmark = "singles_near_right"
	ServiceFarLeft     Landmark = "service_far_left"
	ServiceFarRight    Landmark = "service_far_right"
	ServiceNearLeft    Landmark = "service_near_left"
	ServiceNearRight   Landmark = "service_near_right"
	NetPostLeft        Landmark = "net_post_left"
	NetPostRight       Landmark = "net_post_right"
	CenterServiceFar   Landmark = "center_service_far"
	CenterServiceNear  Landmark = "center_service_near"
)

// RequiredLandmarks are the landmarks that must be present for calibration.
// The four doubles baseline corners span the full court extent and anchor
// the projective fit; every other landmark refines it.
var RequiredLandmarks = []Landmark{
	BaselineFarLeft,
	BaselineFarRight,
	BaselineNearLeft,
	BaselineNearRight,
}

// referencePositions maps each landmark to its court-plane position.
var referencePositions = map[Landmark]Point{
	BaselineFarLeft:   {X: 0, Y: 0},
	BaselineFarRight:  {X: DoublesWidth, Y: 0},
	BaselineNearLeft:  {X: 0, Y: Length},
	BaselineNearRight: {X: DoublesWidth, Y: Length},

	SinglesFarLeft:   {X: AlleyWidth, Y: 0},
	SinglesFarRight:  {X: AlleyWidth + SinglesWidth, Y: 0},
	SinglesNearLeft:  {X: AlleyWidth, Y: Length},
	SinglesNearRight: {X: AlleyWidth + SinglesWidth, Y: Length},

	ServiceFarLeft:   {X: AlleyWidth, Y: HalfLength - ServiceFromNet},
	ServiceFarRight:  {X: AlleyWidth + SinglesWidth, Y: HalfLength - ServiceFromNet},
	ServiceNearLeft:  {X: AlleyWidth, Y: HalfLength + ServiceFromNet},
	ServiceNearRight: {X: AlleyWidth + SinglesWidth, Y: HalfLength + ServiceFromNet},

	NetPostLeft:  {X: 0, Y: HalfLength},
	NetPostRight: {X: DoublesWidth, Y: HalfLength},

	CenterServiceFar:  {X: DoublesWidth / 2, Y: HalfLength - ServiceFromNet},
	CenterServiceNear: {X: DoublesWidth / 2, Y: HalfLength + ServiceFromNet},
}

// ReferencePosition returns the court-plane position of a landmark, and
// whether the landmark name is known.
func ReferencePosition(lm Landmark) (Point, bool) {
	p, ok := referencePositions[lm]
	return p, ok
}
