package track

import (
	"testing"

	"github.com/courtside-data/rally.report/internal/court"
)

// cameraPixel maps a court position to the synthetic camera used across the
// package tests. The mapping is a plain scale-and-offset, which is a valid
// homography, so a calibration against it must reproduce it exactly.
func cameraPixel(c court.Point) PixelPoint {
	return PixelPoint{X: 80*c.X + 200, Y: 30*c.Y + 100}
}

// cameraKeypoints returns the full landmark set as seen by the synthetic
// camera, minus any landmarks listed in omit.
func cameraKeypoints(omit ...court.Landmark) KeypointSet {
	skip := make(map[court.Landmark]bool, len(omit))
	for _, lm := range omit {
		skip[lm] = true
	}
	ks := make(KeypointSet)
	for _, lm := range []court.Landmark{
		court.BaselineFarLeft, court.BaselineFarRight,
		court.BaselineNearLeft, court.BaselineNearRight,
		court.SinglesFarLeft, court.SinglesFarRight,
		court.SinglesNearLeft, court.SinglesNearRight,
		court.ServiceFarLeft, court.ServiceFarRight,
		court.ServiceNearLeft, court.ServiceNearRight,
		court.NetPostLeft, court.NetPostRight,
		court.CenterServiceFar, court.CenterServiceNear,
	} {
		if skip[lm] {
			continue
		}
		pos, ok := court.ReferencePosition(lm)
		if !ok {
			continue
		}
		ks[lm] = cameraPixel(pos)
	}
	return ks
}

// testTransform calibrates against the synthetic camera and fails the test
// if calibration does not succeed.
func testTransform(t *testing.T) *Transform {
	t.Helper()
	tr, err := Calibrate(cameraKeypoints(), 0.35)
	if err != nil {
		t.Fatalf("Calibrate against synthetic camera failed: %v", err)
	}
	return tr
}
