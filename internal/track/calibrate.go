package track

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/courtside-data/rally.report/internal/court"
	"github.com/courtside-data/rally.report/internal/monitoring"
)

// collinearTolerance is the minimum normalised perpendicular spread the
// detected keypoints must have off their best-fit line. Below it the
// correspondences cannot constrain a projective transform.
const collinearTolerance = 1e-3

// minTransformDeterminant rejects homographies that collapse the plane.
const minTransformDeterminant = 1e-12

// Transform is the verified projective mapping between image pixels and
// court-plane metres. It is computed once per calibration pass and shared
// read-only by every downstream component; no other component may assume a
// coordinate relationship outside these two methods.
type Transform struct {
	h    [9]float64 // Pixel -> court, row-major 3x3
	hinv [9]float64 // Court -> pixel
}

// PixelToCourt maps an image position to court-plane metres.
func (t *Transform) PixelToCourt(p PixelPoint) court.Point {
	x, y := applyHomography(t.h, p.X, p.Y)
	return court.Point{X: x, Y: y}
}

// CourtToPixel maps a court-plane position back to image pixels.
func (t *Transform) CourtToPixel(p court.Point) PixelPoint {
	x, y := applyHomography(t.hinv, p.X, p.Y)
	return PixelPoint{X: x, Y: y}
}

func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}

// Calibrate solves the pixel-to-court homography from one keypoint set and
// the known court geometry. All detected landmarks with a known reference
// position contribute to a least-squares fit; the result is validated by
// reprojecting every correspondence and checking the residual against
// toleranceM. A failed validation is fatal; no unverified transform is
// ever returned.
func Calibrate(keypoints KeypointSet, toleranceM float64) (*Transform, error) {
	if !keypoints.HasRequired() {
		return nil, &CalibrationError{Reason: "required court landmarks missing"}
	}

	type correspondence struct {
		px PixelPoint
		ct court.Point
	}
	var corr []correspondence
	for lm, px := range keypoints {
		ct, ok := court.ReferencePosition(lm)
		if !ok {
			monitoring.Logf("calibrate: ignoring unknown landmark %q", lm)
			continue
		}
		corr = append(corr, correspondence{px: px, ct: ct})
	}
	if len(corr) < 4 {
		return nil, &CalibrationError{Reason: "fewer than four usable correspondences"}
	}

	pixels := make([]PixelPoint, len(corr))
	for i, c := range corr {
		pixels[i] = c.px
	}
	if collinear(pixels) {
		return nil, &CalibrationError{Reason: "detected keypoints are collinear"}
	}

	// Direct linear transform: each correspondence contributes two rows of
	// the homogeneous system A h = 0; the fit is the right singular vector
	// of the smallest singular value.
	a := mat.NewDense(2*len(corr), 9, nil)
	for i, c := range corr {
		u, v := c.px.X, c.px.Y
		x, y := c.ct.X, c.ct.Y
		a.SetRow(2*i, []float64{u, v, 1, 0, 0, 0, -x * u, -x * v, -x})
		a.SetRow(2*i+1, []float64{0, 0, 0, u, v, 1, -y * u, -y * v, -y})
	}

	// Full SVD: with the minimum four correspondences the system is 8x9 and
	// the null vector only appears in the full V.
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, &CalibrationError{Reason: "homography factorization failed"}
	}
	var v mat.Dense
	svd.VTo(&v)

	var h [9]float64
	for i := 0; i < 9; i++ {
		h[i] = v.At(i, 8)
	}

	det := homographyDeterminant(h)
	if math.Abs(det) < minTransformDeterminant {
		return nil, &CalibrationError{Reason: "degenerate transform (non-invertible)"}
	}

	hinv, err := invertHomography(h)
	if err != nil {
		return nil, err
	}

	t := &Transform{h: h, hinv: hinv}

	// Validate by reprojecting every known court point.
	worst := 0.0
	for _, c := range corr {
		got := t.PixelToCourt(c.px)
		if r := got.Distance(c.ct); r > worst {
			worst = r
		}
	}
	if worst > toleranceM {
		return nil, &CalibrationError{Reason: "reprojection error exceeds tolerance", ResidualM: worst}
	}
	monitoring.Logf("calibrate: %d correspondences, worst residual %.3f m", len(corr), worst)
	return t, nil
}

// CalibrateFromSource calibrates against the first frame of the source that
// carries a complete keypoint set.
func CalibrateFromSource(src DetectionSource, toleranceM float64) (*Transform, error) {
	keypoints, err := ReferenceKeypoints(src)
	if err != nil {
		return nil, err
	}
	return Calibrate(keypoints, toleranceM)
}

// collinear reports whether the points lie on (or too near) a single line.
// It measures the maximum perpendicular distance from the centroid's
// principal axis, normalised by the point spread.
func collinear(points []PixelPoint) bool {
	n := float64(len(points))
	var mx, my float64
	for _, p := range points {
		mx += p.X
		my += p.Y
	}
	mx /= n
	my /= n

	// 2x2 covariance; smallest eigenvalue measures off-axis spread.
	var c00, c01, c11 float64
	for _, p := range points {
		dx, dy := p.X-mx, p.Y-my
		c00 += dx * dx
		c01 += dx * dy
		c11 += dy * dy
	}
	c00 /= n
	c01 /= n
	c11 /= n

	trace := c00 + c11
	if trace <= 0 {
		return true // All points coincide
	}
	det := c00*c11 - c01*c01
	disc := trace*trace - 4*det
	if disc < 0 {
		disc = 0
	}
	lambdaMin := (trace - math.Sqrt(disc)) / 2
	return lambdaMin/trace < collinearTolerance
}

func homographyDeterminant(h [9]float64) float64 {
	return h[0]*(h[4]*h[8]-h[5]*h[7]) -
		h[1]*(h[3]*h[8]-h[5]*h[6]) +
		h[2]*(h[3]*h[7]-h[4]*h[6])
}

// invertHomography computes the adjugate-based inverse of the 3x3 matrix.
func invertHomography(h [9]float64) ([9]float64, error) {
	det := homographyDeterminant(h)
	if math.Abs(det) < minTransformDeterminant {
		return [9]float64{}, &CalibrationError{Reason: "degenerate transform (non-invertible)"}
	}
	inv := [9]float64{
		h[4]*h[8] - h[5]*h[7], h[2]*h[7] - h[1]*h[8], h[1]*h[5] - h[2]*h[4],
		h[5]*h[6] - h[3]*h[8], h[0]*h[8] - h[2]*h[6], h[2]*h[3] - h[0]*h[5],
		h[3]*h[7] - h[4]*h[6], h[1]*h[6] - h[0]*h[7], h[0]*h[4] - h[1]*h[3],
	}
	for i := range inv {
		inv[i] /= det
	}
	return inv, nil
}
