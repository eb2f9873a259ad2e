// Package detect finds ball candidates in a frame with the Hough circle
// transform.  It backs the automatic target initialization and the
// detector-only tracking mode.
package detect

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// PingPongDiameterCM is the regulation ball diameter, used to convert
// pixel displacements into real world speed
const PingPongDiameterCM = 4.0

// Circle is a detected circle in pixel coordinates
type Circle struct {
	X, Y   float64
	Radius float64
}

// ROI returns the bounding square of the circle, used to seed the target
// signature histogram
func (c Circle) ROI() image.Rectangle {

	r := int(math.Ceil(c.Radius))

	return image.Rect(int(c.X)-r, int(c.Y)-r, int(c.X)+r, int(c.Y)+r)
}

// BallDetector finds ball shaped circles with a median blur followed by a
// Hough gradient transform
type BallDetector struct {
	// targetRadius is the expected ball radius in pixels
	targetRadius float64
	// radiusVariation widens the accepted radius range either side of
	// the target radius
	radiusVariation float64
	blurred         gocv.Mat
	circles         gocv.Mat
}

// NewBallDetector creates a detector expecting balls of the given radius
// in pixels
func NewBallDetector(targetRadius, radiusVariation float64) *BallDetector {
	return &BallDetector{
		targetRadius:    targetRadius,
		radiusVariation: radiusVariation,
		blurred:         gocv.NewMat(),
		circles:         gocv.NewMat(),
	}
}

// Close frees the working Mats
func (d *BallDetector) Close() error {

	d.blurred.Close()

	return d.circles.Close()
}

// Detect runs the circle transform over a grayscale Mat and returns all
// candidates within the accepted radius range
func (d *BallDetector) Detect(gray gocv.Mat) []Circle {

	gocv.MedianBlur(gray, &d.blurred, 5)

	gocv.HoughCirclesWithParams(d.blurred, &d.circles, gocv.HoughGradient,
		1, 20, 50, 30,
		int(d.targetRadius-d.radiusVariation),
		int(d.targetRadius+d.radiusVariation))

	if d.circles.Empty() {
		return nil
	}

	found := make([]Circle, 0, d.circles.Cols())

	for i := 0; i < d.circles.Cols(); i++ {
		v := d.circles.GetVecfAt(0, i)

		if len(v) < 3 {
			continue
		}

		found = append(found, Circle{
			X:      float64(v[0]),
			Y:      float64(v[1]),
			Radius: float64(v[2]),
		})
	}

	return found
}

// DetectImage runs the detector over a grayscale image buffer
func (d *BallDetector) DetectImage(img *image.Gray) ([]Circle, error) {

	mat, err := gocv.NewMatFromBytes(img.Bounds().Dy(), img.Bounds().Dx(),
		gocv.MatTypeCV8U, img.Pix)

	if err != nil {
		return nil, err
	}

	defer mat.Close()

	return d.Detect(mat), nil
}

// Best returns the candidate whose radius is closest to the expected ball
// radius, false when there are no candidates
func Best(circles []Circle, targetRadius float64) (Circle, bool) {

	if len(circles) == 0 {
		return Circle{}, false
	}

	best := circles[0]
	minDiff := math.Abs(best.Radius - targetRadius)

	for _, c := range circles[1:] {
		if diff := math.Abs(c.Radius - targetRadius); diff < minDiff {
			minDiff = diff
			best = c
		}
	}

	return best, true
}

// SpeedCMS converts a pixel displacement over dt seconds into centimeters
// per second, scaled by the detected ball radius.  A zero radius or
// non-positive dt gives 0.
func SpeedCMS(dx, dy, radiusPx, dt float64) float64 {

	if radiusPx <= 0 || dt <= 0 {
		return 0
	}

	cmPerPixel := PingPongDiameterCM / (2 * radiusPx)

	return math.Hypot(dx, dy) / dt * cmPerPixel
}
