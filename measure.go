package condense

import (
	"image"
	"math"

	"github.com/pongvision/condense/histogram"
	"github.com/pongvision/condense/particle"
)

// measureRect builds the measurement rectangle of configured size
// centered at the particle position, rounded to pixel coordinates
func (f *Filter) measureRect(st particle.State) image.Rectangle {

	cx := int(math.Round(st.X))
	cy := int(math.Round(st.Y))

	minX := cx - f.cfg.RectWidth/2
	minY := cy - f.cfg.RectHeight/2

	return image.Rect(minX, minY, minX+f.cfg.RectWidth, minY+f.cfg.RectHeight)
}

// weighOne computes the likelihood weight of a single particle against
// the given frame.  The particle histogram is built into the scratch
// buffer, clipped to the frame bounds; a measurement rectangle with no
// visible area weighs exactly 0.
func (f *Filter) weighOne(img *image.Gray, st particle.State, scratch histogram.Histogram) float64 {

	if n := histogram.BuildRegion(img, f.measureRect(st), scratch); n == 0 {
		return 0
	}

	d := histogram.Hellinger(f.target, scratch)

	return histogram.KernelWeight(d, f.cfg.Bandwidth)
}
