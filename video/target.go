package video

import (
	"fmt"
	"image"

	"github.com/pongvision/condense/histogram"
)

// TargetFromROI builds the immutable target signature histogram from the
// chosen region of interest of a frame.  The region must intersect the
// frame bounds.
func TargetFromROI(img *image.Gray, roi image.Rectangle, bins int) (histogram.Histogram, error) {

	h := histogram.New(bins)

	if n := histogram.BuildRegion(img, roi, h); n == 0 {
		return nil, fmt.Errorf("region of interest %v lies outside the frame %v",
			roi, img.Bounds())
	}

	return h, nil
}
