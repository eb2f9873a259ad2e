package histogram

import (
	"image"

	"gonum.org/v1/gonum/floats"
)

// Histogram is a fixed length vector of non-negative bin values.  After
// normalization the bins form a discrete probability distribution summing
// to 1.  A zero vector means "no signal" and is left untouched by
// Normalize so callers can detect it.
type Histogram []float64

// New returns an empty histogram with the given number of bins
func New(bins int) Histogram {
	return make(Histogram, bins)
}

// Clone returns an independent copy of the histogram
func (h Histogram) Clone() Histogram {
	c := make(Histogram, len(h))
	copy(c, h)
	return c
}

// Sum returns the total mass over all bins
func (h Histogram) Sum() float64 {
	return floats.Sum(h)
}

// Zero resets every bin to 0
func (h Histogram) Zero() {
	for i := range h {
		h[i] = 0
	}
}

// Normalize scales the bins so they sum to 1.  A histogram with zero total
// mass is left unchanged.
func (h Histogram) Normalize() {
	sum := floats.Sum(h)

	if sum <= 0 {
		return
	}

	floats.Scale(1/sum, h)
}

// BuildRegion bins the pixels of the given rectangle of a grayscale image
// into dst and normalizes the result to a probability distribution.  The
// rectangle is first clipped to the image bounds and normalization divides
// by the clipped pixel count, so a partially visible region keeps its
// distribution shape.  A rectangle with zero visible area produces the
// zero vector.  It returns the number of pixels binned.
//
// Intensities are mapped to bins by uniform partition of the 0-255 value
// range into len(dst) bins.
func BuildRegion(img *image.Gray, rect image.Rectangle, dst Histogram) int {

	dst.Zero()

	r := rect.Intersect(img.Bounds())

	if r.Empty() {
		return 0
	}

	bins := len(dst)

	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[(y-img.Rect.Min.Y)*img.Stride+(r.Min.X-img.Rect.Min.X):]

		for x := 0; x < r.Dx(); x++ {
			dst[int(row[x])*bins/256]++
		}
	}

	n := r.Dx() * r.Dy()
	floats.Scale(1/float64(n), dst)

	return n
}
