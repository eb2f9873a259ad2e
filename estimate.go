package condense

import (
	"math"
	"time"
)

// TrackEstimate is the per frame output record of the filter
type TrackEstimate struct {
	// FrameIndex is the index of the frame the estimate belongs to
	FrameIndex int
	// PTS is the presentation timestamp of that frame
	PTS time.Duration
	// X and Y are the estimated position in pixels, the weighted mean of
	// the particle set
	X, Y float64
	// VX and VY are the estimated velocity in pixels per second
	VX, VY float64
	// Uncertainty is the weighted RMS deviation of particle positions
	// from the estimate, in pixels
	Uncertainty float64
	// ESS is the effective sample size of the weight set before
	// resampling
	ESS float64
	// Degraded marks a predict-only cycle where the frame could not be
	// weighed, such as a decode failure
	Degraded bool
	// Reinitialized marks a cycle where filter degeneracy forced a
	// reseeding of the particle set around the last good estimate
	Reinitialized bool
	// TrackLost marks that the configured number of consecutive
	// degenerate cycles was exceeded
	TrackLost bool
}

// Speed returns the estimated speed in pixels per second
func (e TrackEstimate) Speed() float64 {
	return math.Hypot(e.VX, e.VY)
}
