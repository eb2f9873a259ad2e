package histogram

import (
	"math"
)

// Bhattacharyya returns the Bhattacharyya coefficient of two histograms of
// equal length, the sum over all bins of the geometric mean of the
// corresponding bin probabilities.  It is 1 for identical distributions
// and 0 for distributions with disjoint support.
func Bhattacharyya(p, q Histogram) float64 {

	bc := float64(0)

	for i := range p {
		bc += math.Sqrt(p[i] * q[i])
	}

	return bc
}

// Hellinger returns the Hellinger distance between two normalized
// histograms of equal length.  The distance is symmetric, bounded in
// [0, 1], 0 only for identical distributions and 1 for disjoint support.
// The radicand is clamped at 0 to absorb floating point round-off from
// the coefficient sum.
func Hellinger(p, q Histogram) float64 {

	s := 1 - Bhattacharyya(p, q)

	if s < 0 {
		s = 0
	}

	return math.Sqrt(s)
}

// KernelWeight converts a Hellinger distance into a likelihood weight
// through a gaussian kernel exp(-d²/(2σ²)) with bandwidth sigma.  A
// perfect match gives weight 1 and the weight stays strictly positive for
// any distance below 1, so plausible particles are never zeroed outright.
func KernelWeight(d, sigma float64) float64 {
	return math.Exp(-(d * d) / (2 * sigma * sigma))
}
