package particle

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Resample regenerates the set by systematic resampling, drawing the
// single random offset from the given generator.  See Systematic for the
// scheme itself.
func (s *Set) Resample(rng *rand.Rand) {
	s.Systematic(rng.Float64() / float64(len(s.particles)))
}

// Systematic performs systematic resampling with the given offset in
// [0, 1/N): N draw points spaced 1/N apart are walked along the
// cumulative weight distribution and each selects the covering particle.
// The scheme has lower sampling variance than independent multinomial
// draws and, for a fixed offset over a fixed weight vector, selects a
// fixed index sequence, which keeps resampling reproducible.  Output
// weights are reset to 1/N.
func (s *Set) Systematic(offset float64) {

	idx := s.systematicIndices(offset)

	copy(s.prev, s.particles)

	w := 1 / float64(len(s.particles))

	for i, j := range idx {
		s.particles[i].State = s.prev[j].State
		s.particles[i].Weight = w
	}
}

// systematicIndices returns the slot index selected by each of the N
// evenly spaced draw points.  The cursor is clamped at the last slot so
// floating point residue in the cumulative sum can never push a draw
// point past the final partition.
func (s *Set) systematicIndices(offset float64) []int {

	n := len(s.particles)

	for i := range s.particles {
		s.cum[i] = s.particles[i].Weight
	}

	floats.CumSum(s.cum, s.cum)

	idx := make([]int, n)
	j := 0

	for i := 0; i < n; i++ {
		u := offset + float64(i)/float64(n)

		for j < n-1 && s.cum[j] < u {
			j++
		}

		idx[i] = j
	}

	return idx
}
