package particle

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// State is the continuous state of a single particle on the image plane,
// position in pixels and velocity in pixels per second
type State struct {
	X, Y   float64
	VX, VY float64
}

// Particle couples a state with its non-negative likelihood weight
type Particle struct {
	State  State
	Weight float64
}

// Set is a fixed capacity arena of particles representing the belief
// distribution.  The particle count is constant for the lifetime of the
// set and every cycle mutates the slots in place, so there is no per
// cycle allocation and weighing workers can write disjoint slots without
// locking.
type Set struct {
	particles []Particle
	// prev holds the pre-resampling particles during slot remapping
	prev []Particle
	// cum is scratch space for the cumulative weight distribution
	cum []float64
}

// NewSet creates a set of n particles with equal weights and zero states
func NewSet(n int) *Set {

	s := &Set{
		particles: make([]Particle, n),
		prev:      make([]Particle, n),
		cum:       make([]float64, n),
	}

	s.ResetWeights()

	return s
}

// Clone returns an independent copy of the set, used to hand a stable
// snapshot to renderers while the original keeps cycling
func (s *Set) Clone() *Set {

	c := NewSet(len(s.particles))
	copy(c.particles, s.particles)

	return c
}

// Len returns the particle count
func (s *Set) Len() int {
	return len(s.particles)
}

// At returns the particle in slot i
func (s *Set) At(i int) *Particle {
	return &s.particles[i]
}

// SetWeight writes the weight of slot i.  Concurrent writers are safe as
// long as each writes a different slot.
func (s *Set) SetWeight(i int, w float64) {
	s.particles[i].Weight = w
}

// ResetWeights sets every weight to 1/N
func (s *Set) ResetWeights() {

	w := 1 / float64(len(s.particles))

	for i := range s.particles {
		s.particles[i].Weight = w
	}
}

// InitGaussian scatters the particles around the given center state with
// gaussian position and velocity spread, and resets weights to 1/N.
// Randomness comes from the injected source so initialization is
// reproducible.
func (s *Set) InitGaussian(center State, posSigma, velSigma float64, src rand.Source) {

	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	for i := range s.particles {
		s.particles[i].State = State{
			X:  center.X + norm.Rand()*posSigma,
			Y:  center.Y + norm.Rand()*posSigma,
			VX: center.VX + norm.Rand()*velSigma,
			VY: center.VY + norm.Rand()*velSigma,
		}
	}

	s.ResetWeights()
}

// WeightSum returns the total unnormalized weight mass
func (s *Set) WeightSum() float64 {

	sum := float64(0)

	for i := range s.particles {
		sum += s.particles[i].Weight
	}

	return sum
}

// Normalize scales the weights so they sum to 1 and returns the
// pre-normalization sum.  The caller checks the returned sum against its
// degeneracy threshold; a sum of 0 leaves the weights untouched.
func (s *Set) Normalize() float64 {

	sum := s.WeightSum()

	if sum <= 0 {
		return sum
	}

	for i := range s.particles {
		s.particles[i].Weight /= sum
	}

	return sum
}

// ESS returns the effective sample size 1/Σw² of the normalized weight
// set.  Values near N mean the weights are spread evenly, values near 1
// mean a single particle carries all the mass.
func (s *Set) ESS() float64 {

	sq := float64(0)

	for i := range s.particles {
		w := s.particles[i].Weight
		sq += w * w
	}

	if sq == 0 {
		return 0
	}

	return 1 / sq
}

// MeanState returns the weight-averaged state of the set.  It must be
// called on the normalized weighted set, before resampling resets the
// weights.
func (s *Set) MeanState() State {

	var m State

	for i := range s.particles {
		p := &s.particles[i]
		m.X += p.Weight * p.State.X
		m.Y += p.Weight * p.State.Y
		m.VX += p.Weight * p.State.VX
		m.VY += p.Weight * p.State.VY
	}

	return m
}

// PositionSpread returns the weighted RMS deviation of particle positions
// from the given mean, a scalar uncertainty for the position estimate
func (s *Set) PositionSpread(mean State) float64 {

	v := float64(0)

	for i := range s.particles {
		p := &s.particles[i]
		dx := p.State.X - mean.X
		dy := p.State.Y - mean.Y
		v += p.Weight * (dx*dx + dy*dy)
	}

	return math.Sqrt(v)
}
