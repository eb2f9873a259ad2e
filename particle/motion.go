package particle

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNonPositiveDT reports a zero or negative time step handed to the
// motion model, a duplicate or out of order timestamp upstream
var ErrNonPositiveDT = errors.New("motion model requires a positive time step")

// Motion propagates particle states under a constant velocity model with
// additive gaussian process noise.  Positional noise standard deviation
// scales with √dt so uncertainty accumulates over longer gaps between
// frames, such as dropped frames.
type Motion struct {
	// posSigma is the positional noise standard deviation accumulated
	// over one second, in pixels
	posSigma float64
	// velSigma is the per step velocity noise standard deviation in
	// pixels per second
	velSigma float64
	noise    distuv.Normal
}

// NewMotion creates a motion model drawing noise from the given seedable
// source
func NewMotion(posSigma, velSigma float64, src rand.Source) *Motion {
	return &Motion{
		posSigma: posSigma,
		velSigma: velSigma,
		noise:    distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// Predict advances every particle in the set by dt seconds.  dt must be
// positive: a zero or negative step leaves the set untouched and reports
// ErrNonPositiveDT so the caller decides how to treat the broken
// timestamp instead of propagating a corrupted state.
func (m *Motion) Predict(s *Set, dt float64) error {

	if dt <= 0 {
		return ErrNonPositiveDT
	}

	posStd := m.posSigma * math.Sqrt(dt)

	for i := range s.particles {
		st := &s.particles[i].State
		st.X += st.VX*dt + m.noise.Rand()*posStd
		st.Y += st.VY*dt + m.noise.Rand()*posStd
		st.VX += m.noise.Rand() * m.velSigma
		st.VY += m.noise.Rand() * m.velSigma
	}

	return nil
}
