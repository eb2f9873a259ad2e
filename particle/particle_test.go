package particle

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

// almostEqual checks if two float64 values are approximately equal
func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestNewSetEqualWeights(t *testing.T) {

	s := NewSet(40)

	if s.Len() != 40 {
		t.Fatalf("expected 40 particles, got %d", s.Len())
	}

	for i := 0; i < s.Len(); i++ {
		if !almostEqual(s.At(i).Weight, 1.0/40, 1e-12) {
			t.Errorf("particle %d: expected weight 1/40, got %f", i, s.At(i).Weight)
		}
	}
}

func TestInitGaussianScatter(t *testing.T) {

	s := NewSet(2000)
	center := State{X: 100, Y: 50, VX: 2, VY: -1}

	s.InitGaussian(center, 10, 0.5, rand.NewSource(7))

	var mx, my float64

	for i := 0; i < s.Len(); i++ {
		mx += s.At(i).State.X
		my += s.At(i).State.Y
	}

	mx /= float64(s.Len())
	my /= float64(s.Len())

	// sample mean of 2000 draws with sigma 10 stays within ~1px of center
	if !almostEqual(mx, center.X, 1.5) || !almostEqual(my, center.Y, 1.5) {
		t.Errorf("scatter not centered: mean (%f, %f), want near (%f, %f)",
			mx, my, center.X, center.Y)
	}

	if !almostEqual(s.WeightSum(), 1.0, 1e-9) {
		t.Errorf("expected weight sum 1 after init, got %f", s.WeightSum())
	}
}

func TestInitGaussianReproducible(t *testing.T) {

	a := NewSet(50)
	b := NewSet(50)

	a.InitGaussian(State{X: 10, Y: 20}, 5, 1, rand.NewSource(99))
	b.InitGaussian(State{X: 10, Y: 20}, 5, 1, rand.NewSource(99))

	for i := 0; i < a.Len(); i++ {
		if a.At(i).State != b.At(i).State {
			t.Fatalf("particle %d differs across identically seeded inits", i)
		}
	}
}

func TestNormalize(t *testing.T) {

	s := NewSet(5)

	raw := []float64{0.2, 0.8, 1.5, 0, 0.5}

	for i, w := range raw {
		s.SetWeight(i, w)
	}

	sum := s.Normalize()

	if !almostEqual(sum, 3.0, 1e-12) {
		t.Errorf("expected pre-normalization sum 3.0, got %f", sum)
	}

	if !almostEqual(s.WeightSum(), 1.0, 1e-9) {
		t.Errorf("expected normalized sum 1, got %.12f", s.WeightSum())
	}

	for i := 0; i < s.Len(); i++ {
		if s.At(i).Weight < 0 {
			t.Errorf("particle %d: negative weight %f", i, s.At(i).Weight)
		}
	}
}

func TestNormalizeZeroSum(t *testing.T) {

	s := NewSet(4)

	for i := 0; i < 4; i++ {
		s.SetWeight(i, 0)
	}

	if sum := s.Normalize(); sum != 0 {
		t.Errorf("expected sum 0 for all-zero weights, got %f", sum)
	}
}

func TestESS(t *testing.T) {

	s := NewSet(10)

	// equal weights give ESS = N
	if !almostEqual(s.ESS(), 10, 1e-9) {
		t.Errorf("expected ESS 10 for equal weights, got %f", s.ESS())
	}

	// all mass on one particle gives ESS = 1
	for i := 0; i < 10; i++ {
		s.SetWeight(i, 0)
	}
	s.SetWeight(3, 1)

	if !almostEqual(s.ESS(), 1, 1e-9) {
		t.Errorf("expected ESS 1 for degenerate weights, got %f", s.ESS())
	}
}

func TestMeanState(t *testing.T) {

	s := NewSet(2)

	s.At(0).State = State{X: 0, Y: 0, VX: 1, VY: 0}
	s.At(1).State = State{X: 10, Y: 20, VX: 3, VY: 4}

	s.SetWeight(0, 0.25)
	s.SetWeight(1, 0.75)

	m := s.MeanState()

	if !almostEqual(m.X, 7.5, 1e-12) || !almostEqual(m.Y, 15, 1e-12) {
		t.Errorf("expected mean position (7.5, 15), got (%f, %f)", m.X, m.Y)
	}

	if !almostEqual(m.VX, 2.5, 1e-12) || !almostEqual(m.VY, 3, 1e-12) {
		t.Errorf("expected mean velocity (2.5, 3), got (%f, %f)", m.VX, m.VY)
	}
}

func TestPositionSpread(t *testing.T) {

	s := NewSet(2)

	s.At(0).State = State{X: -3, Y: 0}
	s.At(1).State = State{X: 3, Y: 0}
	s.SetWeight(0, 0.5)
	s.SetWeight(1, 0.5)

	// both particles sit 3px from the mean
	if sp := s.PositionSpread(s.MeanState()); !almostEqual(sp, 3, 1e-12) {
		t.Errorf("expected spread 3, got %f", sp)
	}
}

func TestSetClone(t *testing.T) {

	s := NewSet(3)

	s.At(0).State = State{X: 5, Y: 6, VX: 1, VY: 2}
	s.SetWeight(0, 0.9)

	c := s.Clone()

	if c.Len() != s.Len() {
		t.Fatalf("expected clone of %d particles, got %d", s.Len(), c.Len())
	}

	if *c.At(0) != *s.At(0) {
		t.Errorf("expected clone slot 0 %+v, got %+v", *s.At(0), *c.At(0))
	}

	// mutating the clone must not touch the original
	c.At(0).State.X = 99

	if s.At(0).State.X != 5 {
		t.Error("mutating the clone changed the original set")
	}
}
