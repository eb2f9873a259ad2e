package condense

import (
	"fmt"
	"runtime"
)

// Config is the immutable configuration of a Filter instance.  Multiple
// filters with different parameters can coexist since nothing here is
// shared module state.
type Config struct {
	// Particles is the particle count N, constant for the filter lifetime
	Particles int
	// Bins is the histogram bin count m; the target histogram supplied at
	// initialization must have exactly this many bins
	Bins int
	// RectWidth and RectHeight are the measurement rectangle dimensions
	// in pixels, centered on each particle position
	RectWidth  int
	RectHeight int
	// InitPosSigma and InitVelSigma are the gaussian spread of the
	// initial particle scatter around the starting position guess
	InitPosSigma float64
	InitVelSigma float64
	// PosNoiseSigma is the process noise position standard deviation
	// accumulated over one second, in pixels
	PosNoiseSigma float64
	// VelNoiseSigma is the process noise velocity standard deviation per
	// prediction step, in pixels per second
	VelNoiseSigma float64
	// Bandwidth is the measurement kernel bandwidth σ converting
	// Hellinger distances into weights via exp(-d²/(2σ²))
	Bandwidth float64
	// MinWeightSum is the degeneracy threshold: a raw weight sum below it
	// reinitializes the particle set around the last good estimate
	MinWeightSum float64
	// ESSFraction optionally enables conditional resampling: resample
	// only when the effective sample size drops below this fraction of N.
	// Zero resamples every cycle, the standard Condensation behavior.
	ESSFraction float64
	// MaxDegenerateCycles is the number of consecutive degenerate cycles
	// tolerated before the track is reported lost
	MaxDegenerateCycles int
	// ReinitSpreadScale enlarges the initial scatter spread when
	// reinitializing after degeneracy
	ReinitSpreadScale float64
	// Workers is the number of goroutines weighing particles.  Zero uses
	// the number of CPUs.
	Workers int
	// Seed seeds the filter random source for noise draws and resampling
	// offsets, making runs reproducible
	Seed uint64
}

// DefaultConfig returns the tracker parameters used for following a
// ping-pong ball in standard definition footage
func DefaultConfig() Config {
	return Config{
		Particles:           200,
		Bins:                50,
		RectWidth:           52,
		RectHeight:          52,
		InitPosSigma:        40,
		InitVelSigma:        1,
		PosNoiseSigma:       25,
		VelNoiseSigma:       20,
		Bandwidth:           0.25,
		MinWeightSum:        1e-6,
		ESSFraction:         0,
		MaxDegenerateCycles: 5,
		ReinitSpreadScale:   2,
		Workers:             0,
		Seed:                1,
	}
}

// validate checks the configuration and fills the worker count default
func (c *Config) validate() error {

	if c.Particles < 1 {
		return fmt.Errorf("particle count must be at least 1, got %d", c.Particles)
	}

	if c.Bins < 1 || c.Bins > 256 {
		return fmt.Errorf("bin count must be in 1..256, got %d", c.Bins)
	}

	if c.RectWidth < 1 || c.RectHeight < 1 {
		return fmt.Errorf("measurement rectangle must have positive size, got %dx%d",
			c.RectWidth, c.RectHeight)
	}

	if c.Bandwidth <= 0 {
		return fmt.Errorf("kernel bandwidth must be positive, got %f", c.Bandwidth)
	}

	if c.PosNoiseSigma < 0 || c.VelNoiseSigma < 0 ||
		c.InitPosSigma < 0 || c.InitVelSigma < 0 {
		return fmt.Errorf("noise standard deviations must be non-negative")
	}

	if c.MinWeightSum < 0 {
		return fmt.Errorf("minimum weight sum must be non-negative, got %g", c.MinWeightSum)
	}

	if c.ReinitSpreadScale <= 0 {
		c.ReinitSpreadScale = 1
	}

	if c.MaxDegenerateCycles < 1 {
		c.MaxDegenerateCycles = 1
	}

	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}

	return nil
}
