package condense

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"github.com/pongvision/condense/histogram"
	"github.com/pongvision/condense/particle"
)

// FilterState is the lifecycle state of a Filter
type FilterState int

const (
	// Filter created but no target histogram supplied yet
	Uninitialized FilterState = 0
	// Filter is ready to process frames
	Ready FilterState = 1
	// Filter halted, no further cycles execute
	Stopped FilterState = 2
)

// String returns the state name
func (s FilterState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Stopped:
		return "stopped"
	}

	return "unknown"
}

// Filter runs the Condensation cycle, predict, weigh, estimate and
// resample, over a sequence of timestamped frames.  A Filter is not safe
// for concurrent use; frames are processed strictly in timestamp order.
type Filter struct {
	cfg Config
	// target is the immutable target signature histogram
	target histogram.Histogram
	set    *particle.Set
	motion *particle.Motion
	rng    *rand.Rand
	// scratch buffers for the weighing workers
	scratch *scratchPool
	state   FilterState
	// started is false until the first frame after Init, which uses dt=0
	started bool
	// lastPTS is the timestamp of the last processed frame
	lastPTS time.Duration
	last    TrackEstimate
	// degenerateRun counts consecutive degenerate cycles
	degenerateRun int
	// degeneracies counts degeneracy events over the filter lifetime
	degeneracies int
}

// NewFilter creates a filter for the given configuration
func NewFilter(cfg Config) (*Filter, error) {

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid filter configuration: %w", err)
	}

	return &Filter{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		scratch: newScratchPool(cfg.Workers, cfg.Bins),
		motion: particle.NewMotion(cfg.PosNoiseSigma, cfg.VelNoiseSigma,
			rand.NewSource(cfg.Seed+1)),
	}, nil
}

// Init supplies the immutable target histogram and the initial position
// guess, scattering the particle set around it.  The target bin count
// must match the configured bin count.
func (f *Filter) Init(target histogram.Histogram, x, y float64) error {

	if f.state == Stopped {
		return ErrStopped
	}

	if len(target) != f.cfg.Bins {
		return fmt.Errorf("target has %d bins, filter configured for %d: %w",
			len(target), f.cfg.Bins, ErrDimensionMismatch)
	}

	// keep a normalized private copy so the signature can never be
	// mutated from outside
	f.target = target.Clone()
	f.target.Normalize()

	f.set = particle.NewSet(f.cfg.Particles)
	f.set.InitGaussian(particle.State{X: x, Y: y},
		f.cfg.InitPosSigma, f.cfg.InitVelSigma, rand.NewSource(f.cfg.Seed+2))

	f.last = TrackEstimate{X: x, Y: y, ESS: float64(f.cfg.Particles)}
	f.started = false
	f.degenerateRun = 0
	f.state = Ready

	return nil
}

// State returns the filter lifecycle state
func (f *Filter) State() FilterState {
	return f.state
}

// Particles exposes the particle set, for rendering and diagnostics
func (f *Filter) Particles() *particle.Set {
	return f.set
}

// LastEstimate returns the most recent track estimate
func (f *Filter) LastEstimate() TrackEstimate {
	return f.last
}

// DegeneracyCount returns the number of degeneracy events since Init
func (f *Filter) DegeneracyCount() int {
	return f.degeneracies
}

// Stop halts the filter; no further cycles execute
func (f *Filter) Stop() {
	f.state = Stopped
	f.scratch.Close()
}

// advance validates the frame timestamp against the previous cycle and
// returns the elapsed time in seconds.  The first frame after Init is
// permitted a dt of 0.
func (f *Filter) advance(pts time.Duration) (float64, error) {

	if f.state == Stopped {
		return 0, ErrStopped
	}

	if f.state != Ready {
		return 0, ErrNotReady
	}

	if !f.started {
		f.started = true
		f.lastPTS = pts
		return 0, nil
	}

	if pts <= f.lastPTS {
		f.state = Stopped
		return 0, fmt.Errorf("frame at %v after frame at %v: %w",
			pts, f.lastPTS, ErrNonMonotonicTimestamp)
	}

	dt := (pts - f.lastPTS).Seconds()
	f.lastPTS = pts

	return dt, nil
}

// Process consumes one frame and runs a full filter cycle, returning the
// track estimate for it.  A non-monotonic timestamp is fatal and stops
// the filter.  ErrTrackLost is returned together with the flagged
// estimate once degeneracy persists past the configured limit; the
// filter stays ready so the caller can choose to continue.
func (f *Filter) Process(fr Frame) (TrackEstimate, error) {

	if fr.Gray == nil {
		return f.ProcessInvalid(fr.PTS, fr.Index)
	}

	dt, err := f.advance(fr.PTS)

	if err != nil {
		return TrackEstimate{}, err
	}

	// predict: no motion is applied on the very first cycle
	if dt > 0 {
		if err := f.motion.Predict(f.set, dt); err != nil {
			return TrackEstimate{}, fmt.Errorf("predict failed: %w", err)
		}
	}

	// weigh all particles against the frame
	f.weighAll(fr.Gray)

	// normalize; a weight sum below threshold means every particle is
	// implausible, such as during full occlusion
	if sum := f.set.Normalize(); sum < f.cfg.MinWeightSum {
		return f.recoverDegeneracy(fr.PTS, fr.Index)
	}

	f.degenerateRun = 0

	est := f.estimate(fr.PTS, fr.Index)

	// resample every cycle unless conditional resampling is enabled and
	// the effective sample size is still healthy
	if f.cfg.ESSFraction <= 0 || est.ESS < f.cfg.ESSFraction*float64(f.cfg.Particles) {
		f.set.Resample(f.rng)
	}

	f.last = est

	return est, nil
}

// ProcessInvalid runs a predict-only cycle for a frame that failed to
// decode: the particles move under the motion model but no weighing or
// resampling happens, and the estimate is flagged as degraded
func (f *Filter) ProcessInvalid(pts time.Duration, index int) (TrackEstimate, error) {

	dt, err := f.advance(pts)

	if err != nil {
		return TrackEstimate{}, err
	}

	if dt > 0 {
		if err := f.motion.Predict(f.set, dt); err != nil {
			return TrackEstimate{}, fmt.Errorf("predict failed: %w", err)
		}
	}

	est := f.estimate(pts, index)
	est.Degraded = true

	f.last = est

	return est, nil
}

// estimate reduces the weighted particle set to a single track estimate
func (f *Filter) estimate(pts time.Duration, index int) TrackEstimate {

	mean := f.set.MeanState()

	return TrackEstimate{
		FrameIndex:  index,
		PTS:         pts,
		X:           mean.X,
		Y:           mean.Y,
		VX:          mean.VX,
		VY:          mean.VY,
		Uncertainty: f.set.PositionSpread(mean),
		ESS:         f.set.ESS(),
	}
}

// recoverDegeneracy reseeds the particle set around the last known good
// estimate with an enlarged spread and carries that estimate forward.
// Repeated consecutive degeneracy surfaces ErrTrackLost instead of
// retrying silently forever.
func (f *Filter) recoverDegeneracy(pts time.Duration, index int) (TrackEstimate, error) {

	f.degeneracies++
	f.degenerateRun++

	center := particle.State{X: f.last.X, Y: f.last.Y, VX: f.last.VX, VY: f.last.VY}

	f.set.InitGaussian(center,
		f.cfg.InitPosSigma*f.cfg.ReinitSpreadScale,
		f.cfg.InitVelSigma*f.cfg.ReinitSpreadScale,
		rand.NewSource(f.rng.Uint64()))

	est := f.last
	est.FrameIndex = index
	est.PTS = pts
	est.Uncertainty = f.cfg.InitPosSigma * f.cfg.ReinitSpreadScale
	est.ESS = float64(f.cfg.Particles)
	est.Reinitialized = true

	if f.degenerateRun > f.cfg.MaxDegenerateCycles {
		est.TrackLost = true
		f.last = est
		return est, ErrTrackLost
	}

	f.last = est

	return est, nil
}

// weighAll distributes the weighing phase over the configured worker
// count.  Each worker weighs a disjoint index range and only writes its
// own particles' weight slots, with the frame and target histogram read
// only, so no locking is needed.  The wait acts as the barrier before
// normalization.
func (f *Filter) weighAll(img *image.Gray) {

	n := f.set.Len()
	workers := f.cfg.Workers

	if workers > n {
		workers = n
	}

	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {

		lo := w * chunk
		hi := lo + chunk

		if hi > n {
			hi = n
		}

		if lo >= hi {
			break
		}

		wg.Add(1)

		go func(lo, hi int) {
			defer wg.Done()

			buf := f.scratch.Get()
			defer f.scratch.Return(buf)

			for i := lo; i < hi; i++ {
				f.set.SetWeight(i, f.weighOne(img, f.set.At(i).State, buf))
			}
		}(lo, hi)
	}

	wg.Wait()
}

// Track drives the filter over an entire frame source and returns the
// ordered estimate sequence.  Invalid frames are recovered with
// predict-only cycles and logged as degraded; io.EOF ends the run and
// stops the filter.
func (f *Filter) Track(src Source) ([]TrackEstimate, error) {

	var estimates []TrackEstimate

	for {
		fr, err := src.Next()

		if errors.Is(err, io.EOF) {
			f.Stop()
			return estimates, nil
		}

		if err != nil && !errors.Is(err, ErrInvalidFrame) {
			f.Stop()
			return estimates, fmt.Errorf("frame source failed: %w", err)
		}

		var est TrackEstimate

		if err != nil {
			log.Printf("frame %d could not be decoded, running degraded cycle", fr.Index)
			est, err = f.ProcessInvalid(fr.PTS, fr.Index)
		} else {
			est, err = f.Process(fr)
		}

		if err != nil && !errors.Is(err, ErrTrackLost) {
			return estimates, err
		}

		estimates = append(estimates, est)

		if errors.Is(err, ErrTrackLost) {
			return estimates, err
		}
	}
}
