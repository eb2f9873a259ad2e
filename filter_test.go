package condense

import (
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"testing"
	"time"

	"golang.org/x/exp/rand"

	"github.com/pongvision/condense/histogram"
)

// ballFrame builds a synthetic grayscale frame with a dark background and
// a bright square target centered at (cx, cy)
func ballFrame(w, h, cx, cy, size int) *image.Gray {

	img := image.NewGray(image.Rect(0, 0, w, h))

	for i := range img.Pix {
		img.Pix[i] = 20
	}

	sq := image.Rect(cx-size/2, cy-size/2, cx+size/2, cy+size/2).
		Intersect(img.Bounds())

	for y := sq.Min.Y; y < sq.Max.Y; y++ {
		for x := sq.Min.X; x < sq.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: 230})
		}
	}

	return img
}

// testConfig returns a small deterministic configuration for the
// synthetic scenarios
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Particles = 200
	cfg.Bins = 50
	cfg.RectWidth = 20
	cfg.RectHeight = 20
	cfg.InitPosSigma = 20
	cfg.InitVelSigma = 0
	cfg.PosNoiseSigma = 2
	cfg.VelNoiseSigma = 1
	cfg.Bandwidth = 0.1
	cfg.Workers = 4
	cfg.Seed = 5
	return cfg
}

// targetFor builds the target histogram from the frame region around the
// true position
func targetFor(img *image.Gray, cx, cy, size, bins int) histogram.Histogram {
	h := histogram.New(bins)
	histogram.BuildRegion(img,
		image.Rect(cx-size/2, cy-size/2, cx+size/2, cy+size/2), h)
	return h
}

func TestFilterConvergence(t *testing.T) {

	const (
		cx, cy = 64, 64
		size   = 20
	)

	cfg := testConfig()

	frame := ballFrame(128, 128, cx, cy, size)
	target := targetFor(frame, cx, cy, size, cfg.Bins)

	f, err := NewFilter(cfg)

	if err != nil {
		t.Fatalf("error creating filter: %v", err)
	}

	if err := f.Init(target, cx, cy); err != nil {
		t.Fatalf("error initializing filter: %v", err)
	}

	// scatter the particles uniformly within a 50 pixel radius of the
	// true position
	rng := rand.New(rand.NewSource(77))
	set := f.Particles()

	for i := 0; i < set.Len(); i++ {
		r := 50 * math.Sqrt(rng.Float64())
		a := 2 * math.Pi * rng.Float64()
		set.At(i).State.X = cx + r*math.Cos(a)
		set.At(i).State.Y = cy + r*math.Sin(a)
		set.At(i).State.VX = 0
		set.At(i).State.VY = 0
	}

	var est TrackEstimate

	for i := 0; i < 10; i++ {
		est, err = f.Process(Frame{
			Gray:  frame,
			PTS:   time.Duration(i) * 40 * time.Millisecond,
			Index: i,
		})

		if err != nil {
			t.Fatalf("cycle %d: unexpected error: %v", i, err)
		}

		// normalized-then-resampled weights always sum to 1
		if sum := f.Particles().WeightSum(); math.Abs(sum-1) > 1e-9 {
			t.Fatalf("cycle %d: weight sum %.12f, want 1", i, sum)
		}
	}

	// the ensemble must have collapsed onto the target
	within := 0

	for i := 0; i < set.Len(); i++ {
		st := set.At(i).State

		if math.Hypot(st.X-cx, st.Y-cy) <= 5 {
			within++
		}
	}

	frac := float64(within) / float64(set.Len())

	if frac < 0.9 {
		t.Errorf("expected over 90%% of particles within 5px of target, got %.1f%%",
			frac*100)
	}

	if math.Hypot(est.X-cx, est.Y-cy) > 3 {
		t.Errorf("estimate (%.1f, %.1f) too far from target (%d, %d)",
			est.X, est.Y, cx, cy)
	}

	if est.FrameIndex != 9 {
		t.Errorf("expected final estimate for frame 9, got %d", est.FrameIndex)
	}
}

func TestFilterDegeneracyRecovery(t *testing.T) {

	cfg := testConfig()

	// a target signature disjoint from anything in the frame: the frame
	// is uniform dark, the target has all mass in a bright bin
	target := histogram.New(cfg.Bins)
	target[45] = 1

	frame := image.NewGray(image.Rect(0, 0, 128, 128))

	for i := range frame.Pix {
		frame.Pix[i] = 20
	}

	f, err := NewFilter(cfg)

	if err != nil {
		t.Fatalf("error creating filter: %v", err)
	}

	if err := f.Init(target, 64, 64); err != nil {
		t.Fatalf("error initializing filter: %v", err)
	}

	est, err := f.Process(Frame{Gray: frame, PTS: 0, Index: 0})

	if err != nil {
		t.Fatalf("degenerate cycle must recover, got error: %v", err)
	}

	if !est.Reinitialized {
		t.Error("expected the degenerate cycle estimate to be flagged Reinitialized")
	}

	// the estimate carries the last known good position forward
	if est.X != 64 || est.Y != 64 {
		t.Errorf("expected carried-forward estimate (64, 64), got (%f, %f)", est.X, est.Y)
	}

	if f.DegeneracyCount() != 1 {
		t.Errorf("expected exactly 1 degeneracy event, got %d", f.DegeneracyCount())
	}

	if f.State() != Ready {
		t.Errorf("filter must stay ready after recovery, state %v", f.State())
	}
}

func TestFilterTrackLost(t *testing.T) {

	cfg := testConfig()
	cfg.MaxDegenerateCycles = 2

	target := histogram.New(cfg.Bins)
	target[45] = 1

	frame := image.NewGray(image.Rect(0, 0, 128, 128))

	f, err := NewFilter(cfg)

	if err != nil {
		t.Fatalf("error creating filter: %v", err)
	}

	if err := f.Init(target, 64, 64); err != nil {
		t.Fatalf("error initializing filter: %v", err)
	}

	var est TrackEstimate

	// first two degenerate cycles recover, the third exceeds the limit
	for i := 0; i < 3; i++ {
		est, err = f.Process(Frame{
			Gray:  frame,
			PTS:   time.Duration(i) * 40 * time.Millisecond,
			Index: i,
		})

		if i < 2 && err != nil {
			t.Fatalf("cycle %d: expected recovery, got %v", i, err)
		}
	}

	if !errors.Is(err, ErrTrackLost) {
		t.Fatalf("expected ErrTrackLost after repeated degeneracy, got %v", err)
	}

	if !est.TrackLost {
		t.Error("expected the estimate to be flagged TrackLost")
	}

	if f.DegeneracyCount() != 3 {
		t.Errorf("expected 3 degeneracy events, got %d", f.DegeneracyCount())
	}
}

func TestFilterNonMonotonicTimestamp(t *testing.T) {

	cfg := testConfig()

	frame := ballFrame(128, 128, 64, 64, 20)
	target := targetFor(frame, 64, 64, 20, cfg.Bins)

	f, _ := NewFilter(cfg)

	if err := f.Init(target, 64, 64); err != nil {
		t.Fatalf("error initializing filter: %v", err)
	}

	if _, err := f.Process(Frame{Gray: frame, PTS: 40 * time.Millisecond}); err != nil {
		t.Fatalf("unexpected error on first frame: %v", err)
	}

	// duplicate timestamp is fatal
	_, err := f.Process(Frame{Gray: frame, PTS: 40 * time.Millisecond, Index: 1})

	if !errors.Is(err, ErrNonMonotonicTimestamp) {
		t.Fatalf("expected ErrNonMonotonicTimestamp, got %v", err)
	}

	if f.State() != Stopped {
		t.Errorf("filter must stop on non-monotonic timestamp, state %v", f.State())
	}

	// no further cycles execute after Stopped
	if _, err := f.Process(Frame{Gray: frame, PTS: 80 * time.Millisecond, Index: 2}); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestFilterDimensionMismatch(t *testing.T) {

	cfg := testConfig()

	f, _ := NewFilter(cfg)

	if err := f.Init(histogram.New(cfg.Bins+1), 64, 64); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestFilterNotReady(t *testing.T) {

	f, _ := NewFilter(testConfig())

	if _, err := f.Process(Frame{Gray: ballFrame(64, 64, 32, 32, 10)}); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady before Init, got %v", err)
	}
}

func TestProcessInvalidPredictOnly(t *testing.T) {

	cfg := testConfig()

	frame := ballFrame(128, 128, 64, 64, 20)
	target := targetFor(frame, 64, 64, 20, cfg.Bins)

	f, _ := NewFilter(cfg)

	if err := f.Init(target, 64, 64); err != nil {
		t.Fatalf("error initializing filter: %v", err)
	}

	if _, err := f.Process(Frame{Gray: frame, PTS: 0, Index: 0}); err != nil {
		t.Fatalf("unexpected error on first frame: %v", err)
	}

	before := f.DegeneracyCount()

	est, err := f.ProcessInvalid(40*time.Millisecond, 1)

	if err != nil {
		t.Fatalf("predict-only cycle failed: %v", err)
	}

	if !est.Degraded {
		t.Error("expected the predict-only estimate to be flagged Degraded")
	}

	if f.DegeneracyCount() != before {
		t.Error("predict-only cycle must not count as degeneracy")
	}

	// the estimate stays close to the target: equal weights, small noise
	if math.Hypot(est.X-64, est.Y-64) > 10 {
		t.Errorf("predict-only estimate drifted to (%.1f, %.1f)", est.X, est.Y)
	}
}

// scriptSource replays a fixed list of frames and errors
type scriptSource struct {
	frames []Frame
	errs   []error
	pos    int
}

func (s *scriptSource) Next() (Frame, error) {

	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}

	fr, err := s.frames[s.pos], s.errs[s.pos]
	s.pos++

	return fr, err
}

func TestFilterTrack(t *testing.T) {

	cfg := testConfig()

	frame := ballFrame(128, 128, 64, 64, 20)
	target := targetFor(frame, 64, 64, 20, cfg.Bins)

	src := &scriptSource{
		frames: []Frame{
			{Gray: frame, PTS: 0, Index: 0},
			{Gray: frame, PTS: 40 * time.Millisecond, Index: 1},
			// decode failure carrying a valid PTS
			{PTS: 80 * time.Millisecond, Index: 2},
			{Gray: frame, PTS: 120 * time.Millisecond, Index: 3},
		},
		errs: []error{nil, nil, ErrInvalidFrame, nil},
	}

	f, _ := NewFilter(cfg)

	if err := f.Init(target, 64, 64); err != nil {
		t.Fatalf("error initializing filter: %v", err)
	}

	estimates, err := f.Track(src)

	if err != nil {
		t.Fatalf("track run failed: %v", err)
	}

	if len(estimates) != 4 {
		t.Fatalf("expected 4 estimates, got %d", len(estimates))
	}

	if !estimates[2].Degraded {
		t.Error("expected estimate 2 to be flagged Degraded")
	}

	for i, est := range estimates {
		if est.FrameIndex != i {
			t.Errorf("estimate %d carries frame index %d", i, est.FrameIndex)
		}
	}

	if f.State() != Stopped {
		t.Errorf("filter must stop at end of stream, state %v", f.State())
	}
}
