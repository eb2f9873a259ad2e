package condense

import (
	"sync"

	"github.com/pongvision/condense/histogram"
)

// scratchPool hands out per-worker histogram scratch buffers so the
// weighing phase can run across multiple goroutines without allocating a
// histogram per particle
type scratchPool struct {
	// pool of scratch histograms
	bufs chan histogram.Histogram
	// size of pool
	size  int
	close sync.Once
}

// newScratchPool creates a pool of size scratch histograms of the given
// bin count
func newScratchPool(size, bins int) *scratchPool {

	p := &scratchPool{
		bufs: make(chan histogram.Histogram, size),
		size: size,
	}

	for i := 0; i < size; i++ {
		p.Return(histogram.New(bins))
	}

	return p
}

// Get a scratch histogram from the pool
func (p *scratchPool) Get() histogram.Histogram {
	return <-p.bufs
}

// Return a scratch histogram to the pool
func (p *scratchPool) Return(buf histogram.Histogram) {
	select {
	case p.bufs <- buf:
	default:
		// pool is full or closed
	}
}

// Close the pool and drop all buffers in it
func (p *scratchPool) Close() {
	p.close.Do(func() {
		close(p.bufs)

		for range p.bufs {
		}
	})
}
