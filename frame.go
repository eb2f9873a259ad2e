package condense

import (
	"image"
	"time"
)

// Frame is a single grayscale video frame paired with its presentation
// timestamp
type Frame struct {
	// Gray is the intensity buffer
	Gray *image.Gray
	// PTS is the presentation timestamp.  Timestamps must be
	// monotonically increasing across the sequence fed to a filter.
	PTS time.Duration
	// Index is the frame number within the source
	Index int
}

// Source supplies frames in presentation order.  Next returns io.EOF when
// the stream ends and an error wrapping ErrInvalidFrame when a frame
// failed to decode; in the latter case the returned Frame still carries a
// valid PTS and Index so the filter can run a predict-only cycle.
type Source interface {
	Next() (Frame, error)
}
