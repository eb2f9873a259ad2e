package condense

import (
	"errors"
)

var (
	// ErrNotReady is returned when frames are processed before the filter
	// has been initialized with a target histogram
	ErrNotReady = errors.New("filter has not been initialized")

	// ErrStopped is returned when the filter is used after it stopped
	ErrStopped = errors.New("filter has been stopped")

	// ErrDimensionMismatch is returned at initialization when the target
	// histogram bin count differs from the configured bin count
	ErrDimensionMismatch = errors.New("target histogram bin count does not match configuration")

	// ErrNonMonotonicTimestamp is returned when an incoming frame
	// timestamp is not after the previously processed one.  The condition
	// is fatal and stops the filter.
	ErrNonMonotonicTimestamp = errors.New("frame timestamp is not monotonically increasing")

	// ErrInvalidFrame marks a frame that failed to decode.  Sources wrap
	// this error; the filter recovers with a predict-only cycle.
	ErrInvalidFrame = errors.New("frame could not be decoded")

	// ErrTrackLost is surfaced after the configured number of consecutive
	// degenerate cycles, meaning the target could not be reacquired
	ErrTrackLost = errors.New("track lost after repeated filter degeneracy")
)
