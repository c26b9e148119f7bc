// Package capture provides the frame sources of an attendance session: a live
// camera stream held exclusively per session, and a finite sequence of uploaded
// still images.
package capture

import (
	"context"
	"errors"
)

var (
	// ErrEndOfSequence is returned by finite sources after the last frame
	ErrEndOfSequence = errors.New("end of frame sequence")

	// ErrCaptureUnavailable is returned when a camera cannot be opened or is not streaming
	ErrCaptureUnavailable = errors.New("capture device unavailable")

	// ErrTrackStopped is returned by a track read after the track was stopped
	ErrTrackStopped = errors.New("track stopped")

	// ErrImageTooLarge is returned for images whose declared size exceeds the pixel limit
	ErrImageTooLarge = errors.New("image too large")
)

// Source is where the sampler pulls frames from.
// Live sources never return ErrEndOfSequence.
type Source interface {
	NextFrame(ctx context.Context) (*Frame, error)
	Close() error
}

// Device is a camera that can be opened into a track
type Device interface {
	Name() string
	Open(ctx context.Context) (Track, error)
}

// Track is an open, exclusively held camera stream
type Track interface {
	// Read blocks until the next encoded image is available
	Read(ctx context.Context) ([]byte, error)
	// Stop releases the camera. Pending and later reads return ErrTrackStopped.
	Stop() error
}
