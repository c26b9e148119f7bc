package capture

import (
	"context"
	"sync"
	"time"
)

// StillImageSequence is a finite, ordered list of uploaded images.
// After the last image NextFrame returns ErrEndOfSequence until Restart.
type StillImageSequence struct {
	mu      sync.Mutex
	images  [][]byte
	pos     int
	maxSize int
}

// NewStillImageSequence creates a sequence over the images in upload order
func NewStillImageSequence(images [][]byte, maxSize int) *StillImageSequence {
	return &StillImageSequence{images: images, maxSize: maxSize}
}

// NextFrame returns the next image. A corrupt image still advances the sequence.
func (s *StillImageSequence) NextFrame(_ context.Context) (*Frame, error) {
	s.mu.Lock()
	if s.pos >= len(s.images) {
		s.mu.Unlock()
		return nil, ErrEndOfSequence
	}
	data := s.images[s.pos]
	s.pos++
	seq := uint64(s.pos)
	s.mu.Unlock()

	frame, err := PrepareFrame(data, s.maxSize)
	if err != nil {
		return nil, err
	}
	frame.Seq = seq
	frame.Timestamp = time.Now()
	return frame, nil
}

// Restart rewinds the sequence to the first image
func (s *StillImageSequence) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
}

// Len returns the number of images
func (s *StillImageSequence) Len() int {
	return len(s.images)
}

// Remaining returns the number of images not yet returned
func (s *StillImageSequence) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images) - s.pos
}

// Close is a no-op; still images hold no device
func (s *StillImageSequence) Close() error {
	return nil
}
