package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LiveStream is a continuous frame source over a camera device.
// It holds at most one open track; acquiring a new device releases the previous one first.
type LiveStream struct {
	mu      sync.Mutex
	device  Device
	track   Track
	maxSize int
	seq     atomic.Uint64
}

// NewLiveStream creates a stream for the device. The device is not opened until Acquire.
func NewLiveStream(device Device, maxSize int) *LiveStream {
	return &LiveStream{device: device, maxSize: maxSize}
}

// Acquire opens the device. It is a no-op if a track is already held.
func (s *LiveStream) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquireLocked(ctx)
}

func (s *LiveStream) acquireLocked(ctx context.Context) error {
	if s.track != nil {
		return nil
	}
	if s.device == nil {
		return fmt.Errorf("no device configured: %w", ErrCaptureUnavailable)
	}

	track, err := s.device.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrCaptureUnavailable) {
			return err
		}
		return fmt.Errorf("opening %s: %w: %w", s.device.Name(), ErrCaptureUnavailable, err)
	}
	s.track = track
	slog.Info("capture: device acquired", "device", s.device.Name())
	return nil
}

// Release stops the held track synchronously. Safe to call when nothing is held.
func (s *LiveStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked()
}

func (s *LiveStream) releaseLocked() error {
	if s.track == nil {
		return nil
	}
	track := s.track
	s.track = nil
	if err := track.Stop(); err != nil {
		return fmt.Errorf("stopping %s: %w", s.device.Name(), err)
	}
	slog.Info("capture: device released", "device", s.device.Name())
	return nil
}

// Switch releases the current device and acquires the new one.
// If the new device fails to open the stream is left without a track.
func (s *LiveStream) Switch(ctx context.Context, device Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.releaseLocked(); err != nil {
		slog.Warn("capture: release before switch failed", "error", err)
	}
	s.device = device
	return s.acquireLocked(ctx)
}

// Active reports whether a track is held
func (s *LiveStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track != nil
}

// DeviceName returns the current device name
func (s *LiveStream) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return ""
	}
	return s.device.Name()
}

// NextFrame reads the next image from the held track.
// The lock is not held while reading so Release can interrupt a blocked read.
func (s *LiveStream) NextFrame(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	track := s.track
	s.mu.Unlock()

	if track == nil {
		return nil, fmt.Errorf("stream not acquired: %w", ErrCaptureUnavailable)
	}

	data, err := track.Read(ctx)
	if err != nil {
		return nil, err
	}

	frame, err := PrepareFrame(data, s.maxSize)
	if err != nil {
		return nil, err
	}
	frame.Seq = s.seq.Add(1)
	frame.Timestamp = time.Now()
	return frame, nil
}

// Close releases the device
func (s *LiveStream) Close() error {
	return s.Release()
}
