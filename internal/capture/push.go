package capture

import (
	"context"
	"fmt"
	"sync"
)

// PushDevice is a camera whose frames are posted by a client (for example a
// browser streaming its webcam). Each open track is a single-slot mailbox:
// a new frame overwrites an unconsumed one.
type PushDevice struct {
	name string

	mu    sync.Mutex
	track *pushTrack
}

// NewPushDevice creates a push device
func NewPushDevice(name string) *PushDevice {
	return &PushDevice{name: name}
}

// Name returns the device name
func (d *PushDevice) Name() string {
	return d.name
}

// Open returns the device track. Only one track may be open at a time.
func (d *PushDevice) Open(_ context.Context) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.track != nil && !d.track.isClosed() {
		return nil, fmt.Errorf("%s is busy: %w", d.name, ErrCaptureUnavailable)
	}
	t := &pushTrack{}
	t.cond = sync.NewCond(&t.mu)
	d.track = t
	return t, nil
}

// Push publishes a frame to the open track.
// It returns ErrCaptureUnavailable when no track is open.
func (d *PushDevice) Push(data []byte) error {
	d.mu.Lock()
	t := d.track
	d.mu.Unlock()

	if t == nil || !t.publish(data) {
		return fmt.Errorf("%s is not streaming: %w", d.name, ErrCaptureUnavailable)
	}
	return nil
}

// Drops returns how many pushed frames were overwritten before being read
func (d *PushDevice) Drops() uint64 {
	d.mu.Lock()
	t := d.track
	d.mu.Unlock()

	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drops
}

type pushTrack struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  []byte // nil = consumed
	drops  uint64
	closed bool
}

func (t *pushTrack) publish(data []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if t.frame != nil {
		t.drops++
	}
	t.frame = data
	t.cond.Signal()
	return true
}

func (t *pushTrack) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *pushTrack) Read(ctx context.Context) ([]byte, error) {
	// Wake the waiter when the context ends.
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	for t.frame == nil && !t.closed && ctx.Err() == nil {
		t.cond.Wait()
	}
	if t.closed {
		return nil, ErrTrackStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := t.frame
	t.frame = nil
	return data, nil
}

func (t *pushTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.frame = nil
	t.cond.Broadcast()
	return nil
}
