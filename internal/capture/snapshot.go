package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// SnapshotDevice is an IP camera exposing a still-image snapshot URL.
// Every read fetches a fresh snapshot.
type SnapshotDevice struct {
	url    string
	client *http.Client
}

// NewSnapshotDevice creates a device for the snapshot URL
func NewSnapshotDevice(url string) *SnapshotDevice {
	return &SnapshotDevice{
		url:    url,
		client: &http.Client{Timeout: constants.SnapshotTimeout},
	}
}

// Name returns the snapshot URL
func (d *SnapshotDevice) Name() string {
	return d.url
}

// Open fetches one snapshot to verify the camera is reachable.
func (d *SnapshotDevice) Open(ctx context.Context) (Track, error) {
	if _, err := d.fetch(ctx); err != nil {
		return nil, fmt.Errorf("camera %s: %w: %w", d.url, ErrCaptureUnavailable, err)
	}
	return &snapshotTrack{device: d}, nil
}

func (d *SnapshotDevice) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera error (status %d)", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxFrameSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return body, nil
}

type snapshotTrack struct {
	device  *SnapshotDevice
	stopped atomic.Bool
}

func (t *snapshotTrack) Read(ctx context.Context) ([]byte, error) {
	if t.stopped.Load() {
		return nil, ErrTrackStopped
	}
	data, err := t.device.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if t.stopped.Load() {
		return nil, ErrTrackStopped
	}
	return data, nil
}

func (t *snapshotTrack) Stop() error {
	t.stopped.Store(true)
	return nil
}
