package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/detector"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// fakeSource yields numbered frames until closed
type fakeSource struct {
	mu     sync.Mutex
	seq    uint64
	closed bool
	closes int
}

func (f *fakeSource) NextFrame(_ context.Context) (*capture.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, capture.ErrTrackStopped
	}
	f.seq++
	return &capture.Frame{Seq: f.seq, Width: 100, Height: 100, Scale: 1, Data: []byte{byte(f.seq)}}, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func face(emb ...float32) detector.Face {
	return detector.Face{BBox: []float64{10, 10, 50, 50}, Embedding: emb, Score: 0.9}
}

// scriptedDetector returns the faces of the n-th call, then no faces
func scriptedDetector(frames ...[]detector.Face) (detector.Detector, *atomic.Int32) {
	var calls atomic.Int32
	return detector.Func(func(_ context.Context, _ []byte) ([]detector.Face, error) {
		n := int(calls.Add(1)) - 1
		if n < len(frames) {
			return frames[n], nil
		}
		return nil, nil
	}), &calls
}

func newTestSampler(t *testing.T, det detector.Detector, cfg SamplerConfig) (*Sampler, *State, *fakeSource) {
	t.Helper()
	state := newTestState(t, Options{ConfirmationThreshold: 3})
	source := &fakeSource{}
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.6
	}
	sampler, err := NewSampler(source, det, state, cfg)
	if err != nil {
		t.Fatalf("NewSampler() error: %v", err)
	}
	return sampler, state, source
}

func TestSampler_ScenarioA(t *testing.T) {
	s1 := face(1, 0)
	s2 := face(0, 1)
	det, _ := scriptedDetector(
		[]detector.Face{s1},
		[]detector.Face{s1, s2},
		[]detector.Face{},
		[]detector.Face{s1},
		[]detector.Face{face(9, 9)},
	)
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{})

	for i := range 5 {
		if _, err := sampler.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}

	if got := state.PresentIDs(); !slices.Equal(got, []string{"S1"}) {
		t.Errorf("expected present set [S1], got %v", got)
	}
	if state.Votes("S1") != 3 || state.Votes("S2") != 1 {
		t.Errorf("unexpected votes S1=%d S2=%d", state.Votes("S1"), state.Votes("S2"))
	}
	if state.Votes("S3") != 0 {
		t.Error("unregistered student must never receive votes")
	}
}

func TestSampler_ZeroFaceTickLeavesStateUnchanged(t *testing.T) {
	det, _ := scriptedDetector([]detector.Face{face(1, 0)}, []detector.Face{})
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{})

	if _, err := sampler.Tick(context.Background()); err != nil {
		t.Fatalf("tick 1: %v", err)
	}
	before := state.Snapshot()

	res, err := sampler.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick 2: %v", err)
	}
	if len(res.Faces) != 0 {
		t.Fatalf("expected zero faces, got %d", len(res.Faces))
	}
	after := state.Snapshot()
	for i := range before.Students {
		if before.Students[i].Votes != after.Students[i].Votes || before.Students[i].Present != after.Students[i].Present {
			t.Errorf("student %s changed on zero-face tick", before.Students[i].ID)
		}
	}
}

func TestSampler_OneVotePerStudentPerFrame(t *testing.T) {
	det, _ := scriptedDetector([]detector.Face{face(1, 0), face(1, 0.1), face(0.9, 0)})
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{})

	res, err := sampler.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(res.Faces) != 3 {
		t.Errorf("expected 3 face results, got %d", len(res.Faces))
	}
	if state.Votes("S1") != 1 {
		t.Errorf("expected a single vote for S1, got %d", state.Votes("S1"))
	}
	if got := res.Faces[0].BBox; got[0] != 0.1 || got[2] != 0.5 {
		t.Errorf("expected relative bbox, got %v", got)
	}
}

func TestSampler_MinScoreFilter(t *testing.T) {
	weak := face(1, 0)
	weak.Score = 0.1
	det, _ := scriptedDetector([]detector.Face{weak})
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{MinScore: 0.25})

	if _, err := sampler.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if state.Votes("S1") != 0 {
		t.Error("low-score detection must not vote")
	}
}

func TestSampler_TickSkippedWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	det := detector.Func(func(_ context.Context, _ []byte) ([]detector.Face, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return []detector.Face{face(1, 0)}, nil
	})
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{})

	done := make(chan TickResult, 1)
	go func() {
		res, _ := sampler.Tick(context.Background())
		done <- res
	}()
	<-entered

	res, err := sampler.Tick(context.Background())
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if !res.Skipped {
		t.Error("expected second tick to be skipped")
	}

	close(release)
	first := <-done
	if first.Skipped {
		t.Error("first tick should have run")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly one detection, got %d", calls.Load())
	}
	if _, skipped := sampler.Stats(); skipped != 1 {
		t.Errorf("expected 1 skipped tick, got %d", skipped)
	}
	if state.Votes("S1") != 1 {
		t.Errorf("expected 1 vote, got %d", state.Votes("S1"))
	}

	// The flag is released, so the next tick runs.
	if res, _ := sampler.Tick(context.Background()); res.Skipped {
		t.Error("expected tick to run after the in-flight one finished")
	}
}

func TestSampler_LoopDropsLateTicks(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	det := detector.Func(func(_ context.Context, _ []byte) ([]detector.Face, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil, nil
	})
	sampler, _, _ := newTestSampler(t, det, SamplerConfig{Interval: 5 * time.Millisecond})

	if err := sampler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	time.Sleep(60 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("expected one detection while blocked, got %d", calls.Load())
	}
	if _, skipped := sampler.Stats(); skipped == 0 {
		t.Error("expected late ticks to be skipped")
	}

	close(release)
	if err := sampler.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSampler_RecoversFromDetectionErrors(t *testing.T) {
	var calls atomic.Int32
	det := detector.Func(func(_ context.Context, _ []byte) ([]detector.Face, error) {
		if calls.Add(1)%2 == 1 {
			return nil, errors.New("inference timeout")
		}
		return []detector.Face{face(1, 0)}, nil
	})

	var errs atomic.Int32
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{
		Interval: 5 * time.Millisecond,
		OnTick: func(res TickResult) {
			if res.Err != nil {
				errs.Add(1)
			}
		},
	})

	if err := sampler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sampler.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !state.IsPresent("S1") {
		if time.Now().After(deadline) {
			t.Fatal("S1 was never confirmed; sampler did not survive detection errors")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if errs.Load() == 0 {
		t.Error("expected detection errors to be reported to OnTick")
	}
}

func TestSampler_DetectTimeout(t *testing.T) {
	det := detector.Func(func(ctx context.Context, _ []byte) ([]detector.Face, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	sampler, _, _ := newTestSampler(t, det, SamplerConfig{DetectTimeout: 10 * time.Millisecond})

	_, err := sampler.Tick(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if res, _ := sampler.Tick(context.Background()); res.Skipped {
		t.Error("flag must be released after a timed out detection")
	}
}

func TestSampler_StopReleasesSourceAndIsIdempotent(t *testing.T) {
	det, _ := scriptedDetector()
	sampler, _, source := newTestSampler(t, det, SamplerConfig{Interval: 5 * time.Millisecond})

	if err := sampler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !sampler.Running() {
		t.Error("expected sampler running")
	}

	if err := sampler.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !source.isClosed() {
		t.Error("expected source closed synchronously by Stop")
	}
	if sampler.Running() {
		t.Error("expected sampler not running")
	}

	time.Sleep(10 * time.Millisecond)
	ticks, _ := sampler.Stats()
	time.Sleep(30 * time.Millisecond)
	if after, _ := sampler.Stats(); after != ticks {
		t.Errorf("ticks continued after Stop: %d -> %d", ticks, after)
	}

	if err := sampler.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if source.closes != 1 {
		t.Errorf("expected source closed once, got %d", source.closes)
	}
	if err := sampler.Start(context.Background()); !errors.Is(err, ErrSamplerStopped) {
		t.Errorf("expected ErrSamplerStopped, got %v", err)
	}
	if _, err := sampler.Tick(context.Background()); !errors.Is(err, ErrSamplerStopped) {
		t.Errorf("expected ErrSamplerStopped, got %v", err)
	}
}

func TestSampler_InFlightResultDiscardedAfterStop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	det := detector.Func(func(_ context.Context, _ []byte) ([]detector.Face, error) {
		close(entered)
		<-release
		return []detector.Face{face(1, 0)}, nil
	})
	var reported atomic.Int32
	sampler, state, _ := newTestSampler(t, det, SamplerConfig{
		OnTick: func(TickResult) { reported.Add(1) },
	})

	done := make(chan TickResult, 1)
	go func() {
		res, _ := sampler.Tick(context.Background())
		done <- res
	}()
	<-entered

	if err := sampler.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(release)

	res := <-done
	if !res.Discarded {
		t.Error("expected in-flight result to be discarded")
	}
	if state.Votes("S1") != 0 {
		t.Error("discarded tick must not vote")
	}
	if reported.Load() != 0 {
		t.Error("discarded tick must not be reported")
	}
}

func TestNewSampler_EmptyGallery(t *testing.T) {
	roster := []database.Student{{ID: "S1"}, {ID: "S2"}}
	gallery, err := facematch.BuildGallery(roster)
	if err != nil {
		t.Fatalf("BuildGallery() error: %v", err)
	}
	state := NewState("c1", roster, gallery, Options{})

	det, calls := scriptedDetector()
	if _, err := NewSampler(&fakeSource{}, det, state, SamplerConfig{}); !errors.Is(err, ErrAIUnavailable) {
		t.Errorf("expected ErrAIUnavailable, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("detector must not be called without a gallery")
	}
}

func TestSampler_DimensionMismatchIsFatal(t *testing.T) {
	det, _ := scriptedDetector([]detector.Face{face(1, 0, 0)})
	sampler, _, _ := newTestSampler(t, det, SamplerConfig{})

	if _, err := sampler.Tick(context.Background()); !errors.Is(err, facematch.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSampler_OnStopAfterFatalLoopError(t *testing.T) {
	det, _ := scriptedDetector([]detector.Face{face(1, 0, 0)})
	stopped := make(chan error, 2)
	sampler, _, source := newTestSampler(t, det, SamplerConfig{
		Interval: 5 * time.Millisecond,
		OnStop:   func(err error) { stopped <- err },
	})

	if err := sampler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case err := <-stopped:
		if !errors.Is(err, facematch.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnStop not called")
	}
	if !source.isClosed() {
		t.Error("expected source closed before OnStop")
	}
	if sampler.Running() {
		t.Error("expected sampler not running")
	}

	// An explicit Stop afterwards must not report again.
	if err := sampler.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	select {
	case err := <-stopped:
		t.Errorf("OnStop called twice, second with %v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSampler_OnStopNotCalledForExplicitStop(t *testing.T) {
	det, _ := scriptedDetector()
	var calls atomic.Int32
	sampler, _, _ := newTestSampler(t, det, SamplerConfig{
		Interval: 5 * time.Millisecond,
		OnStop:   func(error) { calls.Add(1) },
	})

	if err := sampler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := sampler.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("OnStop called %d times after explicit Stop", calls.Load())
	}
}
