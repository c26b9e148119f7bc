package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/detector"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var tracer = otel.Tracer("github.com/kozaktomas/face-attendance/internal/session")

// ErrSamplerStopped is returned when starting a sampler that was already stopped
var ErrSamplerStopped = errors.New("sampler stopped")

// SamplerConfig configures frame sampling
type SamplerConfig struct {
	// Interval between ticks of the live loop
	Interval time.Duration
	// Threshold is the maximum match distance
	Threshold float64
	// DetectTimeout bounds one detection call, 0 = no timeout
	DetectTimeout time.Duration
	// MinScore drops low-confidence detections
	MinScore float64
	// SingleShot marks matched students present on the first match
	SingleShot bool
	// OnTick is called after every processed tick that was not discarded
	OnTick func(TickResult)
	// OnStop is called once, from the sampler's own goroutine, when the live
	// loop stops itself on a fatal error. It is not called after Stop.
	OnStop func(error)
}

// FaceResult is one detected face of a tick
type FaceResult struct {
	BBox  []float64       `json:"bbox"` // relative [x1, y1, x2, y2]
	Match facematch.Match `json:"match"`
}

// TickResult describes one sampler tick
type TickResult struct {
	Seq       uint64       `json:"seq"`
	Faces     []FaceResult `json:"faces"`
	Confirmed []string     `json:"confirmed,omitempty"`
	Skipped   bool         `json:"skipped,omitempty"`   // a previous tick was still in flight
	Discarded bool         `json:"discarded,omitempty"` // finished after Stop
	Err       error        `json:"-"`
}

// Sampler pulls frames from a source, detects and matches faces and feeds the
// votes into the session state. At most one tick is in flight; ticks arriving
// while one is running are dropped, never queued.
type Sampler struct {
	source   capture.Source
	detector detector.Detector
	state    *State
	cfg      SamplerConfig

	inFlight atomic.Bool
	stopped  atomic.Bool
	ticks    atomic.Uint64
	skipped  atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSampler creates a sampler. It fails with ErrAIUnavailable when the
// session gallery is empty, so no match is ever attempted against nothing.
func NewSampler(source capture.Source, det detector.Detector, state *State, cfg SamplerConfig) (*Sampler, error) {
	if !state.AIAvailable() {
		return nil, ErrAIUnavailable
	}
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultSampleInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = constants.DefaultMatchThreshold
	}
	return &Sampler{source: source, detector: det, state: state, cfg: cfg}, nil
}

// Start schedules ticks every Interval until Stop or until ctx is done.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrSamplerStopped
	}
	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	slog.Info("session: sampler started", "class_id", s.state.ClassID(), "interval", s.cfg.Interval)
	return nil
}

func (s *Sampler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.stopped.Load() {
				return
			}
			if !s.inFlight.CompareAndSwap(false, true) {
				s.skipped.Add(1)
				continue
			}
			go func() {
				defer s.inFlight.Store(false)
				res := s.process(ctx)
				s.handleLoopResult(res)
			}()
		}
	}
}

func (s *Sampler) handleLoopResult(res TickResult) {
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, capture.ErrEndOfSequence), errors.Is(res.Err, facematch.ErrDimensionMismatch):
		slog.Error("session: stopping sampler", "class_id", s.state.ClassID(), "error", res.Err)
		go func() {
			first, err := s.stop()
			if err != nil {
				slog.Warn("session: closing source failed", "class_id", s.state.ClassID(), "error", err)
			}
			if first && s.cfg.OnStop != nil {
				s.cfg.OnStop(res.Err)
			}
		}()
	case s.stopped.Load():
	default:
		slog.Warn("session: tick failed", "class_id", s.state.ClassID(), "seq", res.Seq, "error", res.Err)
	}
}

// Tick runs a single tick synchronously. It returns a skipped result when a
// tick is already in flight.
func (s *Sampler) Tick(ctx context.Context) (TickResult, error) {
	if s.stopped.Load() {
		return TickResult{}, ErrSamplerStopped
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return TickResult{Skipped: true}, nil
	}
	defer s.inFlight.Store(false)

	res := s.process(ctx)
	return res, res.Err
}

// process handles one frame. The caller owns the in-flight flag.
func (s *Sampler) process(ctx context.Context) TickResult {
	s.ticks.Add(1)
	ctx, span := tracer.Start(ctx, "session.tick",
		trace.WithAttributes(attribute.String("class_id", s.state.ClassID()), attribute.Bool("single_shot", s.cfg.SingleShot)))
	defer span.End()

	res := s.detectAndMatch(ctx)
	span.SetAttributes(
		attribute.Int64("seq", int64(res.Seq)),
		attribute.Int("faces", len(res.Faces)),
		attribute.Int("confirmed", len(res.Confirmed)),
		attribute.Bool("discarded", res.Discarded),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	if !res.Discarded && s.cfg.OnTick != nil {
		s.cfg.OnTick(res)
	}
	return res
}

func (s *Sampler) detectAndMatch(ctx context.Context) TickResult {
	frame, err := s.source.NextFrame(ctx)
	if err != nil {
		return TickResult{Err: err, Discarded: s.stopped.Load()}
	}
	res := TickResult{Seq: frame.Seq}

	dctx := ctx
	if s.cfg.DetectTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.cfg.DetectTimeout)
		defer cancel()
	}

	faces, err := s.detector.Detect(dctx, frame.Data)
	if err != nil {
		res.Err = fmt.Errorf("detection failed: %w", err)
		res.Discarded = s.stopped.Load()
		return res
	}
	faces = detector.FilterByScore(faces, s.cfg.MinScore)

	gallery := s.state.Gallery()
	seen := make(map[string]bool, len(faces))
	var matched []string
	for _, f := range faces {
		m, err := gallery.Match(f.Embedding, s.cfg.Threshold)
		if err != nil {
			res.Err = err
			return res
		}
		res.Faces = append(res.Faces, FaceResult{
			BBox:  facematch.ConvertPixelBBoxToRelative(f.BBox, frame.Width, frame.Height),
			Match: m,
		})
		// One vote per student per frame.
		if m.Known && !seen[m.StudentID] {
			seen[m.StudentID] = true
			matched = append(matched, m.StudentID)
		}
	}

	if s.stopped.Load() {
		res.Discarded = true
		return res
	}
	s.state.SetLastFaces(len(faces))
	if s.cfg.SingleShot {
		res.Confirmed = s.state.ConfirmMatches(matched)
	} else {
		res.Confirmed = s.state.ApplyMatches(matched)
	}
	for _, id := range res.Confirmed {
		slog.Info("session: student confirmed", "class_id", s.state.ClassID(), "student_id", id)
	}
	return res
}

// Stop cancels scheduling and closes the source synchronously. Results of a
// tick still in flight are discarded. Safe to call more than once.
func (s *Sampler) Stop() error {
	_, err := s.stop()
	return err
}

// stop reports whether this call performed the stop.
func (s *Sampler) stop() (bool, error) {
	if !s.stopped.CompareAndSwap(false, true) {
		return false, nil
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := s.source.Close(); err != nil {
		return true, fmt.Errorf("closing capture source: %w", err)
	}
	slog.Info("session: sampler stopped", "class_id", s.state.ClassID(),
		"ticks", s.ticks.Load(), "skipped", s.skipped.Load())
	return true, nil
}

// Running reports whether the loop is scheduled
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns processed and skipped tick counts
func (s *Sampler) Stats() (ticks, skipped uint64) {
	return s.ticks.Load(), s.skipped.Load()
}
