package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/detector"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/geofence"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var (
	// ErrSessionNotFound is returned for unknown session ids
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when operating on a submitted or cancelled session
	ErrSessionClosed = errors.New("session is closed")

	// ErrCaptureActive is returned when a session already runs live capture or
	// a stills scan, since a session detects at most one frame at a time
	ErrCaptureActive = errors.New("capture already running for session")
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusOpen      Status = "open"
	StatusLive      Status = "live"
	StatusSubmitted Status = "submitted"
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true for submitted and cancelled sessions
func (s Status) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusCancelled
}

// Config holds the matching and capture settings applied to every session
type Config struct {
	Threshold             float64
	ConfirmationThreshold int
	StickyOverrides       bool
	SampleInterval        time.Duration
	DetectTimeout         time.Duration
	MinScore              float64
	StillMinScore         float64
	MaxImageSize          int
}

// Session is one attendance capture attempt for a class
type Session struct {
	EventBroadcaster

	ID        string
	ClassID   string
	ClassName string
	CreatedAt time.Time
	State     *session.State

	mu        sync.Mutex
	status    Status
	stream    *capture.LiveStream
	sampler   *session.Sampler
	push      *capture.PushDevice
	scanning  bool
	lastError string
}

// GetStatus returns the current session status
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Info is the JSON view of a session
type Info struct {
	ID        string           `json:"id"`
	ClassID   string           `json:"class_id"`
	ClassName string           `json:"class_name"`
	Status    Status           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Device    string           `json:"device,omitempty"`
	Ticks     uint64           `json:"ticks"`
	Skipped   uint64           `json:"skipped"`
	LastError string           `json:"last_error,omitempty"`
	Snapshot  session.Snapshot `json:"snapshot"`
}

// Info returns the session with a snapshot of its state, filtered by query when not empty
func (s *Session) Info(query string) Info {
	s.mu.Lock()
	info := Info{
		ID:        s.ID,
		ClassID:   s.ClassID,
		ClassName: s.ClassName,
		Status:    s.status,
		CreatedAt: s.CreatedAt,
		LastError: s.lastError,
	}
	if s.stream != nil && s.stream.Active() {
		info.Device = s.stream.DeviceName()
	}
	if s.sampler != nil {
		info.Ticks, info.Skipped = s.sampler.Stats()
	}
	s.mu.Unlock()

	info.Snapshot = s.State.Search(query)
	return info
}

// Manager keeps the open sessions and drives their capture
type Manager struct {
	classes  database.ClassReader
	roster   database.RosterReader
	recorder *Recorder
	detector detector.Detector
	cfg      Config

	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a session manager. A nil detector disables automatic matching.
func NewManager(classes database.ClassReader, roster database.RosterReader, recorder *Recorder, det detector.Detector, cfg Config) *Manager {
	return &Manager{
		classes:  classes,
		roster:   roster,
		recorder: recorder,
		detector: det,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Open fetches the class roster and creates a session. When no student has a
// registered face the session is still created, with AI matching unavailable.
func (m *Manager) Open(ctx context.Context, classID string) (*Session, error) {
	class, err := m.classes.GetClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get class %s: %w", classID, err)
	}
	roster, err := m.roster.GetRoster(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}

	gallery, err := facematch.BuildGallery(roster)
	if err != nil {
		return nil, err
	}
	if d, ok := m.detector.(interface{ Dim() int }); ok && d.Dim() > 0 {
		if err := gallery.CheckDim(d.Dim()); err != nil {
			return nil, err
		}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		ClassID:   class.ID,
		ClassName: class.Name,
		CreatedAt: time.Now(),
		status:    StatusOpen,
		State: session.NewState(class.ID, roster, gallery, session.Options{
			ConfirmationThreshold: m.cfg.ConfirmationThreshold,
			StickyOverrides:       m.cfg.StickyOverrides,
		}),
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	slog.Info("attendance: session opened", "session_id", sess.ID, "class_id", class.ID,
		"students", len(roster), "gallery", gallery.Len())
	if gallery.Empty() {
		slog.Warn("attendance: no registered faces, manual marking only", "session_id", sess.ID)
	}
	return sess, nil
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// List returns all open sessions
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) aiAvailable(sess *Session) error {
	if m.detector == nil || !sess.State.AIAvailable() {
		return session.ErrAIUnavailable
	}
	return nil
}

// StartLive acquires the device and starts sampling. A running capture is stopped first.
func (m *Manager) StartLive(ctx context.Context, id string, device capture.Device) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := m.aiAvailable(sess); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status.IsTerminal() {
		return ErrSessionClosed
	}
	if sess.scanning {
		return ErrCaptureActive
	}

	m.stopLiveLocked(sess)
	stream := capture.NewLiveStream(device, m.cfg.MaxImageSize)
	if err := stream.Acquire(ctx); err != nil {
		m.captureFailedLocked(sess, err)
		return err
	}
	return m.startSamplerLocked(ctx, sess, stream, device)
}

// SwitchDevice stops the current device, acquires the new one and resumes sampling.
// Votes and presence are kept.
func (m *Manager) SwitchDevice(ctx context.Context, id string, device capture.Device) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := m.aiAvailable(sess); err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status.IsTerminal() {
		return ErrSessionClosed
	}
	if sess.scanning {
		return ErrCaptureActive
	}

	if sess.sampler != nil {
		if err := sess.sampler.Stop(); err != nil {
			slog.Warn("attendance: stopping sampler before switch failed", "session_id", sess.ID, "error", err)
		}
		sess.sampler = nil
	}
	stream := sess.stream
	if stream == nil {
		stream = capture.NewLiveStream(nil, m.cfg.MaxImageSize)
	}
	if err := stream.Switch(ctx, device); err != nil {
		sess.stream = nil
		sess.push = nil
		sess.status = StatusOpen
		m.captureFailedLocked(sess, err)
		return err
	}
	return m.startSamplerLocked(ctx, sess, stream, device)
}

func (m *Manager) captureFailedLocked(sess *Session, err error) {
	sess.lastError = err.Error()
	slog.Warn("attendance: capture unavailable", "session_id", sess.ID, "error", err)
	sess.SendEvent(Event{Type: EventError, Message: err.Error()})
}

func (m *Manager) startSamplerLocked(ctx context.Context, sess *Session, stream *capture.LiveStream, device capture.Device) error {
	var sampler *session.Sampler
	cfg := m.samplerConfig(sess, false)
	cfg.OnStop = func(cause error) {
		m.samplerStopped(sess, sampler, cause)
	}
	sampler, err := session.NewSampler(stream, m.detector, sess.State, cfg)
	if err != nil {
		_ = stream.Release()
		return err
	}
	// The sampler outlives the request that started it.
	if err := sampler.Start(context.WithoutCancel(ctx)); err != nil {
		_ = stream.Release()
		return err
	}

	sess.stream = stream
	sess.sampler = sampler
	sess.push, _ = device.(*capture.PushDevice)
	sess.status = StatusLive
	sess.lastError = ""
	sess.SendEvent(Event{Type: EventLive, Message: "capture started", Data: map[string]string{"device": device.Name()}})
	return nil
}

// samplerStopped returns a session to open after its live sampler stopped
// itself. A sampler that was already replaced or stopped is ignored.
func (m *Manager) samplerStopped(sess *Session, sampler *session.Sampler, cause error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sampler == nil || sess.sampler != sampler {
		return
	}

	sess.sampler = nil
	if sess.stream != nil {
		if err := sess.stream.Release(); err != nil {
			slog.Warn("attendance: releasing device failed", "session_id", sess.ID, "error", err)
		}
		sess.stream = nil
	}
	sess.push = nil
	sess.status = StatusOpen
	sess.lastError = cause.Error()
	slog.Error("attendance: live capture stopped", "session_id", sess.ID, "error", cause)
	sess.SendEvent(Event{Type: EventError, Message: cause.Error()})
}

func (m *Manager) samplerConfig(sess *Session, still bool) session.SamplerConfig {
	cfg := session.SamplerConfig{
		Interval:      m.cfg.SampleInterval,
		Threshold:     m.cfg.Threshold,
		DetectTimeout: m.cfg.DetectTimeout,
		MinScore:      m.cfg.MinScore,
	}
	if still {
		cfg.MinScore = m.cfg.StillMinScore
		cfg.SingleShot = true
		return cfg
	}
	cfg.OnTick = func(res session.TickResult) {
		m.publishTick(sess, res)
	}
	return cfg
}

func (m *Manager) publishTick(sess *Session, res session.TickResult) {
	data := map[string]any{"seq": res.Seq, "faces": res.Faces}
	ev := Event{Type: EventTick, Data: data}
	if res.Err != nil {
		ev.Message = res.Err.Error()
	}
	sess.SendEvent(ev)
	for _, id := range res.Confirmed {
		sess.SendEvent(Event{Type: EventConfirmed, Data: map[string]string{"student_id": id}})
	}
}

// StopLive stops sampling and releases the device synchronously.
func (m *Manager) StopLive(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status.IsTerminal() {
		return ErrSessionClosed
	}
	m.stopLiveLocked(sess)
	sess.status = StatusOpen
	sess.SendEvent(Event{Type: EventLive, Message: "capture stopped"})
	return nil
}

func (m *Manager) stopLiveLocked(sess *Session) {
	if sess.sampler != nil {
		if err := sess.sampler.Stop(); err != nil {
			slog.Warn("attendance: stopping sampler failed", "session_id", sess.ID, "error", err)
		}
		sess.sampler = nil
	}
	if sess.stream != nil {
		if err := sess.stream.Release(); err != nil {
			slog.Warn("attendance: releasing device failed", "session_id", sess.ID, "error", err)
		}
		sess.stream = nil
	}
	sess.push = nil
}

// PushFrame delivers a client camera frame to a live session using a push device.
func (m *Manager) PushFrame(id string, data []byte) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	push := sess.push
	sess.mu.Unlock()

	if push == nil {
		return fmt.Errorf("session %s has no client camera: %w", id, capture.ErrCaptureUnavailable)
	}
	return push.Push(data)
}

// StillResult is the outcome of scanning one uploaded image
type StillResult struct {
	Index     int                  `json:"index"`
	Faces     []session.FaceResult `json:"faces"`
	Confirmed []string             `json:"confirmed,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// ScanStills detects and matches faces in each uploaded image once, in order.
// Matched students are marked present immediately. A bad image is reported and skipped.
// It fails with ErrCaptureActive while live capture or another scan is running.
func (m *Manager) ScanStills(ctx context.Context, id string, images [][]byte) ([]StillResult, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := m.aiAvailable(sess); err != nil {
		return nil, err
	}

	sess.mu.Lock()
	switch {
	case sess.status.IsTerminal():
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	case sess.status == StatusLive, sess.scanning:
		sess.mu.Unlock()
		return nil, ErrCaptureActive
	}
	sess.scanning = true
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		sess.scanning = false
		sess.mu.Unlock()
	}()

	seq := capture.NewStillImageSequence(images, m.cfg.MaxImageSize)
	sampler, err := session.NewSampler(seq, m.detector, sess.State, m.samplerConfig(sess, true))
	if err != nil {
		return nil, err
	}
	defer sampler.Stop()

	results := make([]StillResult, 0, len(images))
	for i := 0; ; i++ {
		res, err := sampler.Tick(ctx)
		if errors.Is(err, capture.ErrEndOfSequence) {
			break
		}
		if errors.Is(err, facematch.ErrDimensionMismatch) || ctx.Err() != nil {
			return results, errors.Join(err, ctx.Err())
		}

		r := StillResult{Index: i, Faces: res.Faces, Confirmed: res.Confirmed}
		if err != nil {
			r.Error = err.Error()
			slog.Warn("attendance: still image failed", "session_id", sess.ID, "index", i, "error", err)
		}
		results = append(results, r)
		for _, sid := range res.Confirmed {
			sess.SendEvent(Event{Type: EventConfirmed, Data: map[string]string{"student_id": sid}})
		}
	}
	return results, nil
}

// Toggle flips a student's presence manually
func (m *Manager) Toggle(id, studentID string) (bool, error) {
	sess, err := m.Get(id)
	if err != nil {
		return false, err
	}
	present, err := sess.State.Toggle(studentID)
	if err != nil {
		return false, err
	}
	sess.SendEvent(Event{Type: EventToggled, Data: map[string]any{"student_id": studentID, "present": present}})
	return present, nil
}

// Reset clears votes, presence and overrides while keeping the roster
func (m *Manager) Reset(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	sess.State.Reset()
	sess.SendEvent(Event{Type: EventReset})
	return nil
}

// Submit records the present students. On failure the session stays open so
// the operator can retry; on success it is closed.
func (m *Manager) Submit(ctx context.Context, id string, location *geofence.Coordinate) (*database.AttendanceRecord, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status.IsTerminal() {
		return nil, ErrSessionClosed
	}

	record, err := m.recorder.Submit(ctx, SubmitRequest{
		ClassID:    sess.ClassID,
		PresentIDs: sess.State.PresentIDs(),
		Location:   location,
	})
	if err != nil {
		return nil, err
	}

	m.closeLocked(sess, StatusSubmitted)
	sess.SendEvent(Event{Type: EventSubmitted, Data: record})
	return record, nil
}

// Cancel stops capture and discards the session
func (m *Manager) Cancel(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.status.IsTerminal() {
		return ErrSessionClosed
	}
	m.closeLocked(sess, StatusCancelled)
	sess.SendEvent(Event{Type: EventCancelled, Message: "Session cancelled by user"})
	return nil
}

func (m *Manager) closeLocked(sess *Session, status Status) {
	m.stopLiveLocked(sess)
	sess.status = status

	m.mu.Lock()
	delete(m.sessions, sess.ID)
	m.mu.Unlock()

	slog.Info("attendance: session closed", "session_id", sess.ID, "status", status)
}

// Shutdown stops capture in every session
func (m *Manager) Shutdown() {
	for _, sess := range m.List() {
		sess.mu.Lock()
		m.stopLiveLocked(sess)
		if sess.status == StatusLive {
			sess.status = StatusOpen
		}
		sess.mu.Unlock()
	}
}
