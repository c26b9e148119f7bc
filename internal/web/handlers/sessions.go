package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/geofence"
)

// Capture sources a client can request
const (
	SourceClient   = "client"
	SourceSnapshot = "snapshot"
)

// SessionsHandler handles attendance session endpoints
type SessionsHandler struct {
	manager     *attendance.Manager
	snapshotURL string
}

// NewSessionsHandler creates a sessions handler. An empty snapshotURL
// disables the server-side camera source.
func NewSessionsHandler(manager *attendance.Manager, snapshotURL string) *SessionsHandler {
	return &SessionsHandler{manager: manager, snapshotURL: snapshotURL}
}

type openSessionRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

type liveRequest struct {
	Source string `json:"source" validate:"omitempty,oneof=client snapshot"`
	Facing string `json:"facing" validate:"omitempty,oneof=user environment"`
}

type submitSessionRequest struct {
	Location *geofence.Coordinate `json:"location"`
}

func (h *SessionsHandler) session(w http.ResponseWriter, r *http.Request) (*attendance.Session, bool) {
	sess, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	return sess, true
}

// Open starts a new session for a class
func (h *SessionsHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	sess, err := h.manager.Open(r.Context(), req.ClassID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	log.Printf("Opened attendance session %s for class %s", sess.ID, sanitizeForLog(req.ClassID))
	respondJSON(w, http.StatusCreated, sess.Info(""))
}

// List returns all open sessions without their rosters
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	out := make([]attendance.Info, 0, len(sessions))
	for _, s := range sessions {
		info := s.Info("")
		info.Snapshot.Students = nil
		out = append(out, info)
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns the session state; ?q= filters students by name or roll number
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.Info(r.URL.Query().Get("q")))
}

func (h *SessionsHandler) device(req liveRequest) (capture.Device, error) {
	switch req.Source {
	case SourceSnapshot:
		if h.snapshotURL == "" {
			return nil, fmt.Errorf("no snapshot camera configured: %w", capture.ErrCaptureUnavailable)
		}
		return capture.NewSnapshotDevice(h.snapshotURL), nil
	default:
		name := SourceClient
		if req.Facing != "" {
			name += ":" + req.Facing
		}
		return capture.NewPushDevice(name), nil
	}
}

// StartLive acquires a camera and starts sampling
func (h *SessionsHandler) StartLive(w http.ResponseWriter, r *http.Request) {
	var req liveRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	dev, err := h.device(req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.manager.StartLive(r.Context(), id, dev); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.Get(w, r)
}

// SwitchDevice switches to another camera while keeping votes
func (h *SessionsHandler) SwitchDevice(w http.ResponseWriter, r *http.Request) {
	var req liveRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	dev, err := h.device(req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	if err := h.manager.SwitchDevice(r.Context(), chi.URLParam(r, "id"), dev); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.Get(w, r)
}

// StopLive stops sampling and releases the camera
func (h *SessionsHandler) StopLive(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.StopLive(chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.Get(w, r)
}

// PushFrame accepts one frame from the client camera
func (h *SessionsHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.manager.PushFrame(chi.URLParam(r, "id"), frame); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Stills scans uploaded classroom photos once each
func (h *SessionsHandler) Stills(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	images, err := readImages(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.manager.ScanStills(r.Context(), sess.ID, images)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"session": sess.Info(""),
	})
}

// Toggle flips a student's presence
func (h *SessionsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	present, err := h.manager.Toggle(chi.URLParam(r, "id"), studentID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"student_id": studentID, "present": present})
}

// Reset clears votes, presence and overrides
func (h *SessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reset(chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.Get(w, r)
}

// Submit records attendance and closes the session
func (h *SessionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	record, err := h.manager.Submit(r.Context(), chi.URLParam(r, "id"), req.Location)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// Cancel discards the session
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Cancel(chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams session updates via SSE
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSessionEvents(w, r, h.manager.Get)
}
