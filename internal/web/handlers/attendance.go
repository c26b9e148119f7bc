package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// AttendanceHandler handles direct submissions and attendance history
type AttendanceHandler struct {
	recorder *attendance.Recorder
	history  *attendance.History
}

// NewAttendanceHandler creates an attendance handler
func NewAttendanceHandler(recorder *attendance.Recorder, history *attendance.History) *AttendanceHandler {
	return &AttendanceHandler{recorder: recorder, history: history}
}

// Submit records a present set chosen outside a capture session
func (h *AttendanceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req attendance.SubmitRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	record, err := h.recorder.Submit(r.Context(), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

// History lists the class's records newest first with present and absent students
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.history.List(r.Context(), chi.URLParam(r, "classId"), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []attendance.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}
