package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// FacesHandler handles face registration
type FacesHandler struct {
	registrar *attendance.Registrar
}

// NewFacesHandler creates a faces handler. A nil registrar means no
// embedding service is configured.
func NewFacesHandler(registrar *attendance.Registrar) *FacesHandler {
	return &FacesHandler{registrar: registrar}
}

// Register stores the mean embedding of at least three photos of the student
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.registrar == nil {
		respondError(w, http.StatusServiceUnavailable, "face embedding service is not configured")
		return
	}

	images, err := readImages(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	studentID := chi.URLParam(r, "studentId")
	result, err := h.registrar.Register(r.Context(), studentID, images)
	if errors.Is(err, facematch.ErrNotEnoughSamples) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  err.Error(),
			"result": result,
		})
		return
	}
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
