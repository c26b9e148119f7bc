package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// ConfigHandler exposes the settings a capture client needs
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{config: cfg}
}

// ConfigResponse is the client-facing configuration
type ConfigResponse struct {
	MatchThreshold        float64  `json:"match_threshold"`
	ConfirmationThreshold int      `json:"confirmation_threshold"`
	SampleIntervalMs      int64    `json:"sample_interval_ms"`
	Sources               []string `json:"sources"`
	AIAvailable           bool     `json:"ai_available"`
	Storage               string   `json:"storage,omitempty"`
}

// Get returns the configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	sources := []string{SourceClient}
	if h.config.Capture.SnapshotURL != "" {
		sources = append(sources, SourceSnapshot)
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		MatchThreshold:        h.config.Matching.Threshold,
		ConfirmationThreshold: h.config.Matching.ConfirmationThreshold,
		SampleIntervalMs:      h.config.Capture.SampleInterval.Milliseconds(),
		Sources:               sources,
		AIAvailable:           h.config.Embedding.URL != "",
		Storage:               database.BackendName(),
	})
}
