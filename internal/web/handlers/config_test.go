package handlers

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func TestConfigHandler_Get(t *testing.T) {
	tests := []struct {
		name        string
		snapshotURL string
		embedding   string
		wantSources []string
		wantAI      bool
	}{
		{"client camera only", "", "", []string{SourceClient}, false},
		{"with snapshot camera", "http://camera.local/snapshot.jpg", "http://embed:8000", []string{SourceClient, SourceSnapshot}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Capture.SnapshotURL = tt.snapshotURL
			cfg.Capture.SampleInterval = 700 * time.Millisecond
			cfg.Embedding.URL = tt.embedding
			cfg.Matching.Threshold = 0.55

			recorder := httptest.NewRecorder()
			NewConfigHandler(cfg).Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))
			assertStatusCode(t, recorder, http.StatusOK)
			assertContentType(t, recorder, "application/json")

			var resp ConfigResponse
			parseJSONResponse(t, recorder, &resp)
			if !slices.Equal(resp.Sources, tt.wantSources) {
				t.Errorf("sources = %v, want %v", resp.Sources, tt.wantSources)
			}
			if resp.AIAvailable != tt.wantAI {
				t.Errorf("ai_available = %v, want %v", resp.AIAvailable, tt.wantAI)
			}
			if resp.SampleIntervalMs != 700 || resp.MatchThreshold != 0.55 {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}
