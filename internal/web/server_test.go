package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func newTestServer(t *testing.T) (*httptest.Server, *mock.Store) {
	t.Helper()
	store := mock.NewStore()
	store.AddClass(
		database.Class{ID: "c1", Name: "Algorithms",
			Location: &database.ClassLocation{Lat: 12.9716, Long: 77.5946, RadiusMeters: 100}},
		database.Student{ID: "S1", DisplayName: "Jan Novák", Embedding: []float32{1, 0}, FaceRegistered: true},
		database.Student{ID: "S2", DisplayName: "Eva Dvořáková"},
	)

	cfg := config.Defaults()
	cfg.Web.AllowedOrigins = []string{"https://attendance.example.com"}

	recorder := attendance.NewRecorder(store, store)
	s := NewServer(cfg, Services{
		Manager: attendance.NewManager(store, store, recorder, nil, attendance.Config{
			Threshold:             cfg.Matching.Threshold,
			ConfirmationThreshold: cfg.Matching.ConfirmationThreshold,
			SampleInterval:        cfg.Capture.SampleInterval,
		}),
		Recorder: recorder,
		History:  attendance.NewHistory(store, store),
	})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, method, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s %s: %v\nBody: %s", method, url, err, data)
		}
	}
	return resp.StatusCode
}

func TestServer_ManualSessionFlow(t *testing.T) {
	ts, store := newTestServer(t)
	api := ts.URL + "/api/v1"

	var info attendance.Info
	if code := doJSON(t, http.MethodPost, api+"/sessions", `{"classId":"c1"}`, &info); code != http.StatusCreated {
		t.Fatalf("open session: status %d", code)
	}

	// no embedding service: live capture is refused, manual marking works
	if code := doJSON(t, http.MethodPost, api+"/sessions/"+info.ID+"/live", ``, nil); code != http.StatusConflict {
		t.Errorf("start live without detector: status %d, want 409", code)
	}
	if code := doJSON(t, http.MethodPost, api+"/sessions/"+info.ID+"/students/S2/toggle", ``, nil); code != http.StatusOK {
		t.Fatalf("toggle: status %d", code)
	}

	var sessions []attendance.Info
	if code := doJSON(t, http.MethodGet, api+"/sessions", ``, &sessions); code != http.StatusOK || len(sessions) != 1 {
		t.Fatalf("list sessions: status %d, %d sessions", code, len(sessions))
	}
	if sessions[0].Snapshot.Students != nil {
		t.Error("session list should not include rosters")
	}

	var record database.AttendanceRecord
	if code := doJSON(t, http.MethodPost, api+"/sessions/"+info.ID+"/submit", `{}`, &record); code != http.StatusCreated {
		t.Fatalf("submit: status %d", code)
	}
	if !record.IsPresent("S2") || record.IsPresent("S1") {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(store.Records()) != 1 {
		t.Errorf("stored %d records, want 1", len(store.Records()))
	}

	var history []attendance.HistoryEntry
	if code := doJSON(t, http.MethodGet, api+"/classes/c1/attendance", ``, &history); code != http.StatusOK {
		t.Fatalf("history: status %d", code)
	}
	if len(history) != 1 || len(history[0].Present) != 1 || len(history[0].Absent) != 1 {
		t.Errorf("unexpected history: %+v", history)
	}

	if code := doJSON(t, http.MethodGet, api+"/sessions/"+info.ID, ``, nil); code != http.StatusNotFound {
		t.Errorf("submitted session should be gone, status %d", code)
	}
}

func TestServer_FaceRegistrationDisabled(t *testing.T) {
	ts, _ := newTestServer(t)
	code := doJSON(t, http.MethodPost, ts.URL+"/api/v1/students/S2/face", `{"images":["aGk="]}`, nil)
	if code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503", code)
	}
}

func TestServer_HealthAndHeaders(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://attendance.example.com", "https://attendance.example.com"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/sessions", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("preflight: %v", err)
			}
			resp.Body.Close()
			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
