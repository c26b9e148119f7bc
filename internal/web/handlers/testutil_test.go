package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/detector"
)

// newTestStore creates a mock store with class c1 (located, S1 and S2
// registered, S3 not) and class c2 (no location)
func newTestStore() *mock.Store {
	store := mock.NewStore()
	store.AddClass(
		database.Class{ID: "c1", Name: "Algorithms", Code: "ALG",
			Location: &database.ClassLocation{Lat: 12.9716, Long: 77.5946, RadiusMeters: 100}},
		database.Student{ID: "S1", DisplayName: "Jan Novák", RollNo: "A-01", Embedding: []float32{1, 0}, FaceRegistered: true},
		database.Student{ID: "S2", DisplayName: "Eva Dvořáková", RollNo: "A-02", Embedding: []float32{0, 1}, FaceRegistered: true},
		database.Student{ID: "S3", DisplayName: "Petr Svoboda", RollNo: "A-03"},
	)
	store.AddClass(database.Class{ID: "c2", Name: "Remote seminar"},
		database.Student{ID: "S4", DisplayName: "Karel Malý"},
	)
	return store
}

// faceOf returns a detector that sees one face with the given embedding
func faceOf(emb ...float32) detector.Detector {
	return detector.Func(func(_ context.Context, _ []byte) ([]detector.Face, error) {
		return []detector.Face{{BBox: []float64{0, 0, 20, 20}, Embedding: emb, Score: 0.9}}, nil
	})
}

func newTestManager(store *mock.Store, det detector.Detector) *attendance.Manager {
	return attendance.NewManager(store, store, attendance.NewRecorder(store, store), det, attendance.Config{
		Threshold:             0.6,
		ConfirmationThreshold: 3,
		SampleInterval:        5 * time.Millisecond,
		MaxImageSize:          100,
	})
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for x := range 40 {
		for y := range 40 {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}
