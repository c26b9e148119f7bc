package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/geofence"
)

func newMockStore() *mock.Store {
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

func TestRecorder_SubmitGeofence(t *testing.T) {
	tests := []struct {
		name        string
		location    *geofence.Coordinate
		wantMessage string
	}{
		{"111m away", &geofence.Coordinate{Lat: 12.9726, Long: 77.5946}, "You are 111m away. Must be within 100m."},
		{"44m away", &geofence.Coordinate{Lat: 12.9720, Long: 77.5946}, ""},
		{"no location given", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			rec := NewRecorder(store, store)

			record, err := rec.Submit(context.Background(), SubmitRequest{
				ClassID:    "c1",
				PresentIDs: []string{"S1"},
				Location:   tt.location,
			})

			if tt.wantMessage == "" {
				if err != nil {
					t.Fatalf("Submit() error: %v", err)
				}
				if len(record.Entries) != 1 {
					t.Errorf("expected 1 entry, got %d", len(record.Entries))
				}
				return
			}

			var v *geofence.Violation
			if !errors.As(err, &v) {
				t.Fatalf("expected *geofence.Violation, got %v", err)
			}
			if err.Error() != tt.wantMessage {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMessage)
			}
			if store.AppendCalls != 0 {
				t.Error("violation must not write a record")
			}
		})
	}
}

func TestRecorder_ClassWithoutLocationSkipsGeofence(t *testing.T) {
	store := newMockStore()
	rec := NewRecorder(store, store)

	_, err := rec.Submit(context.Background(), SubmitRequest{
		ClassID:    "c2",
		PresentIDs: []string{"S4"},
		Location:   &geofence.Coordinate{Lat: -33.86, Long: 151.2},
	})
	if err != nil {
		t.Errorf("expected no geofence check without class location, got %v", err)
	}
}

func TestRecorder_EmptyPresentSet(t *testing.T) {
	store := newMockStore()
	rec := NewRecorder(store, store)

	record, err := rec.Submit(context.Background(), SubmitRequest{ClassID: "c1"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if record.Entries == nil || len(record.Entries) != 0 {
		t.Errorf("expected zero entries, got %v", record.Entries)
	}
	if len(store.Records()) != 1 {
		t.Error("expected the empty record to be stored")
	}
}

func TestRecorder_AppendsEveryTime(t *testing.T) {
	store := newMockStore()
	rec := NewRecorder(store, store)
	ctx := context.Background()

	first, err := rec.Submit(ctx, SubmitRequest{ClassID: "c1", PresentIDs: []string{"S2", "S1", "S2"}})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := rec.Submit(ctx, SubmitRequest{ClassID: "c1", PresentIDs: []string{"S1"}})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if first.ID == second.ID {
		t.Error("expected distinct record ids")
	}
	if len(store.Records()) != 2 {
		t.Errorf("expected 2 records, got %d", len(store.Records()))
	}
	if len(first.Entries) != 2 || first.Entries[0].StudentID != "S1" || first.Entries[1].StudentID != "S2" {
		t.Errorf("expected sorted unique entries, got %v", first.Entries)
	}
	for _, e := range first.Entries {
		if e.Status != database.StatusPresent {
			t.Errorf("unexpected status %q", e.Status)
		}
	}
}

func TestRecorder_StorageError(t *testing.T) {
	store := newMockStore()
	store.AppendRecordError = errors.New("connection reset")
	rec := NewRecorder(store, store)

	_, err := rec.Submit(context.Background(), SubmitRequest{ClassID: "c1", PresentIDs: []string{"S1"}})
	if !errors.Is(err, ErrSubmission) {
		t.Errorf("expected ErrSubmission, got %v", err)
	}
	if store.AppendCalls != 1 {
		t.Errorf("expected exactly one attempt, got %d", store.AppendCalls)
	}
}

func TestRecorder_UnknownClass(t *testing.T) {
	store := newMockStore()
	rec := NewRecorder(store, store)

	_, err := rec.Submit(context.Background(), SubmitRequest{ClassID: "nope"})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistory_List(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i, present := range [][]string{{"S1"}, {"S1", "S2", "gone"}} {
		if err := store.AppendRecord(ctx, NewRecord("c1", present, base.Add(time.Duration(i)*24*time.Hour))); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}

	entries, err := NewHistory(store, store).List(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Timestamp.After(entries[1].Timestamp) {
		t.Error("expected newest first")
	}

	newest := entries[0]
	if len(newest.Present) != 3 || len(newest.Absent) != 1 || newest.Absent[0].ID != "S3" {
		t.Errorf("unexpected newest entry: %+v", newest)
	}
	for _, p := range newest.Present {
		if p.ID == "gone" && p.DisplayName != "" {
			t.Error("unenrolled student should have no resolved name")
		}
		if p.ID == "S1" && p.DisplayName != "Jan Novák" {
			t.Errorf("expected resolved name, got %q", p.DisplayName)
		}
	}

	oldest := entries[1]
	if len(oldest.Absent) != 2 {
		t.Errorf("expected S2 and S3 absent in oldest, got %+v", oldest.Absent)
	}
}
