// Package storetest holds behavior tests shared by every database.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Run exercises the store contract against a fresh, empty store.
func Run(t *testing.T, store database.Store) {
	t.Helper()
	ctx := context.Background()

	class := &database.Class{
		ID:       "c1",
		Name:     "Algorithms",
		Code:     "CS201",
		Location: &database.ClassLocation{Lat: 12.9716, Long: 77.5946, RadiusMeters: 100},
	}
	if err := store.UpsertClass(ctx, class); err != nil {
		t.Fatalf("UpsertClass: %v", err)
	}
	if err := store.UpsertClass(ctx, &database.Class{ID: "c2", Name: "Remote Seminar"}); err != nil {
		t.Fatalf("UpsertClass c2: %v", err)
	}

	students := []database.Student{
		{ID: "s1", DisplayName: "Alice Nováková", RollNo: "A-01", Embedding: []float32{1, 0, 0}, FaceRegistered: true},
		{ID: "s2", DisplayName: "Bob Dvořák", RollNo: "A-02"},
		{ID: "s3", DisplayName: "Cyril Svoboda", RollNo: "A-03", Embedding: []float32{0, 0, 1}, FaceRegistered: true},
	}
	for i := range students {
		if err := store.UpsertStudent(ctx, &students[i]); err != nil {
			t.Fatalf("UpsertStudent %s: %v", students[i].ID, err)
		}
		if err := store.Enroll(ctx, "c1", students[i].ID); err != nil {
			t.Fatalf("Enroll %s: %v", students[i].ID, err)
		}
	}
	// repeated enrollment is a no-op
	if err := store.Enroll(ctx, "c1", "s1"); err != nil {
		t.Fatalf("Enroll twice: %v", err)
	}

	t.Run("GetClass", func(t *testing.T) {
		got, err := store.GetClass(ctx, "c1")
		if err != nil {
			t.Fatalf("GetClass: %v", err)
		}
		if got.Name != "Algorithms" || got.Code != "CS201" {
			t.Errorf("got %+v", got)
		}
		if got.Location == nil || got.Location.RadiusMeters != 100 || got.Location.Lat != 12.9716 {
			t.Errorf("location = %+v", got.Location)
		}

		remote, err := store.GetClass(ctx, "c2")
		if err != nil {
			t.Fatalf("GetClass c2: %v", err)
		}
		if remote.Location != nil {
			t.Errorf("expected no location, got %+v", remote.Location)
		}

		if _, err := store.GetClass(ctx, "missing"); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetRoster", func(t *testing.T) {
		roster, err := store.GetRoster(ctx, "c1")
		if err != nil {
			t.Fatalf("GetRoster: %v", err)
		}
		if len(roster) != 3 {
			t.Fatalf("expected 3 students, got %d", len(roster))
		}
		byID := make(map[string]database.Student)
		for _, s := range roster {
			byID[s.ID] = s
		}
		if s := byID["s1"]; !s.FaceRegistered || len(s.Embedding) != 3 || s.Embedding[0] != 1 {
			t.Errorf("s1 = %+v", s)
		}
		if s := byID["s2"]; s.FaceRegistered || s.Embedding != nil {
			t.Errorf("s2 should be unregistered, got %+v", s)
		}
		if byID["s1"].DisplayName != "Alice Nováková" || byID["s1"].RollNo != "A-01" {
			t.Errorf("s1 names = %+v", byID["s1"])
		}

		empty, err := store.GetRoster(ctx, "c2")
		if err != nil {
			t.Fatalf("GetRoster c2: %v", err)
		}
		if len(empty) != 0 {
			t.Errorf("expected empty roster, got %d", len(empty))
		}
	})

	t.Run("RegisterFace", func(t *testing.T) {
		if err := store.RegisterFace(ctx, "s2", []float32{0, 1, 0}); err != nil {
			t.Fatalf("RegisterFace: %v", err)
		}
		// overwrite
		if err := store.RegisterFace(ctx, "s2", []float32{0, 0.5, 0.5}); err != nil {
			t.Fatalf("RegisterFace overwrite: %v", err)
		}
		roster, err := store.GetRoster(ctx, "c1")
		if err != nil {
			t.Fatalf("GetRoster: %v", err)
		}
		for _, s := range roster {
			if s.ID != "s2" {
				continue
			}
			if !s.FaceRegistered || len(s.Embedding) != 3 || s.Embedding[1] != 0.5 {
				t.Errorf("s2 after registration = %+v", s)
			}
		}

		if err := store.RegisterFace(ctx, "ghost", []float32{1, 1, 1}); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown student, got %v", err)
		}
	})

	t.Run("UpsertStudentKeepsEmbedding", func(t *testing.T) {
		if err := store.UpsertStudent(ctx, &database.Student{ID: "s1", DisplayName: "Alice Novakova", RollNo: "A-01"}); err != nil {
			t.Fatalf("UpsertStudent: %v", err)
		}
		roster, err := store.GetRoster(ctx, "c1")
		if err != nil {
			t.Fatalf("GetRoster: %v", err)
		}
		for _, s := range roster {
			if s.ID == "s1" {
				if s.DisplayName != "Alice Novakova" {
					t.Errorf("name not updated: %q", s.DisplayName)
				}
				if !s.FaceRegistered || len(s.Embedding) != 3 {
					t.Errorf("embedding lost: %+v", s)
				}
			}
		}
	})

	t.Run("AppendAndListRecords", func(t *testing.T) {
		base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		records := []*database.AttendanceRecord{
			{ID: "7f1c1d5e-0000-4000-8000-000000000001", ClassID: "c1", Timestamp: base,
				Entries: []database.AttendanceEntry{{StudentID: "s1", Status: database.StatusPresent}}},
			{ID: "7f1c1d5e-0000-4000-8000-000000000002", ClassID: "c1", Timestamp: base.Add(24 * time.Hour),
				Entries: []database.AttendanceEntry{
					{StudentID: "s1", Status: database.StatusPresent},
					{StudentID: "s3", Status: database.StatusPresent},
				}},
			{ID: "7f1c1d5e-0000-4000-8000-000000000003", ClassID: "c1", Timestamp: base.Add(48 * time.Hour)},
		}
		for _, r := range records {
			if err := store.AppendRecord(ctx, r); err != nil {
				t.Fatalf("AppendRecord %s: %v", r.ID, err)
			}
		}

		got, err := store.ListRecords(ctx, "c1", 0)
		if err != nil {
			t.Fatalf("ListRecords: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 records, got %d", len(got))
		}
		if got[0].ID != records[2].ID || got[2].ID != records[0].ID {
			t.Errorf("records not newest first: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
		}
		if len(got[0].Entries) != 0 {
			t.Errorf("empty record has %d entries", len(got[0].Entries))
		}
		if len(got[1].Entries) != 2 || !got[1].IsPresent("s3") || got[1].IsPresent("s2") {
			t.Errorf("second record entries = %+v", got[1].Entries)
		}
		if !got[2].Timestamp.Equal(base) {
			t.Errorf("timestamp = %v, want %v", got[2].Timestamp, base)
		}

		limited, err := store.ListRecords(ctx, "c1", 2)
		if err != nil {
			t.Fatalf("ListRecords limit: %v", err)
		}
		if len(limited) != 2 || limited[0].ID != records[2].ID {
			t.Errorf("limit 2 returned %d records", len(limited))
		}

		other, err := store.ListRecords(ctx, "c2", 0)
		if err != nil {
			t.Fatalf("ListRecords c2: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("expected no records for c2, got %d", len(other))
		}
	})
}
