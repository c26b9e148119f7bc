package mariadb

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

type fakeSource struct {
	classes []LegacyClass
	members map[int64][]LegacyStudent
	err     error
}

func (f *fakeSource) ListClasses(context.Context) ([]LegacyClass, error) {
	return f.classes, f.err
}

func (f *fakeSource) ListMembers(_ context.Context, classID int64) ([]LegacyStudent, error) {
	return f.members[classID], nil
}

func TestImport(t *testing.T) {
	src := &fakeSource{
		classes: []LegacyClass{
			{ID: 1, Code: "CS201", SubjectName: "Algorithms"},
			{ID: 2, Code: "CS305", SubjectName: "Networks"},
		},
		members: map[int64][]LegacyStudent{
			1: {
				{ID: 10, Name: "Alice", RollNo: "A-01", Descriptor: []float32{0.1, 0.2, 0.3}, FaceRegistered: true},
				{ID: 11, Name: "Bob", RollNo: "A-02", Descriptor: make([]float32, 128), FaceRegistered: true},
			},
			2: {
				{ID: 10, Name: "Alice", RollNo: "A-01", Descriptor: []float32{0.1, 0.2, 0.3}, FaceRegistered: true},
				{ID: 12, Name: "Cyril"},
			},
		},
	}
	store := mock.NewStore()

	var seen []string
	stats, err := Import(context.Background(), src, store, ImportOptions{
		EmbeddingDim: 3,
		OnClass:      func(c LegacyClass, _ int) { seen = append(seen, c.Code) },
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	want := ImportStats{Classes: 2, Students: 3, Enrollments: 4, Descriptors: 1, DroppedDescriptors: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(seen) != 2 || seen[0] != "CS201" {
		t.Errorf("OnClass calls = %v", seen)
	}

	alice, ok := store.Student(StudentID(10))
	if !ok || !alice.FaceRegistered || len(alice.Embedding) != 3 {
		t.Errorf("alice = %+v", alice)
	}
	bob, _ := store.Student(StudentID(11))
	if bob.FaceRegistered || bob.Embedding != nil {
		t.Errorf("bob should need re-registration, got %+v", bob)
	}

	roster, err := store.GetRoster(context.Background(), ClassID(2))
	if err != nil {
		t.Fatalf("GetRoster: %v", err)
	}
	if len(roster) != 2 {
		t.Errorf("class 2 roster = %d students, want 2", len(roster))
	}
}

func TestImportSourceError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := Import(context.Background(), &fakeSource{err: boom}, mock.NewStore(), ImportOptions{})
	if !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		raw     string
		wantLen int
		wantErr bool
	}{
		{"", 0, false},
		{"null", 0, false},
		{"[0.5, -0.25, 1]", 3, false},
		{"{\"0\": 0.5}", 0, true},
		{"[0.5,", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDescriptor(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}
