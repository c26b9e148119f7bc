package mariadb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Source is the read side of the legacy database
type Source interface {
	ListClasses(ctx context.Context) ([]LegacyClass, error)
	ListMembers(ctx context.Context, classID int64) ([]LegacyStudent, error)
}

// ImportOptions controls how legacy rows are translated
type ImportOptions struct {
	// EmbeddingDim is the dimensionality of the current embedding service.
	// Descriptors of any other length are dropped and the student must
	// re-register. Zero drops all descriptors.
	EmbeddingDim int
	// OnClass is called after each class has been imported.
	OnClass func(class LegacyClass, students int)
}

// ImportStats summarizes an import run
type ImportStats struct {
	Classes            int
	Students           int
	Enrollments        int
	Descriptors        int // descriptors carried over
	DroppedDescriptors int // descriptors with a foreign dimensionality
}

// Import copies classes, students and enrollments into dst. It is safe to
// run repeatedly; existing rows are updated.
func Import(ctx context.Context, src Source, dst database.RosterWriter, opts ImportOptions) (ImportStats, error) {
	var stats ImportStats

	classes, err := src.ListClasses(ctx)
	if err != nil {
		return stats, err
	}

	seen := make(map[int64]bool)
	for _, lc := range classes {
		class := &database.Class{ID: ClassID(lc.ID), Name: lc.SubjectName, Code: lc.Code}
		if err := dst.UpsertClass(ctx, class); err != nil {
			return stats, fmt.Errorf("import class %s: %w", lc.Code, err)
		}
		stats.Classes++

		members, err := src.ListMembers(ctx, lc.ID)
		if err != nil {
			return stats, fmt.Errorf("members of %s: %w", lc.Code, err)
		}

		for _, m := range members {
			if !seen[m.ID] {
				seen[m.ID] = true
				student := translateStudent(m, opts.EmbeddingDim, &stats)
				if err := dst.UpsertStudent(ctx, student); err != nil {
					return stats, fmt.Errorf("import student %d: %w", m.ID, err)
				}
				stats.Students++
			}
			if err := dst.Enroll(ctx, class.ID, StudentID(m.ID)); err != nil {
				return stats, fmt.Errorf("enroll %d in %s: %w", m.ID, lc.Code, err)
			}
			stats.Enrollments++
		}

		if opts.OnClass != nil {
			opts.OnClass(lc, len(members))
		}
	}

	slog.Info("legacy: import finished",
		"classes", stats.Classes, "students", stats.Students,
		"descriptors", stats.Descriptors, "dropped_descriptors", stats.DroppedDescriptors)
	return stats, nil
}

func translateStudent(m LegacyStudent, dim int, stats *ImportStats) *database.Student {
	s := &database.Student{ID: StudentID(m.ID), DisplayName: m.Name, RollNo: m.RollNo}
	if !m.FaceRegistered || len(m.Descriptor) == 0 {
		return s
	}
	if len(m.Descriptor) != dim {
		stats.DroppedDescriptors++
		return s
	}
	s.Embedding = m.Descriptor
	s.FaceRegistered = true
	stats.Descriptors++
	return s
}
