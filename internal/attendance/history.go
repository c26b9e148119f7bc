package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// StudentRef names a student in a history entry
type StudentRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	RollNo      string `json:"roll_no,omitempty"`
}

// HistoryEntry is a record resolved against the current roster
type HistoryEntry struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Present   []StudentRef `json:"present"`
	Absent    []StudentRef `json:"absent"`
}

// History reads past records of a class
type History struct {
	records database.AttendanceReader
	roster  database.RosterReader
}

// NewHistory creates a history reader
func NewHistory(records database.AttendanceReader, roster database.RosterReader) *History {
	return &History{records: records, roster: roster}
}

// List returns the class's records newest first. Present students who are no
// longer enrolled are listed by id; absentees are the enrolled students
// missing from each record.
func (h *History) List(ctx context.Context, classID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}

	records, err := h.records.ListRecords(ctx, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	roster, err := h.roster.GetRoster(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}

	byID := make(map[string]database.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	entries := make([]HistoryEntry, 0, len(records))
	for i := range records {
		rec := &records[i]
		entry := HistoryEntry{ID: rec.ID, Timestamp: rec.Timestamp, Present: []StudentRef{}, Absent: []StudentRef{}}
		for _, e := range rec.Entries {
			if e.Status != database.StatusPresent {
				continue
			}
			ref := StudentRef{ID: e.StudentID}
			if s, ok := byID[e.StudentID]; ok {
				ref.DisplayName = s.DisplayName
				ref.RollNo = s.RollNo
			}
			entry.Present = append(entry.Present, ref)
		}
		for _, s := range rec.Absentees(roster) {
			entry.Absent = append(entry.Absent, StudentRef{ID: s.ID, DisplayName: s.DisplayName, RollNo: s.RollNo})
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
