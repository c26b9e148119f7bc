package database

import (
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/geofence"
)

// Attendance statuses. Only present entries are stored; absence is derived.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Student is an enrolled student as seen by the capture pipeline
type Student struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	RollNo         string    `json:"roll_no,omitempty"`
	Embedding      []float32 `json:"-"` // nil until the face is registered
	FaceRegistered bool      `json:"face_registered"`
}

// ClassLocation is the registered position of a class and its allowed radius
type ClassLocation struct {
	Lat          float64 `json:"lat"`
	Long         float64 `json:"long"`
	RadiusMeters float64 `json:"radius_meters"`
}

// Fence returns the geofence around the location, or nil when no location is set.
func (l *ClassLocation) Fence() *geofence.Fence {
	if l == nil {
		return nil
	}
	return &geofence.Fence{
		Center:       geofence.Coordinate{Lat: l.Lat, Long: l.Long},
		RadiusMeters: l.RadiusMeters,
	}
}

// Class is the read-only class information the pipeline needs
type Class struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Code     string         `json:"code"`
	Location *ClassLocation `json:"location,omitempty"` // nil disables geofencing
}

// AttendanceEntry marks one student in a record
type AttendanceEntry struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// AttendanceRecord is one submitted attendance session. Records are append-only.
type AttendanceRecord struct {
	ID        string            `json:"id"`
	ClassID   string            `json:"class_id"`
	Timestamp time.Time         `json:"timestamp"`
	Entries   []AttendanceEntry `json:"entries"`
}

// IsPresent reports whether the student has an entry in the record.
func (r *AttendanceRecord) IsPresent(studentID string) bool {
	return slices.ContainsFunc(r.Entries, func(e AttendanceEntry) bool {
		return e.StudentID == studentID && e.Status == StatusPresent
	})
}

// Absentees returns the roster students without an entry in the record, in roster order.
func (r *AttendanceRecord) Absentees(roster []Student) []Student {
	var absent []Student
	for _, s := range roster {
		if !r.IsPresent(s.ID) {
			absent = append(absent, s)
		}
	}
	return absent
}
