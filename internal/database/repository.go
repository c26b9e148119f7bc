package database

import (
	"context"
	"errors"
)

// ErrNotFound is returned by readers when the requested entity does not exist
var ErrNotFound = errors.New("not found")

// ClassReader provides read-only access to classes
type ClassReader interface {
	// GetClass returns the class, or ErrNotFound
	GetClass(ctx context.Context, classID string) (*Class, error)
}

// RosterReader provides the enrolled students of a class
type RosterReader interface {
	// GetRoster returns all enrolled students with their registration state and embedding
	GetRoster(ctx context.Context, classID string) ([]Student, error)
}

// FaceRegistrar stores registered face embeddings
type FaceRegistrar interface {
	// RegisterFace overwrites the student's embedding and marks the face as registered
	RegisterFace(ctx context.Context, studentID string, embedding []float32) error
}

// AttendanceWriter appends attendance records
type AttendanceWriter interface {
	// AppendRecord stores a new record; existing records are never modified
	AppendRecord(ctx context.Context, record *AttendanceRecord) error
}

// AttendanceReader provides attendance history
type AttendanceReader interface {
	// ListRecords returns the class's records sorted newest first
	ListRecords(ctx context.Context, classID string, limit int) ([]AttendanceRecord, error)
}

// RosterWriter creates classes and enrollments. Only used by the legacy import.
type RosterWriter interface {
	UpsertClass(ctx context.Context, class *Class) error
	UpsertStudent(ctx context.Context, student *Student) error
	Enroll(ctx context.Context, classID, studentID string) error
}

// Store is the full set of operations a storage backend provides
type Store interface {
	ClassReader
	RosterReader
	FaceRegistrar
	AttendanceWriter
	AttendanceReader
	RosterWriter
	Close() error
}
