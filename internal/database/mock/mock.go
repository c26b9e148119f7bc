// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store is an in-memory implementation of database.Store
type Store struct {
	mu          sync.RWMutex
	classes     map[string]*database.Class
	students    map[string]*database.Student
	enrollments map[string][]string // class ID -> student IDs in enrollment order
	records     []database.AttendanceRecord

	// Error injection
	GetClassError     error
	GetRosterError    error
	RegisterFaceError error
	AppendRecordError error
	ListRecordsError  error

	// Call tracking
	AppendCalls int
}

var _ database.Store = (*Store)(nil)

// NewStore creates an empty mock store
func NewStore() *Store {
	return &Store{
		classes:     make(map[string]*database.Class),
		students:    make(map[string]*database.Student),
		enrollments: make(map[string][]string),
	}
}

// AddClass adds a class with its enrolled students
func (m *Store) AddClass(class database.Class, students ...database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[class.ID] = &class
	for _, s := range students {
		st := s
		m.students[s.ID] = &st
		m.enrollments[class.ID] = append(m.enrollments[class.ID], s.ID)
	}
}

// GetClass returns the class or database.ErrNotFound
func (m *Store) GetClass(_ context.Context, classID string) (*database.Class, error) {
	if m.GetClassError != nil {
		return nil, m.GetClassError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[classID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetRoster returns the enrolled students in enrollment order
func (m *Store) GetRoster(_ context.Context, classID string) ([]database.Student, error) {
	if m.GetRosterError != nil {
		return nil, m.GetRosterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	roster := make([]database.Student, 0, len(m.enrollments[classID]))
	for _, id := range m.enrollments[classID] {
		s := *m.students[id]
		s.Embedding = slices.Clone(s.Embedding)
		roster = append(roster, s)
	}
	return roster, nil
}

// RegisterFace overwrites the student's embedding
func (m *Store) RegisterFace(_ context.Context, studentID string, embedding []float32) error {
	if m.RegisterFaceError != nil {
		return m.RegisterFaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return fmt.Errorf("student %s: %w", studentID, database.ErrNotFound)
	}
	s.Embedding = slices.Clone(embedding)
	s.FaceRegistered = true
	return nil
}

// AppendRecord stores a copy of the record
func (m *Store) AppendRecord(_ context.Context, record *database.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendRecordError != nil {
		return m.AppendRecordError
	}
	rec := *record
	rec.Entries = slices.Clone(record.Entries)
	m.records = append(m.records, rec)
	return nil
}

// ListRecords returns the class's records newest first
func (m *Store) ListRecords(_ context.Context, classID string, limit int) ([]database.AttendanceRecord, error) {
	if m.ListRecordsError != nil {
		return nil, m.ListRecordsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.AttendanceRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ClassID == classID {
			out = append(out, m.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b database.AttendanceRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertClass creates or replaces a class
func (m *Store) UpsertClass(_ context.Context, class *database.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *class
	m.classes[class.ID] = &c
	return nil
}

// UpsertStudent creates or updates a student. An empty embedding keeps the stored one.
func (m *Store) UpsertStudent(_ context.Context, student *database.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *student
	s.Embedding = slices.Clone(student.Embedding)
	s.FaceRegistered = student.FaceRegistered && len(s.Embedding) > 0
	if prev, ok := m.students[student.ID]; ok && len(s.Embedding) == 0 {
		s.Embedding = prev.Embedding
		s.FaceRegistered = prev.FaceRegistered
	}
	m.students[student.ID] = &s
	return nil
}

// Enroll adds the student to the class once
func (m *Store) Enroll(_ context.Context, classID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return fmt.Errorf("student %s: %w", studentID, database.ErrNotFound)
	}
	if !slices.Contains(m.enrollments[classID], studentID) {
		m.enrollments[classID] = append(m.enrollments[classID], studentID)
	}
	return nil
}

// Close does nothing
func (m *Store) Close() error {
	return nil
}

// Records returns a copy of all stored records in insertion order
func (m *Store) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records)
}

// Student returns a copy of a stored student
func (m *Store) Student(id string) (database.Student, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return database.Student{}, false
	}
	return *s, true
}
