package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// LegacyClass is a row of the legacy classes table
type LegacyClass struct {
	ID          int64
	Code        string
	SubjectName string
}

// LegacyStudent is a student user with its face-api.js descriptor, if any
type LegacyStudent struct {
	ID             int64
	Name           string
	RollNo         string
	Descriptor     []float32
	FaceRegistered bool
}

// ListClasses returns all legacy classes ordered by ID.
func (p *Pool) ListClasses(ctx context.Context) ([]LegacyClass, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, class_code, subject_name FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var classes []LegacyClass
	for rows.Next() {
		var c LegacyClass
		if err := rows.Scan(&c.ID, &c.Code, &c.SubjectName); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return classes, nil
}

// ListMembers returns the students enrolled in a legacy class.
func (p *Pool) ListMembers(ctx context.Context, classID int64) ([]LegacyStudent, error) {
	query := `
		SELECT u.id, u.name, COALESCE(u.roll_no, ''), u.face_descriptor, u.is_face_registered
		FROM class_members cm
		JOIN users u ON u.id = cm.student_id
		WHERE cm.class_id = ? AND u.role = 'student'
		ORDER BY u.name, u.id
	`
	rows, err := p.db.QueryContext(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var students []LegacyStudent
	for rows.Next() {
		var s LegacyStudent
		var descriptor sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &s.RollNo, &descriptor, &s.FaceRegistered); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if descriptor.Valid {
			if s.Descriptor, err = ParseDescriptor(descriptor.String); err != nil {
				return nil, fmt.Errorf("student %d: %w", s.ID, err)
			}
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return students, nil
}

// ParseDescriptor decodes a descriptor stored as a JSON number array.
// Blank values decode to nil.
func ParseDescriptor(raw string) ([]float32, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parse face descriptor: %w", err)
	}
	return v, nil
}

// ClassID is the identifier an imported legacy class gets.
func ClassID(id int64) string {
	return "legacy-class-" + strconv.FormatInt(id, 10)
}

// StudentID is the identifier an imported legacy student gets.
func StudentID(id int64) string {
	return "legacy-user-" + strconv.FormatInt(id, 10)
}
