package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Store implements database.Store on top of a Pool
type Store struct {
	pool *Pool
}

var _ database.Store = (*Store)(nil)

// NewStore creates a store using the given pool
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool
func (s *Store) Close() error {
	return s.pool.Close()
}

// GetClass returns the class or database.ErrNotFound
func (s *Store) GetClass(ctx context.Context, classID string) (*database.Class, error) {
	query := `
		SELECT id, name, code, location_lat, location_long, radius_meters
		FROM classes
		WHERE id = $1
	`

	var c database.Class
	var lat, long sql.NullFloat64
	var radius float64
	err := s.pool.QueryRow(ctx, query, classID).Scan(&c.ID, &c.Name, &c.Code, &lat, &long, &radius)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("class %s: %w", classID, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}

	if lat.Valid && long.Valid {
		c.Location = &database.ClassLocation{Lat: lat.Float64, Long: long.Float64, RadiusMeters: radius}
	}
	return &c, nil
}

// GetRoster returns the enrolled students ordered by display name
func (s *Store) GetRoster(ctx context.Context, classID string) ([]database.Student, error) {
	query := `
		SELECT s.id, s.display_name, s.roll_no, s.embedding, s.face_registered
		FROM class_members cm
		JOIN students s ON s.id = cm.student_id
		WHERE cm.class_id = $1
		ORDER BY s.display_name, s.id
	`

	rows, err := s.pool.Query(ctx, query, classID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}
	defer rows.Close()

	var roster []database.Student
	for rows.Next() {
		var st database.Student
		var emb sql.Null[pgvector.Vector]
		if err := rows.Scan(&st.ID, &st.DisplayName, &st.RollNo, &emb, &st.FaceRegistered); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if emb.Valid {
			st.Embedding = emb.V.Slice()
		}
		roster = append(roster, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return roster, nil
}

// RegisterFace overwrites the student's embedding
func (s *Store) RegisterFace(ctx context.Context, studentID string, embedding []float32) error {
	query := `
		UPDATE students
		SET embedding = $2::vector, face_registered = TRUE, registered_at = NOW()
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query, studentID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("register face: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("register face: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("student %s: %w", studentID, database.ErrNotFound)
	}
	return nil
}

// AppendRecord inserts the record and its entries in one transaction
func (s *Store) AppendRecord(ctx context.Context, record *database.AttendanceRecord) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attendance_records (id, class_id, recorded_at) VALUES ($1, $2, $3)`,
		record.ID, record.ClassID, record.Timestamp)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	for _, e := range record.Entries {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attendance_entries (record_id, student_id, status) VALUES ($1, $2, $3)`,
			record.ID, e.StudentID, e.Status)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", e.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

// ListRecords returns up to limit records of the class, newest first
func (s *Store) ListRecords(ctx context.Context, classID string, limit int) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, class_id, recorded_at
		FROM attendance_records
		WHERE class_id = $1
		ORDER BY recorded_at DESC, id
	`
	args := []any{classID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	var records []database.AttendanceRecord
	index := make(map[string]int)
	for rows.Next() {
		var r database.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.ClassID, &r.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		index[r.ID] = len(records)
		records = append(records, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	entryRows, err := s.pool.Query(ctx, `
		SELECT record_id, student_id, status
		FROM attendance_entries
		WHERE record_id = ANY($1::uuid[])
		ORDER BY record_id, student_id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var recordID string
		var e database.AttendanceEntry
		if err := entryRows.Scan(&recordID, &e.StudentID, &e.Status); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if i, ok := index[recordID]; ok {
			records[i].Entries = append(records[i].Entries, e)
		}
	}
	if err := entryRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return records, nil
}

// UpsertClass creates or updates a class
func (s *Store) UpsertClass(ctx context.Context, class *database.Class) error {
	var lat, long sql.NullFloat64
	radius := 0.0
	if class.Location != nil {
		lat = sql.NullFloat64{Float64: class.Location.Lat, Valid: true}
		long = sql.NullFloat64{Float64: class.Location.Long, Valid: true}
		radius = class.Location.RadiusMeters
	}

	query := `
		INSERT INTO classes (id, name, code, location_lat, location_long, radius_meters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			code = EXCLUDED.code,
			location_lat = EXCLUDED.location_lat,
			location_long = EXCLUDED.location_long,
			radius_meters = EXCLUDED.radius_meters
	`
	if _, err := s.pool.Exec(ctx, query, class.ID, class.Name, class.Code, lat, long, radius); err != nil {
		return fmt.Errorf("upsert class: %w", err)
	}
	return nil
}

// UpsertStudent creates or updates a student. An empty embedding keeps the
// stored one.
func (s *Store) UpsertStudent(ctx context.Context, student *database.Student) error {
	var emb any
	if len(student.Embedding) > 0 {
		emb = pgvector.NewVector(student.Embedding)
	}

	query := `
		INSERT INTO students (id, display_name, roll_no, embedding, face_registered, registered_at)
		VALUES ($1, $2, $3, $4::vector, $5, CASE WHEN $5 THEN NOW() END)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			roll_no = EXCLUDED.roll_no,
			embedding = COALESCE(EXCLUDED.embedding, students.embedding),
			face_registered = students.face_registered OR EXCLUDED.face_registered,
			registered_at = COALESCE(EXCLUDED.registered_at, students.registered_at)
	`
	registered := student.FaceRegistered && emb != nil
	if _, err := s.pool.Exec(ctx, query, student.ID, student.DisplayName, student.RollNo, emb, registered); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// Enroll adds the student to the class; repeated enrollment is a no-op
func (s *Store) Enroll(ctx context.Context, classID, studentID string) error {
	query := `
		INSERT INTO class_members (class_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, classID, studentID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}
