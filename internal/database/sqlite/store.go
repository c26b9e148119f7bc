// Package sqlite provides a single-file database.Store for deployments
// without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists classes, rosters and attendance in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ database.Store = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database file and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if _, err := migrate.Apply(ctx, sqlDB, sub, migrate.SQLite); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Initialize opens the store and registers it as the active backend.
func Initialize(ctx context.Context, path string) (*Store, error) {
	store, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	database.RegisterStore("sqlite", store)
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func (s *Store) GetClass(ctx context.Context, classID string) (*database.Class, error) {
	var c database.Class
	var lat, long sql.NullFloat64
	var radius float64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, code, location_lat, location_long, radius_meters FROM classes WHERE id = ?`,
		classID).Scan(&c.ID, &c.Name, &c.Code, &lat, &long, &radius)
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

func (s *Store) GetRoster(ctx context.Context, classID string) ([]database.Student, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT s.id, s.display_name, s.roll_no, s.embedding, s.face_registered
		FROM class_members cm
		JOIN students s ON s.id = cm.student_id
		WHERE cm.class_id = ?
		ORDER BY s.display_name, s.id`, classID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}
	defer rows.Close()

	var roster []database.Student
	for rows.Next() {
		var st database.Student
		var blob []byte
		if err := rows.Scan(&st.ID, &st.DisplayName, &st.RollNo, &blob, &st.FaceRegistered); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if st.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("student %s: %w", st.ID, err)
		}
		roster = append(roster, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return roster, nil
}

func (s *Store) RegisterFace(ctx context.Context, studentID string, embedding []float32) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE students SET embedding = ?, face_registered = 1, registered_at = ? WHERE id = ?`,
		encodeEmbedding(embedding), toMillis(time.Now()), studentID)
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

func (s *Store) AppendRecord(ctx context.Context, record *database.AttendanceRecord) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO attendance_records (id, class_id, recorded_at) VALUES (?, ?, ?)`,
		record.ID, record.ClassID, toMillis(record.Timestamp)); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	for _, e := range record.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendance_entries (record_id, student_id, status) VALUES (?, ?, ?)`,
			record.ID, e.StudentID, e.Status); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.StudentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, classID string, limit int) ([]database.AttendanceRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT r.id, r.class_id, r.recorded_at, e.student_id, e.status
		FROM (
			SELECT id, class_id, recorded_at FROM attendance_records
			WHERE class_id = ?
			ORDER BY recorded_at DESC, id
			LIMIT ?
		) r
		LEFT JOIN attendance_entries e ON e.record_id = r.id
		ORDER BY r.recorded_at DESC, r.id, e.student_id`, classID, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var id, cid string
		var at int64
		var studentID, status sql.NullString
		if err := rows.Scan(&id, &cid, &at, &studentID, &status); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if n := len(records); n == 0 || records[n-1].ID != id {
			records = append(records, database.AttendanceRecord{ID: id, ClassID: cid, Timestamp: fromMillis(at)})
		}
		if studentID.Valid {
			r := &records[len(records)-1]
			r.Entries = append(r.Entries, database.AttendanceEntry{StudentID: studentID.String, Status: status.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (s *Store) UpsertClass(ctx context.Context, class *database.Class) error {
	var lat, long sql.NullFloat64
	radius := 0.0
	if class.Location != nil {
		lat = sql.NullFloat64{Float64: class.Location.Lat, Valid: true}
		long = sql.NullFloat64{Float64: class.Location.Long, Valid: true}
		radius = class.Location.RadiusMeters
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO classes (id, name, code, location_lat, location_long, radius_meters)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			code = excluded.code,
			location_lat = excluded.location_lat,
			location_long = excluded.location_long,
			radius_meters = excluded.radius_meters`,
		class.ID, class.Name, class.Code, lat, long, radius)
	if err != nil {
		return fmt.Errorf("upsert class: %w", err)
	}
	return nil
}

func (s *Store) UpsertStudent(ctx context.Context, student *database.Student) error {
	var blob any // NULL keeps the stored embedding
	if len(student.Embedding) > 0 {
		blob = encodeEmbedding(student.Embedding)
	}
	registered := student.FaceRegistered && blob != nil
	var registeredAt sql.NullInt64
	if registered {
		registeredAt = sql.NullInt64{Int64: toMillis(time.Now()), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO students (id, display_name, roll_no, embedding, face_registered, registered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			roll_no = excluded.roll_no,
			embedding = COALESCE(excluded.embedding, students.embedding),
			face_registered = MAX(students.face_registered, excluded.face_registered),
			registered_at = COALESCE(excluded.registered_at, students.registered_at)`,
		student.ID, student.DisplayName, student.RollNo, blob, registered, registeredAt)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

func (s *Store) Enroll(ctx context.Context, classID, studentID string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO class_members (class_id, student_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		classID, studentID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}
