// Package attendance turns capture sessions into persisted attendance records
// and manages the lifecycle of live sessions.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/geofence"
)

var tracer = otel.Tracer("github.com/kozaktomas/face-attendance/internal/attendance")

// ErrSubmission is returned when the record could not be stored
var ErrSubmission = errors.New("attendance submission failed")

// SubmitRequest is a finished session handed to the recorder
type SubmitRequest struct {
	ClassID    string               `json:"classId" validate:"required"`
	PresentIDs []string             `json:"presentStudentIds" validate:"dive,required"`
	Location   *geofence.Coordinate `json:"location,omitempty"`
}

// Recorder validates the submitter's location and appends attendance records
type Recorder struct {
	classes database.ClassReader
	writer  database.AttendanceWriter
	now     func() time.Time
}

// NewRecorder creates a recorder
func NewRecorder(classes database.ClassReader, writer database.AttendanceWriter) *Recorder {
	return &Recorder{classes: classes, writer: writer, now: time.Now}
}

// Submit stores a new record with one present entry per student.
// A geofence violation is returned as *geofence.Violation without writing anything.
// Storage failures are wrapped in ErrSubmission and never retried.
func (r *Recorder) Submit(ctx context.Context, req SubmitRequest) (*database.AttendanceRecord, error) {
	ctx, span := tracer.Start(ctx, "attendance.submit")
	defer span.End()
	span.SetAttributes(attribute.String("class_id", req.ClassID), attribute.Int("present", len(req.PresentIDs)))

	record, err := r.submit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return record, nil
}

func (r *Recorder) submit(ctx context.Context, req SubmitRequest) (*database.AttendanceRecord, error) {
	class, err := r.classes.GetClass(ctx, req.ClassID)
	if err != nil {
		return nil, fmt.Errorf("get class %s: %w", req.ClassID, err)
	}

	if err := geofence.Validate(req.Location, class.Location.Fence()); err != nil {
		slog.Info("attendance: submission outside geofence", "class_id", req.ClassID, "error", err)
		return nil, err
	}

	record := NewRecord(req.ClassID, req.PresentIDs, r.now())
	if err := r.writer.AppendRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	slog.Info("attendance: record stored", "class_id", req.ClassID, "record_id", record.ID, "present", len(record.Entries))
	return record, nil
}

// NewRecord builds a record with one present entry per unique student id, sorted by id.
func NewRecord(classID string, presentIDs []string, at time.Time) *database.AttendanceRecord {
	ids := slices.Clone(presentIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	entries := make([]database.AttendanceEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, database.AttendanceEntry{StudentID: id, Status: database.StatusPresent})
	}
	return &database.AttendanceRecord{
		ID:        uuid.NewString(),
		ClassID:   classID,
		Timestamp: at.UTC(),
		Entries:   entries,
	}
}
