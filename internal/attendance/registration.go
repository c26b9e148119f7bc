package attendance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/detector"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// SampleResult reports what was found in one registration image
type SampleResult struct {
	Index int     `json:"index"`
	Used  bool    `json:"used"`
	Faces int     `json:"faces"`
	Score float64 `json:"score,omitempty"`
	Error string  `json:"error,omitempty"`
	// DuplicateOf is the index of an earlier image showing the same picture.
	// Duplicates still count but add nothing to the average.
	DuplicateOf *int `json:"duplicate_of,omitempty"`
}

// RegistrationResult is the outcome of a face registration
type RegistrationResult struct {
	StudentID      string         `json:"student_id"`
	FacesProcessed int            `json:"faces_processed"`
	Samples        []SampleResult `json:"samples"`
}

// Registrar turns several photos of a student into one stored embedding
type Registrar struct {
	detector     detector.Detector
	faces        database.FaceRegistrar
	minScore     float64
	maxImageSize int
}

// NewRegistrar creates a registrar
func NewRegistrar(det detector.Detector, faces database.FaceRegistrar, minScore float64, maxImageSize int) *Registrar {
	return &Registrar{detector: det, faces: faces, minScore: minScore, maxImageSize: maxImageSize}
}

// Register detects the largest face in each image and stores the mean of the
// embeddings. Images without a face are skipped; fewer than
// constants.MinRegistrationSamples usable faces fails with
// facematch.ErrNotEnoughSamples and nothing is stored.
func (r *Registrar) Register(ctx context.Context, studentID string, images [][]byte) (*RegistrationResult, error) {
	result := &RegistrationResult{StudentID: studentID}
	var samples [][]float32
	var hashes []uint64
	var hashIndex []int

	for i, data := range images {
		sample := SampleResult{Index: i}
		emb, faces, score, err := r.sample(ctx, data)
		sample.Faces = faces
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sample.Error = err.Error()
			slog.Debug("registration: sample rejected", "student_id", studentID, "index", i, "error", err)
		} else {
			sample.Used = true
			sample.Score = score
			samples = append(samples, emb)
			if h, err := fingerprint.Compute(data); err == nil {
				if j := fingerprint.FindDuplicate(hashes, h); j >= 0 {
					dup := hashIndex[j]
					sample.DuplicateOf = &dup
					slog.Warn("registration: duplicate photo", "student_id", studentID, "index", i, "duplicate_of", dup)
				}
				hashes = append(hashes, h)
				hashIndex = append(hashIndex, i)
			}
		}
		result.Samples = append(result.Samples, sample)
	}
	result.FacesProcessed = len(samples)

	mean, err := facematch.AverageEmbedding(samples)
	if err != nil {
		return result, err
	}
	if err := r.faces.RegisterFace(ctx, studentID, mean); err != nil {
		return result, fmt.Errorf("store face: %w", err)
	}

	slog.Info("registration: face registered", "student_id", studentID, "samples", len(samples))
	return result, nil
}

func (r *Registrar) sample(ctx context.Context, data []byte) ([]float32, int, float64, error) {
	frame, err := capture.PrepareFrame(data, r.maxImageSize)
	if err != nil {
		return nil, 0, 0, err
	}
	faces, err := r.detector.Detect(ctx, frame.Data)
	if err != nil {
		return nil, 0, 0, err
	}
	faces = detector.FilterByScore(faces, r.minScore)
	face, err := detector.Largest(faces)
	if err != nil {
		return nil, 0, 0, err
	}
	return face.Embedding, len(faces), face.Score, nil
}
