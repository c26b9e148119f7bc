// Package facematch matches detected face embeddings against the enrolled
// students of a class.
package facematch

import "errors"

var (
	// ErrEmptyGallery is returned when matching is attempted against a gallery
	// without any registered faces
	ErrEmptyGallery = errors.New("no registered faces in gallery")

	// ErrDimensionMismatch is returned when embeddings of different lengths are mixed
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotEnoughSamples is returned when registration has too few usable faces
	ErrNotEnoughSamples = errors.New("not enough clear faces")
)

// Match is the outcome of matching one detected face
type Match struct {
	StudentID string  `json:"student_id,omitempty"`
	Distance  float64 `json:"distance"`
	Known     bool    `json:"known"` // false means Unknown: no entry within threshold
}

// Entry is one (student, embedding) pair of a gallery
type Entry struct {
	StudentID string
	Embedding []float32
}
