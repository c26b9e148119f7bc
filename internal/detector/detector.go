// Package detector defines the face detection capability used by the capture
// pipeline and an HTTP client for an InsightFace embedding server.
package detector

import (
	"context"
	"errors"
)

// ErrNoFace is returned by registration helpers when a sample contains no usable face
var ErrNoFace = errors.New("no face detected")

// Face is a single detected face with its embedding
type Face struct {
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	Embedding []float32 `json:"-"`
	Score     float64   `json:"score"`
}

// Area returns the bbox area in square pixels
func (f *Face) Area() float64 {
	if len(f.BBox) != 4 {
		return 0
	}
	return (f.BBox[2] - f.BBox[0]) * (f.BBox[3] - f.BBox[1])
}

// Detector finds faces in an encoded image and returns their embeddings.
// Zero faces is not an error.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Face, error)
}

// Func adapts a function to the Detector interface
type Func func(ctx context.Context, imageData []byte) ([]Face, error)

// Detect calls f
func (f Func) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	return f(ctx, imageData)
}

// FilterByScore drops faces below the minimum detection score.
func FilterByScore(faces []Face, minScore float64) []Face {
	if minScore <= 0 {
		return faces
	}
	kept := faces[:0:0]
	for _, f := range faces {
		if f.Score >= minScore {
			kept = append(kept, f)
		}
	}
	return kept
}

// Largest returns the face with the largest bbox, which is the registering
// student when a sample contains bystanders.
func Largest(faces []Face) (Face, error) {
	if len(faces) == 0 {
		return Face{}, ErrNoFace
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best, nil
}
