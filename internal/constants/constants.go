// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultMatchThreshold is the maximum Euclidean distance between a detected
	// embedding and a gallery embedding for the face to count as that student.
	// Every matching call site reads this through config, never a literal.
	DefaultMatchThreshold = 0.6

	// DefaultConfirmationThreshold is the number of matched frames a student needs
	// before being marked present
	DefaultConfirmationThreshold = 3

	// DefaultMinDetectionScore drops detections the embedder is unsure about
	DefaultMinDetectionScore = 0.25

	// DefaultStillMinDetectionScore is the detection score cut-off for uploaded photos
	DefaultStillMinDetectionScore = 0.45

	// HNSWMinGallerySize is the gallery size above which an HNSW graph seeds the
	// match scan with likely candidates. Every entry is still compared.
	HNSWMinGallerySize = 256

	// HNSWCandidates is the number of candidates requested from the graph to
	// tighten the bound before the exact scan
	HNSWCandidates = 8
)

// Registration constants
const (
	// MinRegistrationSamples is the minimum number of usable face samples required
	// to register a student's face
	MinRegistrationSamples = 3
)

// Capture constants
const (
	// DefaultSampleInterval is the live video sampling cadence
	DefaultSampleInterval = 300 * time.Millisecond

	// MinSampleInterval and MaxSampleInterval bound the configurable cadence
	MinSampleInterval = 100 * time.Millisecond
	MaxSampleInterval = 2 * time.Second

	// MaxImageSize is the maximum dimension (width or height) for frames sent to detection
	MaxImageSize = 1920

	// MaxImagePixels caps the declared size of an image before it is decoded
	MaxImagePixels = 40_000_000

	// SnapshotTimeout bounds a single IP camera snapshot request
	SnapshotTimeout = 5 * time.Second
)

// Geofence constants
const (
	// EarthRadiusMeters is the mean Earth radius used by the haversine formula
	EarthRadiusMeters = 6371000.0
)
