// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Upload constants
const (
	// MaxUploadSize is the maximum multipart upload size in bytes (64MB)
	MaxUploadSize = 64 << 20

	// MaxFrameSize is the maximum size of a single pushed camera frame (8MB)
	MaxFrameSize = 8 << 20
)

// History constants
const (
	// DefaultHistoryLimit is the default number of attendance records returned
	DefaultHistoryLimit = 100
)
