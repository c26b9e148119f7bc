package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Frame is one image ready for detection
type Frame struct {
	// Seq is the monotonic sequence number within the source
	Seq uint64
	// Timestamp is when the frame was acquired
	Timestamp time.Time
	// Width and Height of Data in pixels
	Width  int
	Height int
	// Scale is Data size divided by the original image size (1 when not downscaled)
	Scale float64
	// Data is the encoded image sent to the detector
	Data []byte
}

// PrepareFrame decodes an image and downscales it to fit within maxSize.
// JPEG input that already fits is passed through unchanged; everything else is re-encoded as JPEG.
// Images declaring more than MaxImagePixels are rejected before decoding.
func PrepareFrame(data []byte, maxSize int) (*Frame, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > constants.MaxImagePixels {
		return nil, fmt.Errorf("%dx%d image: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	frame := &Frame{Timestamp: time.Now(), Width: width, Height: height, Scale: 1}

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		if format == "jpeg" {
			frame.Data = data
			return frame, nil
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		frame.Data = buf.Bytes()
		return frame, nil
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}
	newWidth = max(newWidth, 1)
	newHeight = max(newHeight, 1)

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	frame.Width = newWidth
	frame.Height = newHeight
	frame.Scale = float64(newWidth) / float64(width)
	frame.Data = buf.Bytes()
	return frame, nil
}
