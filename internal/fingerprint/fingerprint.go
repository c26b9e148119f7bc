// Package fingerprint computes perceptual hashes used to spot the same photo
// uploaded more than once.
package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DuplicateDistance is the largest Hamming distance between two hashes that
// still counts as the same picture. Recompressing or slightly resizing a
// photo stays well below it.
const DuplicateDistance = 5

// Compute decodes an image and returns its difference hash.
func Compute(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return DHash(img), nil
}

// DHash computes a 64-bit difference hash: the image is shrunk to 9x8 gray
// pixels and each bit records whether a pixel is brighter than its right neighbour.
func DHash(img image.Image) uint64 {
	small := image.NewRGBA(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if luma(small, x, y) > luma(small, x+1, y) {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// luma returns the ITU-R BT.601 brightness (0-255) of a pixel.
func luma(img *image.RGBA, x, y int) float64 {
	c := img.RGBAAt(x, y)
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// HammingDistance counts the differing bits of two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// NearDuplicate reports whether two hashes belong to the same picture.
func NearDuplicate(a, b uint64) bool {
	return HammingDistance(a, b) <= DuplicateDistance
}

// FindDuplicate returns the index of the first hash in seen that is a near
// duplicate of h, or -1.
func FindDuplicate(seen []uint64, h uint64) int {
	for i, s := range seen {
		if NearDuplicate(s, h) {
			return i
		}
	}
	return -1
}
