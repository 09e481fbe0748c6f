// Package phash computes perceptual hashes and deduplicates a batch of
// images by Hamming distance.
package phash

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// ImageHash is a computed perceptual hash.
type ImageHash struct {
	Hash   uint64
	Width  int
	Height int
}

// Compute computes the DCT-based perceptual hash (pHash) of an image. It is
// the only hash kind the deduper uses; pHash is the most resilient of the
// three goimagehash offers to JPEG re-encoding and small resampling.
func Compute(img image.Image) (*ImageHash, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("failed to compute perceptual hash: %w", err)
	}
	bounds := img.Bounds()
	return &ImageHash{
		Hash:   hash.GetHash(),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// HammingDistance returns the number of differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count
}

// String returns a hex representation of the hash.
func (h *ImageHash) String() string {
	return fmt.Sprintf("%016x", h.Hash)
}
