// Package cache holds the process-lifetime translation caches: an image
// cache keyed by perceptual hash and a smaller text cache matched by OCR
// similarity.
package cache

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint is a 64-bit perceptual hash of a frame.
type Fingerprint uint64

// Compute returns the perceptual hash of img.
func Compute(img image.Image) (Fingerprint, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, fmt.Errorf("fingerprint: empty image")
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	return Fingerprint(h.GetHash()), nil
}

// Distance is the Hamming distance between two fingerprints.
func (f Fingerprint) Distance(o Fingerprint) int {
	d, err := f.hash().Distance(o.hash())
	if err != nil {
		return 64
	}
	return d
}

// Equal reports an exact perceptual match (distance 0).
func (f Fingerprint) Equal(o Fingerprint) bool { return f.Distance(o) == 0 }

func (f Fingerprint) String() string { return fmt.Sprintf("%016x", uint64(f)) }

func (f Fingerprint) hash() *goimagehash.ImageHash {
	return goimagehash.NewImageHash(uint64(f), goimagehash.PHash)
}
