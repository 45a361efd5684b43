package imaging

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// CalculateHash returns the 64-bit difference hash of img as 16 hex digits.
// Visually identical pictures hash identically.
func CalculateHash(img image.Image) (string, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", fmt.Errorf("failed to hash image: %w", err)
	}
	return fmt.Sprintf("%016x", h.GetHash()), nil
}

// HashBytes decodes data and hashes the resulting image.
func HashBytes(data []byte) (string, error) {
	img, _, err := Decode(data)
	if err != nil {
		return "", err
	}
	return CalculateHash(img)
}
