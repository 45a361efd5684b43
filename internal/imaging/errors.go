package imaging

import "errors"

var (
	// ErrEmptyInput is returned when there are no bytes to work with.
	ErrEmptyInput = errors.New("image input is empty")

	// ErrUnsupportedImage is returned when input cannot be decoded.
	ErrUnsupportedImage = errors.New("unsupported image data")

	// ErrUnsupportedConversion is returned for an unknown format pair.
	ErrUnsupportedConversion = errors.New("unsupported image conversion")

	// ErrAssetNotFound is returned when a layer asset does not exist.
	ErrAssetNotFound = errors.New("avatar asset not found")

	// ErrInvalidAsset is returned when a layer asset is not an SVG document.
	ErrInvalidAsset = errors.New("avatar asset is not a valid SVG document")
)
