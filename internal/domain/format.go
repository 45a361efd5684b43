package domain

import (
	"fmt"
	"strings"
)

// ImageFormat is a stored avatar file format.
type ImageFormat string

// Supported avatar formats.
const (
	FormatSVG ImageFormat = "svg"
	FormatPNG ImageFormat = "png"
)

// Content types served for each format.
const (
	ContentTypeSVG = "image/svg+xml"
	ContentTypePNG = "image/png"
)

// ParseImageFormat accepts "svg" or "png" in any case.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch ImageFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("%w: unsupported image format %q", ErrInvalidFormat, s)
	}
}

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	if f == FormatPNG {
		return ContentTypePNG
	}
	return ContentTypeSVG
}

// Valid reports whether f is a supported format.
func (f ImageFormat) Valid() bool {
	return f == FormatSVG || f == FormatPNG
}
