package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	// Registered decoders for uploaded pictures.
	_ "image/gif"
	_ "image/jpeg"

	svg "github.com/ajstarks/svgo"
	"github.com/nfnt/resize"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"

	"github.com/phrazzld/avatar-api/internal/domain"
)

// Convert transcodes src between the stored avatar formats.
func Convert(src []byte, from, to domain.ImageFormat) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrEmptyInput
	}

	switch {
	case from == domain.FormatSVG && to == domain.FormatPNG:
		return Rasterize(src, IconSize)
	case from == domain.FormatPNG && to == domain.FormatSVG:
		return EmbedPNG(src)
	case from == domain.FormatPNG && to == domain.FormatPNG:
		img, _, err := Decode(src)
		if err != nil {
			return nil, err
		}
		return EncodePNG(img)
	case from == domain.FormatSVG && to == domain.FormatSVG:
		return src, nil
	default:
		return nil, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from, to)
	}
}

// Rasterize renders an SVG document into a PNG of the given size.
func Rasterize(src []byte, size Size) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(src), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	icon.SetTarget(0, 0, float64(size.W), float64(size.H))

	rgba := image.NewRGBA(image.Rect(0, 0, size.W, size.H))
	scanner := rasterx.NewScannerGV(size.W, size.H, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size.W, size.H, scanner), 1)

	return EncodePNG(rgba)
}

// EmbedPNG wraps a raster image in an SVG document of the same size.
func EmbedPNG(src []byte) ([]byte, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(cfg.Width, cfg.Height)
	canvas.Image(0, 0, cfg.Width, cfg.Height,
		"data:image/png;base64,"+base64.StdEncoding.EncodeToString(src))
	canvas.End()
	return buf.Bytes(), nil
}

// Decode decodes a PNG, JPEG, GIF or WebP picture. It returns the decoder name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyInput
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// MaxSocialSize bounds imported pictures. Larger ones are scaled down.
var MaxSocialSize = Size{W: 460, H: 460}

// Fit scales img down to fit within max, keeping its aspect ratio. Smaller
// images are returned unchanged.
func Fit(img image.Image, max Size) image.Image {
	b := img.Bounds()
	if b.Dx() <= max.W && b.Dy() <= max.H {
		return img
	}
	return resize.Thumbnail(uint(max.W), uint(max.H), img, resize.Lanczos3)
}
