package imaging

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	svg "github.com/ajstarks/svgo"

	"github.com/phrazzld/avatar-api/internal/domain"
)

// Size is an image size in pixels.
type Size struct {
	W int
	H int
}

// IconSize is the canvas every avatar is drawn on.
var IconSize = Size{W: 215, H: 215}

// Compose paints a custom avatar: a background band filling the canvas,
// then every configured layer in order, each scaled to fit the canvas and
// centered.
func Compose(cfg *domain.AvatarConfig, assets AssetSource, size Size) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(size.W, size.H)
	mid := num(float64(size.H) / 2)
	fmt.Fprintf(canvas.Writer, "<line x1=\"0\" y1=\"%s\" x2=\"%d\" y2=\"%s\" style=\"stroke:#%s;stroke-width:%dpx\" />\n",
		mid, size.W, mid, cfg.Background, size.H)

	for _, layer := range cfg.Layers() {
		asset, err := assets.Load(layer.AssetPath())
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer.Name, err)
		}
		paintLayer(canvas, asset, size)
	}

	canvas.End()
	return buf.Bytes(), nil
}

// paintLayer maps the asset's viewBox onto the canvas with one scale factor,
// keeping its aspect ratio, and centers it.
func paintLayer(canvas *svg.SVG, asset *Asset, size Size) {
	vb := asset.ViewBox
	scale := math.Min(float64(size.W)/vb[2], float64(size.H)/vb[3])
	dx := (float64(size.W)-vb[2]*scale)/2 - vb[0]*scale
	dy := (float64(size.H)-vb[3]*scale)/2 - vb[1]*scale

	canvas.Gtransform(fmt.Sprintf("translate(%s,%s) scale(%s)", num(dx), num(dy), num(scale)))
	_, _ = canvas.Writer.Write(asset.Inner)
	canvas.Gend()
}

// num formats v with at most three decimals.
func num(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
