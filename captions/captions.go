//go:build captions

package captions

import (
	"image"
	"image/color"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Enabled reports whether caption rendering was compiled in.
const Enabled = true

var (
	fontOnce sync.Once
	fontData *sfnt.Font
	fontErr  error
)

func loadFont() (*sfnt.Font, error) {
	fontOnce.Do(func() {
		fontData, fontErr = opentype.Parse(goregular.TTF)
	})
	return fontData, fontErr
}

// Draw burns cfg.Text in white into the bounds rectangle of dst.
func Draw(dst *image.NRGBA, bounds image.Rectangle, cfg Config) {
	if cfg.Text == "" {
		return
	}
	f, err := loadFont()
	if err != nil {
		log.Warnf("caption font: %v", err)
		return
	}
	size := cfg.Size
	if size <= 0 {
		size = 16
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Warnf("caption face: %v", err)
		return
	}
	defer face.Close()

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: face,
	}
	width := d.MeasureString(cfg.Text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	const margin = 10
	var x, y int
	switch cfg.Position {
	case TopLeft:
		x, y = bounds.Min.X+margin, bounds.Min.Y+margin
	case TopCenter:
		x, y = bounds.Min.X+(bounds.Dx()-width)/2, bounds.Min.Y+margin
	case TopRight:
		x, y = bounds.Max.X-width-margin, bounds.Min.Y+margin
	case BottomLeft:
		x, y = bounds.Min.X+margin, bounds.Max.Y-height-margin
	default:
		x, y = bounds.Min.X+(bounds.Dx()-width)/2, bounds.Max.Y-height-margin
	}
	d.Dot = fixed.P(x, y+metrics.Ascent.Ceil())
	d.DrawString(cfg.Text)
}
