// Package rgbd models a color image paired with a per-pixel depth map.
// Depth is 8-bit grayscale where larger values sit nearer to the viewer.
package rgbd

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"

	"github.com/stevecastle/depthcharge/imgio"
)

var (
	ErrOddWidth     = errors.New("side-by-side frame has odd width")
	ErrSizeMismatch = errors.New("color and depth dimensions differ")
)

// Image is a color plane and a depth plane of identical dimensions.
type Image struct {
	Width  int
	Height int
	Color  *image.NRGBA
	Depth  *image.Gray
}

// Split divides a side-by-side frame into its color (left) and depth
// (right) halves, reading depth from the red channel. The frame width
// must be even.
func Split(img image.Image) (*Image, error) {
	b := img.Bounds()
	if b.Dx()%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrOddWidth, b.Dx(), b.Dy())
	}
	half := b.Dx() / 2
	src := imgio.ToNRGBA(img)

	colorPlane := image.NewNRGBA(image.Rect(0, 0, half, b.Dy()))
	draw.Draw(colorPlane, colorPlane.Bounds(), src, image.Point{}, draw.Src)

	depthPlane := toGray(src.SubImage(image.Rect(half, 0, b.Dx(), b.Dy())))

	return &Image{Width: half, Height: b.Dy(), Color: colorPlane, Depth: depthPlane}, nil
}

// Compose pairs a color image with a separately supplied depth map.
// Both must share the same dimensions.
func Compose(colorImg, depthImg image.Image) (*Image, error) {
	cb, db := colorImg.Bounds(), depthImg.Bounds()
	if cb.Dx() != db.Dx() || cb.Dy() != db.Dy() {
		return nil, fmt.Errorf("%w: color %dx%d, depth %dx%d",
			ErrSizeMismatch, cb.Dx(), cb.Dy(), db.Dx(), db.Dy())
	}
	return &Image{
		Width:  cb.Dx(),
		Height: cb.Dy(),
		Color:  imgio.ToNRGBA(colorImg),
		Depth:  toGray(depthImg),
	}, nil
}

// toGray extracts the red channel, the plane depth maps publish on.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	src := imgio.ToNRGBA(img)
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.Gray{Y: src.NRGBAAt(b.Min.X+x, b.Min.Y+y).R})
		}
	}
	return g
}

// ColorAt returns the color at (x, y).
func (m *Image) ColorAt(x, y int) color.NRGBA {
	return m.Color.NRGBAAt(x, y)
}

// DepthAt returns the depth at (x, y) normalized to [0, 1],
// where 1 is nearest.
func (m *Image) DepthAt(x, y int) float64 {
	return float64(m.Depth.GrayAt(x, y).Y) / 255
}

// Aspect returns the width/height ratio.
func (m *Image) Aspect() float64 {
	return float64(m.Width) / float64(m.Height)
}

// SideBySide joins the two planes into one frame, color on the left
// and depth on the right. Split reverses it.
func (m *Image) SideBySide() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.Width*2, m.Height))
	draw.Draw(out, image.Rect(0, 0, m.Width, m.Height), m.Color, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(m.Width, 0, m.Width*2, m.Height), m.Depth, image.Point{}, draw.Src)
	return out
}

// ScaleToFit shrinks both planes to fit within maxW x maxH, keeping the
// aspect ratio. Images already inside the box are returned as is.
func (m *Image) ScaleToFit(maxW, maxH int) *Image {
	if m.Width <= maxW && m.Height <= maxH {
		return m
	}
	c := resize.Thumbnail(uint(maxW), uint(maxH), m.Color, resize.Lanczos3)
	d := resize.Thumbnail(uint(maxW), uint(maxH), m.Depth, resize.Lanczos3)
	b := c.Bounds()
	return &Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		Color:  imgio.ToNRGBA(c),
		Depth:  toGray(d),
	}
}

// Flatten replaces the depth plane with a uniform level, keeping color.
func (m *Image) Flatten(level uint8) *Image {
	d := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i := range d.Pix {
		d.Pix[i] = level
	}
	return &Image{Width: m.Width, Height: m.Height, Color: m.Color, Depth: d}
}

// DepthAsColor renders the depth plane as a grayscale color image.
func (m *Image) DepthAsColor() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	draw.Draw(out, out.Bounds(), m.Depth, image.Point{}, draw.Src)
	return out
}
