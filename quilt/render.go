package quilt

import (
	"image"
	"image/color"
	"math"

	"github.com/stevecastle/depthcharge/rgbd"
)

// Camera holds the projection constants shared by every view of one
// render job.
type Camera struct {
	Views       int
	BaselinePx  float64
	Convergence float64
	Scale       float64
}

// NewCamera derives projection constants from the invocation options
// and the depth range of src. The convergence depth always lies inside
// the observed range, so a flat depth map produces zero parallax; zoom
// above 1 biases the plane toward the near side.
func NewCamera(src *rgbd.Image, fovDeg, zoom, scale float64, views int) Camera {
	dmin, dmax := depthRange(src)
	mid := (dmin + dmax) / 2
	span := dmax - dmin
	conv := mid + (1-1/zoom)*span/2
	if conv < dmin {
		conv = dmin
	} else if conv > dmax {
		conv = dmax
	}
	return Camera{
		Views:       views,
		BaselinePx:  math.Tan(fovDeg*math.Pi/720) * float64(src.Width),
		Convergence: conv,
		Scale:       scale,
	}
}

func depthRange(src *rgbd.Image) (float64, float64) {
	dmin, dmax := 1.0, 0.0
	for _, v := range src.Depth.Pix {
		d := float64(v) / 255
		if d < dmin {
			dmin = d
		}
		if d > dmax {
			dmax = d
		}
	}
	if dmin > dmax {
		return 0, 0
	}
	return dmin, dmax
}

// Offset returns view v's normalized camera position in [-1, 1].
func (c Camera) Offset(v int) float64 {
	if c.Views <= 1 {
		return 0
	}
	return 2*float64(v)/float64(c.Views-1) - 1
}

// Shift returns the horizontal displacement in pixels that depth d
// receives in view v. The deviation from the convergence plane is
// scaled and capped at one baseline either way.
func (c Camera) Shift(v int, d float64) float64 {
	dev := c.Scale * (d - c.Convergence)
	if dev > 1 {
		dev = 1
	} else if dev < -1 {
		dev = -1
	}
	return c.Offset(v) * c.BaselinePx * dev
}

// Target is one view's render destination: a color plane plus the
// winning depth per pixel. ZBuf holds negative infinity wherever no
// source sample landed.
type Target struct {
	Width  int
	Height int
	Color  *image.NRGBA
	ZBuf   []float64
}

func NewTarget(w, h int) *Target {
	zb := make([]float64, w*h)
	for i := range zb {
		zb[i] = math.Inf(-1)
	}
	return &Target{
		Width:  w,
		Height: h,
		Color:  image.NewNRGBA(image.Rect(0, 0, w, h)),
		ZBuf:   zb,
	}
}

func (t *Target) hole(x, y int) bool {
	return math.IsInf(t.ZBuf[y*t.Width+x], -1)
}

// RenderView forward-warps src into view's pixel grid. Every source
// pixel moves horizontally by the camera shift for its depth; the
// nearest sample wins each destination pixel regardless of iteration
// order, and the holes left behind are filled from bg.
func RenderView(src *rgbd.Image, cam Camera, view int, bg Background, flags DebugFlags) *Target {
	t := NewTarget(src.Width, src.Height)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			d := src.DepthAt(x, y)
			dx := int(math.Round(float64(x) + cam.Shift(view, d)))
			if dx < 0 || dx >= t.Width {
				continue
			}
			i := y*t.Width + dx
			if d > t.ZBuf[i] {
				t.ZBuf[i] = d
				t.Color.SetNRGBA(dx, y, src.ColorAt(x, y))
			}
		}
	}
	markHoleEdges(t, flags)
	fillHoles(t, bg)
	if flags.Texture == TextureZBuffer {
		t.Color = t.zbufferImage()
	}
	return t
}

// markHoleEdges recolors the written pixel on each side of every hole
// run, exposing where the parallax sweep tore the image apart.
func markHoleEdges(t *Target, flags DebugFlags) {
	if flags.StartPt == nil && flags.EndPt == nil {
		return
	}
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; {
			if !t.hole(x, y) {
				x++
				continue
			}
			start := x
			for x < t.Width && t.hole(x, y) {
				x++
			}
			if flags.StartPt != nil && start > 0 {
				t.Color.SetNRGBA(start-1, y, *flags.StartPt)
			}
			if flags.EndPt != nil && x < t.Width {
				t.Color.SetNRGBA(x, y, *flags.EndPt)
			}
		}
	}
}

func fillHoles(t *Target, bg Background) {
	for y := 0; y < t.Height; y++ {
		c := bg.ColorAt(y, t.Height)
		for x := 0; x < t.Width; x++ {
			if t.hole(x, y) {
				t.Color.SetNRGBA(x, y, c)
			}
		}
	}
}

// zbufferImage renders the winning depths as grayscale normalized over
// the finite range. Holes stay black.
func (t *Target) zbufferImage() *image.NRGBA {
	zmin, zmax := math.Inf(1), math.Inf(-1)
	for _, z := range t.ZBuf {
		if math.IsInf(z, -1) {
			continue
		}
		if z < zmin {
			zmin = z
		}
		if z > zmax {
			zmax = z
		}
	}
	out := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	span := zmax - zmin
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			z := t.ZBuf[y*t.Width+x]
			if math.IsInf(z, -1) {
				out.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			v := uint8(255)
			if span > 0 {
				v = uint8((z - zmin) / span * 255)
			}
			out.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return out
}
