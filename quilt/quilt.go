package quilt

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"github.com/stevecastle/depthcharge/captions"
	"github.com/stevecastle/depthcharge/imgio"
	"github.com/stevecastle/depthcharge/rgbd"
)

var ErrBadCamera = errors.New("invalid camera configuration")

// Config carries every knob for one quilt render job. It is immutable
// once handed to Render or Generate.
type Config struct {
	Profile    Profile
	FovDeg     float64
	Zoom       float64
	Scale      float64
	Resize     float64
	Background Background
	Debug      DebugFlags
	Caption    captions.Config
	Workers    int
}

// Validate rejects values the renderer cannot work with.
func (c Config) Validate() error {
	if c.FovDeg <= 0 || c.FovDeg >= 360 {
		return fmt.Errorf("%w: fov %v degrees", ErrBadCamera, c.FovDeg)
	}
	if c.Zoom <= 0 {
		return fmt.Errorf("%w: zoom %v", ErrBadCamera, c.Zoom)
	}
	if c.Scale < 0 {
		return fmt.Errorf("%w: scale %v", ErrBadCamera, c.Scale)
	}
	if c.Resize <= 0 {
		return fmt.Errorf("%w: resize %v", ErrBadCamera, c.Resize)
	}
	if c.Profile.Columns <= 0 || c.Profile.Rows <= 0 || c.Profile.Width <= 0 || c.Profile.Height <= 0 {
		return fmt.Errorf("%w: profile %+v", ErrBadCamera, c.Profile)
	}
	return nil
}

// RenderSize returns the supersampled bounding box views render inside:
// the tile size times the resize multiplier.
func (c Config) RenderSize() (int, int) {
	tw, th := c.Profile.TileSize()
	return int(float64(tw) * c.Resize), int(float64(th) * c.Resize)
}

// prepare shrinks src into the supersample box and applies debug
// substitutions.
func (c Config) prepare(src *rgbd.Image) *rgbd.Image {
	rw, rh := c.RenderSize()
	src = src.ScaleToFit(rw, rh)
	if c.Debug.HeightmapZero {
		src = src.Flatten(128)
	}
	if c.Debug.Texture == TextureHeightmap {
		src = &rgbd.Image{Width: src.Width, Height: src.Height, Color: src.DepthAsColor(), Depth: src.Depth}
	}
	return src
}

// Render produces the assembled quilt raster for src.
func Render(src *rgbd.Image, cfg Config) (*image.NRGBA, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.assemble(cfg.prepare(src)), nil
}

// assemble renders every view across a worker pool and stitches the
// results.
func (c Config) assemble(src *rgbd.Image) *image.NRGBA {
	n := c.Profile.Views()
	cam := NewCamera(src, c.FovDeg, c.Zoom, c.Scale, n)
	log.Debugf("rendering %d views at %dx%d, baseline %.1fpx, convergence %.3f",
		n, src.Width, src.Height, cam.BaselinePx, cam.Convergence)

	views := make([]*Target, n)
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				log.Debugf("view %d camera offset %.3f", v, cam.Offset(v))
				views[v] = RenderView(src, cam, v, c.Background, c.Debug)
			}
		}()
	}
	for v := 0; v < n; v++ {
		jobs <- v
	}
	close(jobs)
	wg.Wait()

	return c.stitch(views)
}

// stitch downsamples each view into its grid cell, left to right then
// top to bottom, on a canvas of exactly the profile's dimensions.
func (c Config) stitch(views []*Target) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, c.Profile.Width, c.Profile.Height))
	for y := 0; y < c.Profile.Height; y++ {
		bgc := c.Background.ColorAt(y, c.Profile.Height)
		for x := 0; x < c.Profile.Width; x++ {
			canvas.SetNRGBA(x, y, bgc)
		}
	}

	tw, th := c.Profile.TileSize()
	for v, view := range views {
		col := v % c.Profile.Columns
		row := v / c.Profile.Columns
		cell := image.Rect(col*tw, row*th, col*tw+tw, row*th+th)

		dw, dh := fitInto(view.Width, view.Height, tw, th)
		ox := cell.Min.X + (tw-dw)/2
		oy := cell.Min.Y + (th-dh)/2
		xdraw.CatmullRom.Scale(canvas, image.Rect(ox, oy, ox+dw, oy+dh),
			view.Color, view.Color.Bounds(), draw.Src, nil)

		if c.Caption.Text != "" {
			captions.Draw(canvas, cell, c.Caption)
		}
	}
	return canvas
}

// fitInto scales (w, h) to the largest size inside (maxW, maxH) that
// keeps the aspect ratio.
func fitInto(w, h, maxW, maxH int) (int, int) {
	r := float64(maxW) / float64(w)
	if rh := float64(maxH) / float64(h); rh < r {
		r = rh
	}
	dw := int(float64(w)*r + 0.5)
	dh := int(float64(h)*r + 0.5)
	if dw < 1 {
		dw = 1
	} else if dw > maxW {
		dw = maxW
	}
	if dh < 1 {
		dh = 1
	} else if dh > maxH {
		dh = maxH
	}
	return dw, dh
}

// OutputName derives the quilt file name from the requested base name,
// encoding the layout so viewers can de-tile the raster:
// base_qs{columns}x{rows}a{aspect}.ext.
func OutputName(outBase string, p Profile, aspect float64) string {
	ext := filepath.Ext(outBase)
	if ext == "" {
		ext = ".png"
	}
	stem := strings.TrimSuffix(outBase, ext)
	return fmt.Sprintf("%s_qs%dx%da%.2f%s", stem, p.Columns, p.Rows, aspect, ext)
}

// Generate renders src and writes the quilt next to outBase, returning
// the generated file's path. With link set, outBase additionally
// becomes a symlink to the generated file.
func Generate(src *rgbd.Image, outBase string, cfg Config, link bool) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	prepared := cfg.prepare(src)
	canvas := cfg.assemble(prepared)

	path := OutputName(outBase, cfg.Profile, prepared.Aspect())
	if err := imgio.Save(path, canvas); err != nil {
		return "", err
	}
	log.Infof("saved quilt %s", path)

	if link {
		if err := os.Remove(outBase); err != nil && !os.IsNotExist(err) {
			log.Warnf("removing %s: %v", outBase, err)
		}
		if err := os.Symlink(path, outBase); err != nil {
			log.Warnf("linking %s -> %s: %v", outBase, path, err)
		}
	}
	return path, nil
}
