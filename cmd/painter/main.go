// painter renders a side-by-side RGBD image into a quilt.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/stevecastle/depthcharge/captions"
	"github.com/stevecastle/depthcharge/imgio"
	"github.com/stevecastle/depthcharge/quilt"
	"github.com/stevecastle/depthcharge/rgbd"
)

func main() {
	device := flag.String("device", "", "target display ("+strings.Join(quilt.Devices(), ", ")+")")
	columns := flag.Int("columns", 0, "the number of columns of tiles in the output quilt")
	rows := flag.Int("rows", 0, "the number of rows of tiles in the output quilt")
	width := flag.Int("width", 0, "the width of the output quilt in pixels")
	height := flag.Int("height", 0, "the height of the output quilt in pixels")
	debugMode := flag.String("debug-mode", "", "comma separated key=value pairs for debug options")
	bg := flag.String("bg", "black", "black, sky, debug, gradient or an rgb triplet")
	fov := flag.Float64("fov", 60, "field of view in degrees")
	zoom := flag.Float64("zoom", 1.0, "zoom towards center of image")
	scale := flag.Float64("scale", 1.0, "enhance height")
	resizeMul := flag.Float64("resize", 2.0, "resize multiplier relative to tile size")
	caption := flag.String("caption", "", "optional caption text to render on each view")
	captionSize := flag.Float64("caption-size", 16, "font size for caption in pixels")
	captionPos := flag.String("caption-position", "bottom-center", "caption position (top-left, top-center, top-right, bottom-left, bottom-center)")
	verbose := flag.Bool("v", false, "enable debug logging")
	var link bool
	flag.BoolVar(&link, "L", false, "symlink the output base name to the generated quilt")
	flag.BoolVar(&link, "link-output", false, "symlink the output base name to the generated quilt")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: painter [flags] <input> <output-base>")
		os.Exit(2)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	profile, err := quilt.ResolveProfile(*device, *columns, *rows, *width, *height)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	background, err := quilt.ParseBackground(*bg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	debugFlags, err := quilt.ParseDebugFlags(*debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	position, err := captions.ParsePosition(*captionPos)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	cfg := quilt.Config{
		Profile:    profile,
		FovDeg:     *fov,
		Zoom:       *zoom,
		Scale:      *scale,
		Resize:     *resizeMul,
		Background: background,
		Debug:      debugFlags,
		Caption:    captions.Config{Text: *caption, Size: *captionSize, Position: position},
	}

	img, err := imgio.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load input image: %v\n", err)
		os.Exit(1)
	}
	m, err := rgbd.Split(img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to split RGBD input: %v\n", err)
		os.Exit(1)
	}

	tw, th := profile.TileSize()
	rw, rh := cfg.RenderSize()
	fmt.Printf("input dimensions: %dx%d\n", m.Width*2, m.Height)
	fmt.Printf("frame dimensions: %dx%d\n", m.Width, m.Height)
	fmt.Printf("tile dimensions: %dx%d, rendering at %dx%d\n", tw, th, rw, rh)

	path, err := quilt.Generate(m, flag.Arg(1), cfg, link)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate quilt: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}
