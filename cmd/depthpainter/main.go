// depthpainter turns a plain color image into a quilt, delegating
// depth estimation to a workflow server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/stevecastle/depthcharge/captions"
	"github.com/stevecastle/depthcharge/depth"
	"github.com/stevecastle/depthcharge/quilt"
)

func main() {
	serverURL := flag.String("server-url", depth.DefaultServerURL, "base URL of the depth inference server")
	device := flag.String("device", "", "target display ("+strings.Join(quilt.Devices(), ", ")+")")
	columns := flag.Int("columns", 0, "the number of columns of tiles in the output quilt")
	rows := flag.Int("rows", 0, "the number of rows of tiles in the output quilt")
	width := flag.Int("width", 0, "the width of the output quilt in pixels")
	height := flag.Int("height", 0, "the height of the output quilt in pixels")
	debugMode := flag.String("debug-mode", "", "comma separated key=value pairs for debug options")
	bg := flag.String("bg", "black", "black, sky, debug, gradient or an rgb triplet")
	fov := flag.Float64("fov", 60, "field of view in degrees")
	zoom := flag.Float64("zoom", 1.05, "zoom towards center of image")
	scale := flag.Float64("scale", 1.0, "enhance height")
	resizeMul := flag.Float64("resize", 2.5, "resize multiplier relative to tile size")
	caption := flag.String("caption", "", "optional caption text to render on each view")
	captionSize := flag.Float64("caption-size", 16, "font size for caption in pixels")
	captionPos := flag.String("caption-position", "bottom-center", "caption position (top-left, top-center, top-right, bottom-left, bottom-center)")
	verbose := flag.Bool("v", false, "enable debug logging")
	var link bool
	flag.BoolVar(&link, "L", false, "symlink the output base name to the generated quilt")
	flag.BoolVar(&link, "link-output", false, "symlink the output base name to the generated quilt")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: depthpainter [flags] <input> <output-base>")
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

	client := depth.NewClient(depth.Config{ServerURL: *serverURL})
	m, err := client.Generate(context.Background(), flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate depth: %v\n", err)
		os.Exit(1)
	}

	path, err := quilt.Generate(m, flag.Arg(1), cfg, link)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate quilt: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}
