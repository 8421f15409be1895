// batch_depth processes every image in a directory into quilts, with
// durable per-file progress and a playlist of the results. Interrupted
// runs resume where they left off.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/stevecastle/depthcharge/batch"
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
	caption := flag.String("caption", "", "optional caption text; {} expands to the file name")
	captionSize := flag.Float64("caption-size", 16, "font size for caption in pixels")
	captionPos := flag.String("caption-position", "bottom-center", "caption position (top-left, top-center, top-right, bottom-left, bottom-center)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: batch_depth [flags] <input-dir> <output-dir>")
		os.Exit(2)
	}
	inDir, outDir := flag.Arg(0), flag.Arg(1)

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

	db, err := sql.Open("sqlite", filepath.Join(inDir, "index.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open progress database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	store, err := batch.NewStore(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare progress database: %v\n", err)
		os.Exit(1)
	}

	runner := &batch.Runner{
		Store: store,
		Source: depth.NewClient(depth.Config{
			ServerURL: *serverURL,
			CacheDir:  filepath.Join(inDir, ".rgbd_cache"),
		}),
		Quilt: quilt.Config{
			Profile:    profile,
			FovDeg:     *fov,
			Zoom:       *zoom,
			Scale:      *scale,
			Resize:     *resizeMul,
			Background: background,
			Debug:      debugFlags,
			Caption:    captions.Config{Text: *caption, Size: *captionSize, Position: position},
		},
		OutDir: outDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := runner.Run(ctx, inDir); err != nil {
		fmt.Fprintf(os.Stderr, "batch run aborted: %v\n", err)
		os.Exit(1)
	}
}
