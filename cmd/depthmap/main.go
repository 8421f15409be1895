// depthmap asks a workflow server for a depth map and writes the
// result as a side-by-side RGBD image.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/stevecastle/depthcharge/depth"
	"github.com/stevecastle/depthcharge/imgio"
)

func main() {
	serverURL := flag.String("server-url", depth.DefaultServerURL, "base URL of the depth inference server")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: depthmap [flags] <input> <output>")
		os.Exit(2)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	client := depth.NewClient(depth.Config{ServerURL: *serverURL})
	m, err := client.Generate(context.Background(), flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate depth: %v\n", err)
		os.Exit(1)
	}

	if err := imgio.Save(flag.Arg(1), m.SideBySide()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save RGBD image: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(flag.Arg(1))
}
