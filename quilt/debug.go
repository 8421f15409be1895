package quilt

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrBadDebugFlag = errors.New("malformed debug flag")

// Texture substitution modes.
const (
	TextureHeightmap = "heightmap"
	TextureZBuffer   = "zbuffer"
)

// DebugFlags selects rendering diagnostics:
//
//	heightmap=zero   flat mid-level depth, a zero-parallax sanity check
//	texture=heightmap   draw the depth map instead of the color image
//	texture=zbuffer  replace each view with its resolved z-buffer
//	startpt=<color>  mark the surviving pixel left of every hole run
//	endpt=<color>    mark the surviving pixel right of every hole run
type DebugFlags struct {
	HeightmapZero bool
	Texture       string
	StartPt       *color.NRGBA
	EndPt         *color.NRGBA
}

// ParseDebugFlags parses a comma separated key=value list. Unknown
// keys log a warning; malformed entries and unknown values are errors.
func ParseDebugFlags(s string) (DebugFlags, error) {
	var flags DebugFlags
	if s == "" {
		return flags, nil
	}
	for _, entry := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return DebugFlags{}, fmt.Errorf("%w: %q", ErrBadDebugFlag, entry)
		}
		switch key {
		case "heightmap":
			if value != "zero" {
				return DebugFlags{}, fmt.Errorf("%w: heightmap=%q", ErrBadDebugFlag, value)
			}
			flags.HeightmapZero = true
		case "texture":
			if value != TextureHeightmap && value != TextureZBuffer {
				return DebugFlags{}, fmt.Errorf("%w: texture=%q", ErrBadDebugFlag, value)
			}
			flags.Texture = value
		case "startpt":
			c, err := ParseColor(value)
			if err != nil {
				return DebugFlags{}, fmt.Errorf("%w: startpt=%q", ErrBadDebugFlag, value)
			}
			flags.StartPt = &c
		case "endpt":
			c, err := ParseColor(value)
			if err != nil {
				return DebugFlags{}, fmt.Errorf("%w: endpt=%q", ErrBadDebugFlag, value)
			}
			flags.EndPt = &c
		default:
			log.Warnf("unknown debug flag: %s", entry)
		}
	}
	return flags, nil
}
