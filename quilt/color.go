package quilt

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var ErrBadColor = errors.New("unrecognized color")

var skyColor = color.NRGBA{R: 128, G: 178, B: 255, A: 255}

// ParseColor accepts the named colors black, sky, and debug, an
// "r,g,b" triple, or rrggbb hex with an optional leading #.
func ParseColor(s string) (color.NRGBA, error) {
	switch s {
	case "black":
		return color.NRGBA{A: 255}, nil
	case "sky":
		return skyColor, nil
	case "debug":
		return color.NRGBA{R: 255, B: 255, A: 255}, nil
	}
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
		}
		var ch [3]uint8
		for i, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
			}
			ch[i] = uint8(v)
		}
		return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: 255}, nil
	}
	hexs := strings.TrimPrefix(s, "#")
	if len(hexs) == 6 {
		if v, err := strconv.ParseUint(hexs, 16, 32); err == nil {
			return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
		}
	}
	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
}

// Background is the fill policy for destination pixels no source
// sample reaches: a solid color or a vertical sky-to-black gradient.
type Background struct {
	gradient bool
	solid    color.NRGBA
}

// ParseBackground accepts everything ParseColor does plus "gradient".
func ParseBackground(s string) (Background, error) {
	if s == "gradient" {
		return Background{gradient: true}, nil
	}
	c, err := ParseColor(s)
	if err != nil {
		return Background{}, err
	}
	return Background{solid: c}, nil
}

// ColorAt returns the fill color for row y of an image height rows tall.
func (b Background) ColorAt(y, height int) color.NRGBA {
	if !b.gradient {
		return b.solid
	}
	if height <= 1 {
		return skyColor
	}
	t := float64(y) / float64(height-1)
	fade := func(v uint8) uint8 { return uint8(float64(v)*(1-t) + 0.5) }
	return color.NRGBA{R: fade(skyColor.R), G: fade(skyColor.G), B: fade(skyColor.B), A: 255}
}
