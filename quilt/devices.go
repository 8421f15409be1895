// Package quilt renders RGBD images into multi-view quilt rasters for
// lenticular light-field displays.
package quilt

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrCustomGeometry = errors.New("invalid custom geometry")
)

// Profile describes one display's quilt layout: the tile grid and the
// exact output raster size.
type Profile struct {
	Name    string
	Columns int
	Rows    int
	Width   int
	Height  int
}

// Views returns the number of views the quilt holds.
func (p Profile) Views() int { return p.Columns * p.Rows }

// TileSize returns the per-view cell size in the finished quilt.
func (p Profile) TileSize() (int, int) {
	return p.Width / p.Columns, p.Height / p.Rows
}

var profiles = map[string]Profile{}

func register(p Profile, names ...string) {
	for _, n := range names {
		profiles[n] = p
	}
}

func init() {
	register(Profile{Name: "Looking Glass Go", Columns: 10, Rows: 6, Width: 4092, Height: 4092},
		"Looking Glass Go", "go")
	register(Profile{Name: "Looking Glass Portrait", Columns: 8, Rows: 6, Width: 3360, Height: 3360},
		"Looking Glass Portrait", "portrait")
	register(Profile{Name: `Looking Glass 16" Landscape`, Columns: 7, Rows: 7, Width: 5999, Height: 5999},
		`Looking Glass 16" Landscape`, "16l")
	register(Profile{Name: `Looking Glass 16" Portrait`, Columns: 11, Rows: 6, Width: 5995, Height: 6000},
		`Looking Glass 16" Portrait`, "16p")
	register(Profile{Name: `Looking Glass 32" Landscape`, Columns: 7, Rows: 7, Width: 8190, Height: 8190},
		`Looking Glass 32" Landscape`, "32l")
	register(Profile{Name: `Looking Glass 32" Portrait`, Columns: 11, Rows: 6, Width: 8184, Height: 8184},
		`Looking Glass 32" Portrait`, "32p")
	register(Profile{Name: `Looking Glass 65"`, Columns: 8, Rows: 9, Width: 8192, Height: 8192},
		`Looking Glass 65"`, "65")
}

// Devices lists every known device name and alias, sorted.
func Devices() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupProfile resolves a device name or short alias.
func LookupProfile(device string) (Profile, error) {
	p, ok := profiles[device]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
	return p, nil
}

// CustomProfile builds a profile from explicit geometry. All four
// values must be positive; partial geometry is never defaulted.
func CustomProfile(columns, rows, width, height int) (Profile, error) {
	if columns <= 0 || rows <= 0 || width <= 0 || height <= 0 {
		return Profile{}, fmt.Errorf("%w: columns, rows, width, and height are all required (got %d, %d, %d, %d)",
			ErrCustomGeometry, columns, rows, width, height)
	}
	return Profile{Name: "custom", Columns: columns, Rows: rows, Width: width, Height: height}, nil
}

// ResolveProfile picks between a named device and explicit custom
// geometry. Supplying both at once is a configuration error.
func ResolveProfile(device string, columns, rows, width, height int) (Profile, error) {
	custom := columns != 0 || rows != 0 || width != 0 || height != 0
	if device != "" {
		if custom {
			return Profile{}, fmt.Errorf("%w: device %q conflicts with explicit geometry", ErrCustomGeometry, device)
		}
		return LookupProfile(device)
	}
	return CustomProfile(columns, rows, width, height)
}
