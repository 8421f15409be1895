// Package captions burns optional caption text into rendered views.
// Rendering is compiled in with the captions build tag; without it
// Draw is a no-op and Enabled reports false.
package captions

import (
	"errors"
	"fmt"
)

var ErrBadPosition = errors.New("unknown caption position")

// Position anchors the caption within a view.
type Position int

const (
	TopLeft Position = iota
	TopCenter
	TopRight
	BottomLeft
	BottomCenter
)

// ParsePosition maps the CLI spelling, e.g. "bottom-center".
func ParsePosition(s string) (Position, error) {
	switch s {
	case "top-left":
		return TopLeft, nil
	case "top-center":
		return TopCenter, nil
	case "top-right":
		return TopRight, nil
	case "bottom-left":
		return BottomLeft, nil
	case "bottom-center":
		return BottomCenter, nil
	}
	return BottomCenter, fmt.Errorf("%w: %q", ErrBadPosition, s)
}

func (p Position) String() string {
	switch p {
	case TopLeft:
		return "top-left"
	case TopCenter:
		return "top-center"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomCenter:
		return "bottom-center"
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

// Config describes one caption: its text, font size in pixels, and
// anchor position.
type Config struct {
	Text     string
	Size     float64
	Position Position
}
