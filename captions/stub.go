//go:build !captions

package captions

import "image"

// Enabled reports whether caption rendering was compiled in.
const Enabled = false

// Draw does nothing without the captions build tag.
func Draw(dst *image.NRGBA, bounds image.Rectangle, cfg Config) {}
