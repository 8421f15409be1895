package quilt

import (
	"errors"
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"black", color.NRGBA{A: 255}},
		{"sky", color.NRGBA{R: 128, G: 178, B: 255, A: 255}},
		{"debug", color.NRGBA{R: 255, B: 255, A: 255}},
		{"10,20,30", color.NRGBA{R: 10, G: 20, B: 30, A: 255}},
		{" 1, 2, 3", color.NRGBA{R: 1, G: 2, B: 3, A: 255}},
		{"#ff8000", color.NRGBA{R: 255, G: 128, A: 255}},
		{"FF8000", color.NRGBA{R: 255, G: 128, A: 255}},
		{"000000", color.NRGBA{A: 255}},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if err != nil {
			t.Errorf("ParseColor(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseColorInvalid(t *testing.T) {
	for _, in := range []string{"", "mauve", "1,2", "1,2,3,4", "300,0,0", "a,b,c", "#ff80", "zzzzzz"} {
		if _, err := ParseColor(in); !errors.Is(err, ErrBadColor) {
			t.Errorf("ParseColor(%q) error = %v; want ErrBadColor", in, err)
		}
	}
}

func TestParseBackground(t *testing.T) {
	bg, err := ParseBackground("debug")
	if err != nil {
		t.Fatalf("ParseBackground(debug): %v", err)
	}
	want := color.NRGBA{R: 255, B: 255, A: 255}
	if got := bg.ColorAt(0, 100); got != want {
		t.Errorf("solid ColorAt(0) = %v; want %v", got, want)
	}
	if got := bg.ColorAt(99, 100); got != want {
		t.Errorf("solid ColorAt(99) = %v; want %v", got, want)
	}

	if _, err := ParseBackground("nope"); !errors.Is(err, ErrBadColor) {
		t.Errorf("ParseBackground(nope) error = %v; want ErrBadColor", err)
	}
}

func TestGradientBackground(t *testing.T) {
	bg, err := ParseBackground("gradient")
	if err != nil {
		t.Fatalf("ParseBackground(gradient): %v", err)
	}
	top := bg.ColorAt(0, 100)
	if top != skyColor {
		t.Errorf("gradient top = %v; want %v", top, skyColor)
	}
	bottom := bg.ColorAt(99, 100)
	if bottom != (color.NRGBA{A: 255}) {
		t.Errorf("gradient bottom = %v; want black", bottom)
	}
	mid := bg.ColorAt(50, 100)
	if mid.B <= bottom.B || mid.B >= top.B {
		t.Errorf("gradient mid = %v; want between %v and %v", mid, bottom, top)
	}
}
