package imgio

import (
	"image"
	"os"

	"github.com/rwcarlsen/goexif/exif"
)

// LoadOriented decodes the image at path and applies its EXIF orientation,
// if any. Files without readable EXIF data load unrotated.
func LoadOriented(path string) (*image.NRGBA, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ApplyOrientation(ToNRGBA(img), ReadOrientation(path)), nil
}

// ReadOrientation returns the EXIF orientation of the file at path,
// or 1 when the file carries no readable orientation tag.
func ReadOrientation(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// ApplyOrientation maps the eight EXIF orientation values onto the
// corresponding flip/rotate of img. Unknown values return img unchanged.
func ApplyOrientation(img *image.NRGBA, orientation int) *image.NRGBA {
	switch orientation {
	case 2:
		return flipH(img)
	case 3:
		return rotate180(img)
	case 4:
		return flipV(img)
	case 5:
		return rotate270(flipH(img))
	case 6:
		return rotate90(img)
	case 7:
		return rotate90(flipH(img))
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

// rotate90 rotates a quarter turn clockwise.
func rotate90(src *image.NRGBA) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(y, h-1-x))
		}
	}
	return dst
}

// rotate270 rotates a quarter turn counter-clockwise.
func rotate270(src *image.NRGBA) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(w-1-y, x))
		}
	}
	return dst
}

func rotate180(src *image.NRGBA) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(w-1-x, h-1-y))
		}
	}
	return dst
}

func flipH(src *image.NRGBA) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(w-1-x, y))
		}
	}
	return dst
}

func flipV(src *image.NRGBA) *image.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(x, h-1-y))
		}
	}
	return dst
}
