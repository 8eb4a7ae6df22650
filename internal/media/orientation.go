package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the value of the EXIF Orientation tag (0x0112).
type Orientation int

// EXIF orientation values. Zero means the source had no readable tag.
const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate270  Orientation = 6
	OrientationTransverse Orientation = 7
	OrientationRotate90   Orientation = 8
)

// ReadOrientation returns the EXIF orientation embedded in data. The second
// value is false when there is no EXIF block, no orientation tag, or the
// metadata cannot be parsed.
func ReadOrientation(data []byte) (o Orientation, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			o, ok = 0, false
		}
	}()

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, false
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return Orientation(v), true
}

// Orient applies the transform for o. Rotations by 90 degrees swap width
// and height. OrientationNormal and unknown values return img unchanged.
func Orient(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipH(imaging.Rotate180(img))
	case OrientationTranspose:
		return imaging.FlipH(imaging.Rotate270(img))
	case OrientationRotate270:
		// imaging rotates counter-clockwise, so 270 is a quarter turn clockwise
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.FlipH(imaging.Rotate90(img))
	case OrientationRotate90:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// NormalizeOrientation returns d with its raster turned upright according
// to the orientation read at decode time.
func NormalizeOrientation(d DecodedImage) DecodedImage {
	d.Image = Orient(d.Image, d.Orientation)
	d.Orientation = OrientationNormal
	return d
}
