package media

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ColorMode is the pixel layout of a decoded image.
type ColorMode int

const (
	// ModeOther covers layouts the pipeline does not process directly
	// (CMYK, alpha-only, ...). They are normalized to ModeRGB.
	ModeOther ColorMode = iota
	// ModeBitonal is a two-colour black and white palette.
	ModeBitonal
	// ModeGrayscale is 8 or 16 bit luminance.
	ModeGrayscale
	// ModePalette is an indexed colour image.
	ModePalette
	// ModeRGB is an opaque colour image.
	ModeRGB
	// ModeRGBA is a colour image with an alpha channel.
	ModeRGBA
)

// String returns the string representation of a color mode
func (m ColorMode) String() string {
	switch m {
	case ModeBitonal:
		return "bitonal"
	case ModeGrayscale:
		return "grayscale"
	case ModePalette:
		return "palette"
	case ModeRGB:
		return "rgb"
	case ModeRGBA:
		return "rgba"
	default:
		return "other"
	}
}

// supportedModes lists the layouts kept as decoded. Everything else is
// converted to RGB before any transform.
var supportedModes = map[ColorMode]bool{
	ModeBitonal:   true,
	ModeGrayscale: true,
	ModePalette:   true,
	ModeRGB:       true,
	ModeRGBA:      true,
}

// ColorModeOf classifies the concrete image type returned by a decoder.
func ColorModeOf(img image.Image) ColorMode {
	switch v := img.(type) {
	case *image.Paletted:
		if isBitonal(v.Palette) {
			return ModeBitonal
		}
		return ModePalette
	case *image.Gray, *image.Gray16:
		return ModeGrayscale
	case *image.YCbCr:
		return ModeRGB
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64, *image.NYCbCrA:
		return ModeRGBA
	default:
		return ModeOther
	}
}

func isBitonal(p color.Palette) bool {
	if len(p) == 0 || len(p) > 2 {
		return false
	}
	for _, c := range p {
		r, g, b, a := c.RGBA()
		if a != 0xffff {
			return false
		}
		black := r == 0 && g == 0 && b == 0
		white := r == 0xffff && g == 0xffff && b == 0xffff
		if !black && !white {
			return false
		}
	}
	return true
}

// NormalizeColorMode converts images whose layout is not supported into
// opaque RGB. Supported layouts are returned untouched.
func NormalizeColorMode(d DecodedImage) DecodedImage {
	if supportedModes[d.Mode] {
		return d
	}

	rgb := imaging.Clone(d.Image)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}

	d.Image = rgb
	d.Mode = ModeRGB
	return d
}
