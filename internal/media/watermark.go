package media

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// minWatermarkFontSize is the smallest font size the compositor will render.
const minWatermarkFontSize = 6

var (
	watermarkBackground = color.NRGBA{R: 0, G: 0, B: 0, A: 88}
	watermarkText       = color.NRGBA{R: 255, G: 255, B: 245, A: 255}
)

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// WatermarkFontSize returns the font size for an image whose shorter side
// is minDim pixels: three points per 200px step above 200, starting at 11.
func WatermarkFontSize(minDim int) int {
	size := floorDiv(minDim-200, 200)*3 + 11
	if size < minWatermarkFontSize {
		return minWatermarkFontSize
	}
	return size
}

// WatermarkMargin returns the inset of the watermark block from the right
// and bottom edges.
func WatermarkMargin(minDim int) int {
	margin := floorDiv(minDim-200, 200)*1 + 5
	if margin < 0 {
		return 0
	}
	return margin
}

// Watermarker renders a nickname and email overlay into the bottom-right
// corner of an image.
type Watermarker struct {
	font *opentype.Font
}

// NewWatermarker parses the TrueType/OpenType font at fontPath. An empty
// path uses the embedded Go Regular face.
func NewWatermarker(fontPath string) (*Watermarker, error) {
	data := goregular.TTF
	if fontPath != "" {
		var err error
		data, err = os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read watermark font: %w", err)
		}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watermark font: %w", err)
	}
	return &Watermarker{font: f}, nil
}

// Apply draws the overlay and returns a new image with the same dimensions
// as img. The email line sits directly above the nickname line and both are
// right-aligned against a translucent dark box.
func (w *Watermarker) Apply(img image.Image, nickname, email string) (*image.NRGBA, error) {
	base := imaging.Clone(img)
	width, height := base.Bounds().Dx(), base.Bounds().Dy()

	minDim := width
	if height < minDim {
		minDim = height
	}
	fontSize := WatermarkFontSize(minDim)
	margin := WatermarkMargin(minDim)

	face, err := opentype.NewFace(w.font, &opentype.FaceOptions{
		Size:    float64(fontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	fm := face.Metrics()
	ascent := fm.Ascent.Ceil()
	lineHeight := (fm.Ascent + fm.Descent).Ceil()

	nickWidth := font.MeasureString(face, nickname).Ceil()
	emailWidth := font.MeasureString(face, email).Ceil()
	maxWidth := nickWidth
	if emailWidth > maxWidth {
		maxWidth = emailWidth
	}

	overlay := image.NewNRGBA(base.Bounds())

	box := image.Rect(
		width-maxWidth-2*margin,
		height-2*lineHeight-2*margin,
		width+margin+1,
		height+margin+1,
	).Intersect(overlay.Bounds())
	draw.Draw(overlay, box, image.NewUniform(watermarkBackground), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  overlay,
		Src:  image.NewUniform(watermarkText),
		Face: face,
	}

	// Positions are top-left corners; the drawer wants the baseline.
	drawer.Dot = fixed.P(width-nickWidth-margin, height-lineHeight-margin+ascent)
	drawer.DrawString(nickname)

	drawer.Dot = fixed.P(width-emailWidth-margin, height-2*lineHeight-margin+ascent)
	drawer.DrawString(email)

	draw.Draw(base, base.Bounds(), overlay, image.Point{}, draw.Over)
	return base, nil
}
