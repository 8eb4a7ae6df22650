package media

import (
	"bytes"
	"fmt"
	"image"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support
)

// bytesPerPixel is the worst-case RGBA cost used for the memory ceiling.
const bytesPerPixel = 4

// DecodedImage is an in-memory raster plus what the pipeline needs to know
// about it.
type DecodedImage struct {
	Image  image.Image
	Format string
	Mode   ColorMode

	// Orientation is the EXIF orientation read from the source, or zero
	// when the source carried none.
	Orientation Orientation
}

// Width returns the raster width in pixels.
func (d DecodedImage) Width() int { return d.Image.Bounds().Dx() }

// Height returns the raster height in pixels.
func (d DecodedImage) Height() int { return d.Image.Bounds().Dy() }

// MemoryCostMB returns the worst-case RGBA footprint of a width x height
// raster in whole megabytes.
func MemoryCostMB(width, height int) int64 {
	return int64(width) * int64(height) * bytesPerPixel / 1024 / 1024
}

// Decoder turns untrusted bytes into a DecodedImage, refusing rasters whose
// memory cost exceeds MaxMemoryMB.
type Decoder struct {
	MaxMemoryMB int64
}

func (d *Decoder) checkDimensions(width, height int) error {
	if cost := MemoryCostMB(width, height); cost > d.MaxMemoryMB {
		metrics.ThumbnailMemoryLimitRejections.Inc()
		return fmt.Errorf("%w: %dx%d needs %dMB, limit %dMB",
			ErrDecodedTooLarge, width, height, cost, d.MaxMemoryMB)
	}
	return nil
}

// Decode decodes data. The header is checked against the memory ceiling
// before the raster is allocated whenever the format allows it, and the
// decoded bounds are always checked again afterwards.
func (d *Decoder) Decode(data []byte) (DecodedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if IsVipsAvailable() {
			logging.Debug("Go decoders rejected image (%v), trying libvips", err)
			return d.decodeWithVips(data)
		}
		metrics.ThumbnailImageDecodeByFormat.WithLabelValues("unknown").Inc()
		return DecodedImage{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	if err := d.checkDimensions(cfg.Width, cfg.Height); err != nil {
		return DecodedImage{}, err
	}

	img, err := safeDecode(data)
	if err != nil {
		return DecodedImage{}, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}

	if err := d.checkDimensions(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return DecodedImage{}, err
	}

	metrics.ThumbnailImageDecodeByFormat.WithLabelValues(format).Inc()

	decoded := DecodedImage{
		Image:  img,
		Format: format,
		Mode:   ColorModeOf(img),
	}
	if o, ok := ReadOrientation(data); ok {
		decoded.Orientation = o
	}

	logging.Debug("Decoded %s image %dx%d (mode %s, orientation %d)",
		format, decoded.Width(), decoded.Height(), decoded.Mode, decoded.Orientation)

	return decoded, nil
}

// safeDecode runs the registered decoders, turning a decoder panic on
// malformed input into an error.
func safeDecode(data []byte) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return imaging.Decode(bytes.NewReader(data))
}
