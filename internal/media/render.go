package media

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/metrics"

	"github.com/disintegration/imaging"
)

// Source is the input to the image pipeline: either raw bytes already in
// memory or a file on local disk.
type Source interface {
	Bytes() ([]byte, error)
}

type bytesSource []byte

func (b bytesSource) Bytes() ([]byte, error) { return b, nil }

// BytesSource wraps an in-memory buffer.
func BytesSource(data []byte) Source { return bytesSource(data) }

type fileSource string

func (f fileSource) Bytes() ([]byte, error) { return os.ReadFile(string(f)) }

// FileSource reads the image from path when the pipeline runs.
func FileSource(path string) Source { return fileSource(path) }

// NicknameResolver looks up the display name shown in a watermark.
type NicknameResolver interface {
	Nickname(ctx context.Context, email string) string
}

// Renderer runs decode, normalize, transform and encode for one thumbnail.
type Renderer struct {
	Decoder     *Decoder
	Watermarker *Watermarker
	Nicknames   NicknameResolver

	// Extension selects the output encoding ("png", "jpg", ...).
	Extension string
	Quality   int
}

func (r *Renderer) format() imaging.Format {
	f, err := imaging.FormatFromExtension(strings.TrimPrefix(r.Extension, "."))
	if err != nil {
		return imaging.PNG
	}
	return f
}

// Render writes a thumbnail of src to dst. With a non-empty watermark the
// output keeps the source resolution; otherwise it is oriented upright and
// shrunk to fit within size x size. Nothing is written to dst on failure.
func (r *Renderer) Render(ctx context.Context, src Source, dst string, size int, watermark string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDecode, p)
		}
	}()

	data, err := src.Bytes()
	if err != nil {
		return fmt.Errorf("%w: read source: %v", ErrDecode, err)
	}

	decoded, err := r.Decoder.Decode(data)
	if err != nil {
		return err
	}
	decoded = NormalizeColorMode(decoded)

	if watermark != "" {
		if r.Watermarker == nil {
			return fmt.Errorf("%w: watermarking not configured", ErrEncode)
		}
		nickname := watermark
		if r.Nicknames != nil {
			nickname = r.Nicknames.Nickname(ctx, watermark)
		}
		marked, err := r.Watermarker.Apply(decoded.Image, nickname, watermark)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
		metrics.ThumbnailWatermarksTotal.Inc()
		logging.Debug("Watermarked %dx%d image for %s", decoded.Width(), decoded.Height(), watermark)
		return r.write(dst, marked)
	}

	decoded = NormalizeOrientation(decoded)
	thumb := imaging.Fit(decoded.Image, size, size, imaging.Lanczos)
	return r.write(dst, thumb)
}

// write encodes img next to dst and renames it into place so a reader
// never observes a partial file.
func (r *Renderer) write(dst string, img image.Image) error {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrEncode, err)
	}
	tmpPath := tmp.Name()

	var opts []imaging.EncodeOption
	if r.Quality > 0 {
		opts = append(opts, imaging.JPEGQuality(r.Quality))
	}
	if err := imaging.Encode(tmp, img, r.format(), opts...); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: encode: %v", ErrEncode, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrEncode, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod: %v", ErrEncode, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename: %v", ErrEncode, err)
	}

	logging.Debug("Thumbnail written: %s (%dx%d)", dst, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
