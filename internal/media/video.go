package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/metrics"
)

// FrameExtractor writes a single still of the video at source into dst.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, source, dst string, at time.Duration) error
}

// FFmpegExtractor extracts frames with the ffmpeg binary. Source may be a
// local path or an http(s) URL; ffmpeg may open it more than once.
type FFmpegExtractor struct {
	// Binary defaults to "ffmpeg" on PATH.
	Binary string
}

func (e *FFmpegExtractor) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return "ffmpeg"
}

// ExtractFrame seeks to at and saves one frame. When the video is shorter
// than at, it falls back to the first frame.
func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, source, dst string, at time.Duration) error {
	err := e.run(ctx, source, dst, at)
	if err == nil {
		return nil
	}

	logging.Debug("FFmpeg frame at %v failed for %s: %v, retrying from start", at, source, err)
	return e.run(ctx, source, dst, 0)
}

func (e *FFmpegExtractor) run(ctx context.Context, source, dst string, at time.Duration) error {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if at > 0 {
		args = append(args, "-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64))
	}
	args = append(args,
		"-i", source,
		"-frames:v", "1",
		"-f", "image2",
		"-vcodec", "png",
		"-y", dst,
	)

	cmd := exec.CommandContext(ctx, e.binary(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no output for %s", source)
	}
	return nil
}

// VideoThumbnailer extracts a frame into a scoped temporary file and feeds
// it through the image pipeline.
type VideoThumbnailer struct {
	Extractor FrameExtractor
	Renderer  *Renderer
	FrameTime time.Duration
	// TempDir defaults to os.TempDir().
	TempDir string
}

// tempPrefix derives the temp file prefix from the first eight characters
// of the file identity.
func tempPrefix(fileID string) string {
	prefix := fileID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	prefix = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, prefix)
	return prefix + "-*.png"
}

// Render writes the thumbnail for the video at source to dst. The
// temporary frame is removed on every return path.
func (v *VideoThumbnailer) Render(ctx context.Context, source, fileID, dst string, size int) error {
	tmp, err := os.CreateTemp(v.TempDir, tempPrefix(fileID))
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrExtractFrame, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		logging.Warn("failed to close temp file %s: %v", tmpPath, err)
	}
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove temp frame %s: %v", tmpPath, err)
		}
	}()

	start := time.Now()
	if err := v.Extractor.ExtractFrame(ctx, source, tmpPath, v.FrameTime); err != nil {
		metrics.VideoFrameExtractionDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%w: %v", ErrExtractFrame, err)
	}
	elapsed := time.Since(start)
	metrics.VideoFrameExtractionDuration.WithLabelValues("success").Observe(elapsed.Seconds())
	logging.Debug("Extracted frame of %s at %v in %v", fileID, v.FrameTime, elapsed)

	return v.Renderer.Render(ctx, FileSource(tmpPath), dst, size, "")
}
