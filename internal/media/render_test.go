package media

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

type staticNicknames map[string]string

func (s staticNicknames) Nickname(_ context.Context, email string) string {
	if n, ok := s[email]; ok {
		return n
	}
	return email
}

func newTestRenderer(t *testing.T, limitMB int64) *Renderer {
	t.Helper()

	w, err := NewWatermarker("")
	if err != nil {
		t.Fatalf("NewWatermarker failed: %v", err)
	}
	return &Renderer{
		Decoder:     &Decoder{MaxMemoryMB: limitMB},
		Watermarker: w,
		Nicknames:   staticNicknames{"alice@example.com": "Alice"},
		Extension:   "png",
	}
}

func openDimensions(t *testing.T, path string) (int, int) {
	t.Helper()

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", dir, err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Temporary file left behind: %s", e.Name())
		}
	}
}

func TestRenderDownscales(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		size          int
		wantW, wantH  int
	}{
		{"landscape", 800, 600, 256, 256, 192},
		{"portrait", 300, 900, 48, 16, 48},
		{"square", 500, 500, 100, 100, 100},
		{"smaller than size", 40, 30, 256, 40, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			dst := filepath.Join(dir, "thumb")
			r := newTestRenderer(t, 256)

			err := r.Render(context.Background(), BytesSource(encodeJPEG(t, tt.width, tt.height)), dst, tt.size, "")
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}

			w, h := openDimensions(t, dst)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("Got %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			assertNoTempFiles(t, dir)
		})
	}
}

func TestRenderAppliesOrientation(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "thumb")
	r := newTestRenderer(t, 256)

	data := withOrientation(encodeJPEG(t, 400, 200), OrientationRotate270)
	if err := r.Render(context.Background(), BytesSource(data), dst, 100, ""); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	w, h := openDimensions(t, dst)
	if w != 50 || h != 100 {
		t.Errorf("Got %dx%d, want 50x100 after rotation", w, h)
	}
}

func TestRenderWatermarkKeepsFullResolution(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "thumb_alice@example.com")
	r := newTestRenderer(t, 256)

	// Orientation is not applied on the watermark path either.
	data := withOrientation(encodeJPEG(t, 640, 480), OrientationRotate90)
	if err := r.Render(context.Background(), BytesSource(data), dst, 48, "alice@example.com"); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	w, h := openDimensions(t, dst)
	if w != 640 || h != 480 {
		t.Errorf("Got %dx%d, want 640x480", w, h)
	}
}

func TestRenderMemoryLimit(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "thumb")
	r := newTestRenderer(t, 3)

	err := r.Render(context.Background(), BytesSource(encodePNG(t, image.NewGray(image.Rect(0, 0, 1024, 1024)))), dst, 48, "")
	if !errors.Is(err, ErrDecodedTooLarge) {
		t.Fatalf("Expected ErrDecodedTooLarge, got %v", err)
	}
	if StatusCode(err) != 403 {
		t.Errorf("StatusCode = %d, want 403", StatusCode(err))
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("No file should be written when the image is too large")
	}
	assertNoTempFiles(t, dir)
}

func TestRenderDecodeFailure(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "thumb")
	r := newTestRenderer(t, 256)

	err := r.Render(context.Background(), BytesSource([]byte("garbage")), dst, 48, "")
	if StatusCode(err) != 500 {
		t.Errorf("StatusCode = %d, want 500 (err %v)", StatusCode(err), err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("No file should be written on decode failure")
	}
}

func TestRenderFileSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "frame.png")
	if err := os.WriteFile(src, encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 320, 160))), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	dst := filepath.Join(dir, "thumb")
	r := newTestRenderer(t, 256)
	if err := r.Render(context.Background(), FileSource(src), dst, 64, ""); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if w, h := openDimensions(t, dst); w != 64 || h != 32 {
		t.Errorf("Got %dx%d, want 64x32", w, h)
	}

	err := r.Render(context.Background(), FileSource(filepath.Join(dir, "missing.png")), dst, 64, "")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode for missing source, got %v", err)
	}
}

func TestRenderOutputFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want imaging.Format
	}{
		{"png", imaging.PNG},
		{".png", imaging.PNG},
		{"jpg", imaging.JPEG},
		{"jpeg", imaging.JPEG},
		{"gif", imaging.GIF},
		{"", imaging.PNG},
		{"bogus", imaging.PNG},
	}

	for _, tt := range tests {
		r := &Renderer{Extension: tt.ext}
		if got := r.format(); got != tt.want {
			t.Errorf("format(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestRenderOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "thumb")
	if err := os.WriteFile(dst, []byte("stale"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	r := newTestRenderer(t, 256)
	if err := r.Render(context.Background(), BytesSource(encodeJPEG(t, 20, 20)), dst, 10, ""); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if w, h := openDimensions(t, dst); w != 10 || h != 10 {
		t.Errorf("Got %dx%d, want 10x10", w, h)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("Mode = %v, want 0644", info.Mode().Perm())
	}
}
