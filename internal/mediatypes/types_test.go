package mediatypes

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"/photos/a.jpg", Image},
		{"/photos/A.JPEG", Image},
		{"b.png", Image},
		{"/scans/c.tiff", Image},
		{"/phone/IMG_1.HEIC", Image},
		{"/design/mock.psd", Image},
		{"/video/clip.mp4", Video},
		{"/video/clip.MOV", Video},
		{"/video/old.ogv", Video},
		{"/docs/report.pdf", Other},
		{"/docs/README", Other},
		{"/odd.dir.jpg/file", Other},
		{"/photos/archive.jpg.zip", Other},
		{"", Other},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{".jpg", Image},
		{"jpg", Image},
		{" .Webp ", Image},
		{"mkv", Video},
		{".xyz", Other},
		{"", Other},
		{".", Other},
	}

	for _, tt := range tests {
		if got := KindOf(tt.ext); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestExtensionsNormalized(t *testing.T) {
	for ext := range kinds {
		if normalize(ext) != ext {
			t.Errorf("extension %q is not normalized", ext)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"png", "image/png"},
		{".png", "image/png"},
		{"JPG", "image/jpeg"},
		{"jpeg", "image/jpeg"},
		{"tif", "image/tiff"},
		{"webp", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := ContentType(tt.ext); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
