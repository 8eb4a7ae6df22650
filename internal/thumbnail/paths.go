package thumbnail

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// CachePath returns root/size/fileID, or root/size/fileID_watermark for a
// watermarked thumbnail.
func CachePath(root, fileID string, size int, watermark string) string {
	name := fileID
	if watermark != "" {
		name = fileID + "_" + watermark
	}
	return filepath.Join(root, strconv.Itoa(size), name)
}

// ValidateWatermark rejects identities that would escape the size
// directory or make two cache names collide.
func ValidateWatermark(watermark string) error {
	if strings.ContainsAny(watermark, "/\\\x00") || strings.Contains(watermark, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidWatermark, watermark)
	}
	return nil
}

// ThumbnailSrc returns the public URL path of a thumbnail inside a library.
func ThumbnailSrc(repoID string, size int, filePath string) string {
	return path.Join("thumbnail", repoID, strconv.Itoa(size), strings.TrimLeft(filePath, "/"))
}

// ShareLinkThumbnailSrc returns the URL path of a thumbnail reached through
// a share link token.
func ShareLinkThumbnailSrc(token string, size int, filePath string) string {
	return path.Join("thumbnail", token, strconv.Itoa(size), strings.TrimLeft(filePath, "/"))
}

// ParseSize parses a requested size. Only positive integers are accepted,
// and when allowed is non-empty the size must be one of its entries.
func ParseSize(raw string, allowed []int) (int, error) {
	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, raw)
	}
	if len(allowed) == 0 {
		return size, nil
	}
	for _, s := range allowed {
		if s == size {
			return size, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrSizeNotAllowed, size)
}
