package thumbnail

import (
	"errors"
	"net/http"

	"seafile-thumbnail/internal/media"
)

// Client errors, reported as 400.
var (
	ErrInvalidSize      = errors.New("invalid thumbnail size")
	ErrSizeNotAllowed   = errors.New("thumbnail size not enabled")
	ErrInvalidWatermark = errors.New("invalid watermark identity")
	ErrFileNotFound     = errors.New("file not found")
	ErrEncryptedRepo    = errors.New("library is encrypted")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrVideoDisabled    = errors.New("video thumbnails are disabled")

	// ErrFileTooLarge means the raw file is over the image size limit. It is
	// checked before any bytes are fetched.
	ErrFileTooLarge = errors.New("file too large")
)

// Backend errors, reported as 500.
var (
	ErrNoAccessToken = errors.New("failed to get access token")
	ErrBackend       = errors.New("content store unavailable")
	ErrFetch         = errors.New("failed to fetch file content")
)

var clientErrors = []error{
	ErrInvalidSize,
	ErrSizeNotAllowed,
	ErrInvalidWatermark,
	ErrFileNotFound,
	ErrEncryptedRepo,
	ErrUnsupportedType,
	ErrVideoDisabled,
	ErrFileTooLarge,
}

// StatusCode maps the error returned by a generation stage to the status
// reported to the caller.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return media.StatusCode(err)
}
