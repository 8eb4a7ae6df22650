package media

import (
	"errors"
	"net/http"
)

var (
	// ErrDecode is returned when the source bytes cannot be decoded as an image.
	ErrDecode = errors.New("failed to decode image")

	// ErrDecodedTooLarge is returned when width*height*4 bytes exceeds the
	// configured original-size ceiling. Decoding may have succeeded, but the
	// raster is too large to process further.
	ErrDecodedTooLarge = errors.New("decoded image exceeds memory limit")

	// ErrEncode is returned when the thumbnail cannot be encoded or persisted.
	ErrEncode = errors.New("failed to write thumbnail")

	// ErrExtractFrame is returned when no frame could be pulled from a video.
	ErrExtractFrame = errors.New("failed to extract video frame")
)

// StatusCode maps a pipeline error to the status reported to callers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDecodedTooLarge):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
