package mediatypes

import (
	"path"
	"strings"
)

// Kind is how a library file is thumbnailed.
type Kind string

const (
	Image Kind = "image"
	// Video files get a thumbnail from a single extracted frame.
	Video Kind = "video"
	Other Kind = "other"
)

// kinds is keyed by lower-case extension with the leading dot.
var kinds = map[string]Kind{
	".jpg": Image, ".jpeg": Image, ".png": Image, ".gif": Image,
	".bmp": Image, ".tif": Image, ".tiff": Image, ".webp": Image,
	".ico": Image, ".psd": Image,
	// decoded through libvips only
	".heic": Image, ".heif": Image, ".avif": Image,

	".mp4": Video, ".mov": Video, ".m4v": Video, ".webm": Video,
	".ogv": Video, ".mkv": Video, ".avi": Video, ".mpg": Video,
	".mpeg": Video, ".3gp": Video, ".wmv": Video, ".flv": Video,
}

// outputTypes lists the encodings a thumbnail can be written in.
var outputTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// Classify returns the Kind of a posix path from the extension of its base
// name, ignoring case.
func Classify(p string) Kind {
	return KindOf(path.Ext(path.Base(p)))
}

// KindOf returns the Kind for an extension such as ".JPG" or "mp4".
func KindOf(ext string) Kind {
	if k, ok := kinds[normalize(ext)]; ok {
		return k
	}
	return Other
}

// ContentType returns the Content-Type of thumbnails written with the given
// output extension.
func ContentType(ext string) string {
	if ct, ok := outputTypes[normalize(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
