// Package mediatypes decides from a file name whether a library file is
// thumbnailed as an image, through a video frame, or not at all.
//
//	switch mediatypes.Classify("/photos/IMG_0001.JPG") {
//	case mediatypes.Image:
//	case mediatypes.Video:
//	}
//
// It has no dependencies so that both the generator and the HTTP layer can
// import it.
package mediatypes
