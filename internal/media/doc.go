// Package media turns untrusted image and video bytes into thumbnails.
//
// The pipeline is decode, colour-mode normalization, then either a
// watermark overlay at full resolution or EXIF reorientation followed by a
// Lanczos downscale, and finally an atomic write to the cache path:
//   - Decoder enforces the decoded-memory ceiling (width*height*4 bytes)
//     from the header before allocating the raster when it can
//   - Watermarker draws the nickname and email block in the bottom-right
//     corner without resizing
//   - VideoThumbnailer pulls a single frame with ffmpeg into a temporary
//     file that is removed on every return path
//
// libvips is used as a fallback decoder for formats the Go decoders do not
// understand once InitVips has been called.
package media
