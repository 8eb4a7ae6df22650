// Package startup loads the service configuration and logs each stage of
// startup and shutdown in a consistent banner style.
//
// # Configuration
//
// [LoadConfig] starts from [DefaultConfig], overlays the YAML file named by
// THUMBNAIL_CONFIG_FILE when set, then applies the environment:
//
//   - THUMBNAIL_ROOT: thumbnail cache directory (default: /data/thumbnail)
//   - THUMBNAIL_EXTENSION: output encoding, png/jpg/gif/bmp/tiff (default: png)
//   - THUMBNAIL_IMAGE_SIZE_LIMIT: max raw image size in MB (default: 30)
//   - THUMBNAIL_IMAGE_ORIGINAL_SIZE_LIMIT: max width*height*4 in MB (default: 256)
//   - ENABLE_VIDEO_THUMBNAIL: extract video frames with ffmpeg (default: false)
//   - THUMBNAIL_VIDEO_FRAME_TIME: frame offset in seconds (default: 5)
//   - THUMBNAIL_SIZES: comma separated list of accepted sizes (default: any)
//   - WATERMARK_FONT: TrueType/OpenType font for watermarks (default: embedded)
//   - FFMPEG_PATH, THUMBNAIL_TEMP_DIR
//   - SEAHUB_DB_PATH, NICKNAME_CACHE_TTL
//   - S3_ENDPOINT, S3_ACCESS_KEY, S3_ACCESS_SECRET, S3_REGION, S3_BUCKET,
//     S3_PREFIX, S3_FORCE_PATH_STYLE
//   - PORT (default: 8088), METRICS_PORT (default: 9090), METRICS_ENABLED
//   - CACHE_STATS_INTERVAL, LOG_HEALTH_CHECKS, SHARE_LINK_WATERMARK
//
// Environment values win over the file. [Config.Validate] reports every
// problem at once.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
