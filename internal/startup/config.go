package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"seafile-thumbnail/internal/logging"

	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

// S3Config locates the object storage holding library files.
type S3Config struct {
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	AccessSecret   string `yaml:"access_secret"`
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// Config holds all application configuration. Values come from defaults,
// then the optional YAML file named by THUMBNAIL_CONFIG_FILE, then the
// environment.
type Config struct {
	ThumbnailRoot       string  `yaml:"thumbnail_root"`
	Extension           string  `yaml:"extension"`
	ImageSizeLimitMB    int64   `yaml:"image_size_limit"`
	OriginalSizeLimitMB int64   `yaml:"image_original_size_limit"`
	VideoEnabled        bool    `yaml:"enable_video_thumbnail"`
	VideoFrameSeconds   float64 `yaml:"video_frame_time"`
	Sizes               []int   `yaml:"sizes"`
	WatermarkFont       string  `yaml:"watermark_font"`
	FFmpegPath          string  `yaml:"ffmpeg_path"`
	TempDir             string  `yaml:"temp_dir"`

	DatabasePath      string        `yaml:"database_path"`
	NicknameCacheSize int           `yaml:"nickname_cache_size"`
	NicknameCacheTTL  time.Duration `yaml:"nickname_cache_ttl"`

	S3 S3Config `yaml:"s3"`

	Port               string        `yaml:"port"`
	MetricsPort        string        `yaml:"metrics_port"`
	MetricsEnabled     bool          `yaml:"metrics_enabled"`
	CacheStatsInterval time.Duration `yaml:"cache_stats_interval"`
	LogHealthChecks    bool          `yaml:"log_health_checks"`
	ShareLinkWatermark bool          `yaml:"share_link_watermark"`
}

// VideoFrameTime is the offset of the frame used for video thumbnails.
func (c *Config) VideoFrameTime() time.Duration {
	return time.Duration(c.VideoFrameSeconds * float64(time.Second))
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		ThumbnailRoot:       "/data/thumbnail",
		Extension:           "png",
		ImageSizeLimitMB:    30,
		OriginalSizeLimitMB: 256,
		VideoFrameSeconds:   5,
		FFmpegPath:          "ffmpeg",
		DatabasePath:        "/data/seahub.db",
		NicknameCacheSize:   1024,
		NicknameCacheTTL:    10 * time.Minute,
		S3: S3Config{
			Region: "us-east-1",
		},
		Port:               "8088",
		MetricsPort:        "9090",
		MetricsEnabled:     true,
		CacheStatsInterval: 5 * time.Minute,
		LogHealthChecks:    false,
	}
}

// readConfig layers the YAML file and the environment over the defaults.
func readConfig() (*Config, error) {
	cfg := DefaultConfig()

	if file := os.Getenv("THUMBNAIL_CONFIG_FILE"); file != "" {
		if err := loadFile(file, cfg); err != nil {
			return nil, err
		}
		logging.Info("  Loaded configuration file %s", file)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	intVar := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	cfg.ThumbnailRoot = getEnv("THUMBNAIL_ROOT", cfg.ThumbnailRoot)
	cfg.Extension = strings.TrimPrefix(getEnv("THUMBNAIL_EXTENSION", cfg.Extension), ".")
	intVar("THUMBNAIL_IMAGE_SIZE_LIMIT", &cfg.ImageSizeLimitMB)
	intVar("THUMBNAIL_IMAGE_ORIGINAL_SIZE_LIMIT", &cfg.OriginalSizeLimitMB)
	cfg.VideoEnabled = getEnvBool("ENABLE_VIDEO_THUMBNAIL", cfg.VideoEnabled)
	if v := os.Getenv("THUMBNAIL_VIDEO_FRAME_TIME"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("THUMBNAIL_VIDEO_FRAME_TIME: %w", err))
		} else {
			cfg.VideoFrameSeconds = secs
		}
	}
	if v := os.Getenv("THUMBNAIL_SIZES"); v != "" {
		sizes, err := parseSizes(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("THUMBNAIL_SIZES: %w", err))
		} else {
			cfg.Sizes = sizes
		}
	}
	cfg.WatermarkFont = getEnv("WATERMARK_FONT", cfg.WatermarkFont)
	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.TempDir = getEnv("THUMBNAIL_TEMP_DIR", cfg.TempDir)

	cfg.DatabasePath = getEnv("SEAHUB_DB_PATH", cfg.DatabasePath)
	cfg.NicknameCacheTTL = getEnvDuration("NICKNAME_CACHE_TTL", cfg.NicknameCacheTTL)

	cfg.S3.Endpoint = getEnv("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKey = getEnv("S3_ACCESS_KEY", cfg.S3.AccessKey)
	cfg.S3.AccessSecret = getEnv("S3_ACCESS_SECRET", cfg.S3.AccessSecret)
	cfg.S3.Region = getEnv("S3_REGION", cfg.S3.Region)
	cfg.S3.Bucket = getEnv("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Prefix = getEnv("S3_PREFIX", cfg.S3.Prefix)
	cfg.S3.ForcePathStyle = getEnvBool("S3_FORCE_PATH_STYLE", cfg.S3.ForcePathStyle)

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.CacheStatsInterval = getEnvDuration("CACHE_STATS_INTERVAL", cfg.CacheStatsInterval)
	cfg.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", cfg.LogHealthChecks)
	cfg.ShareLinkWatermark = getEnvBool("SHARE_LINK_WATERMARK", cfg.ShareLinkWatermark)

	return errors.Join(errs...)
}

func parseSizes(raw string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ThumbnailRoot == "" {
		errs = append(errs, errors.New("thumbnail root is required"))
	}
	if _, err := imaging.FormatFromExtension(c.Extension); err != nil {
		errs = append(errs, fmt.Errorf("unsupported thumbnail extension %q", c.Extension))
	}
	if c.ImageSizeLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("image size limit must be positive, got %d", c.ImageSizeLimitMB))
	}
	if c.OriginalSizeLimitMB <= 0 {
		errs = append(errs, fmt.Errorf("original size limit must be positive, got %d", c.OriginalSizeLimitMB))
	}
	if c.VideoFrameSeconds < 0 {
		errs = append(errs, fmt.Errorf("video frame time must not be negative, got %v", c.VideoFrameSeconds))
	}
	for _, size := range c.Sizes {
		if size <= 0 {
			errs = append(errs, fmt.Errorf("thumbnail sizes must be positive, got %d", size))
		}
	}
	if c.S3.Bucket == "" {
		errs = append(errs, errors.New("S3 bucket is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("seahub database path is required"))
	}
	return errors.Join(errs...)
}

// ReadConfig loads and validates the configuration without the startup
// report or any directory setup.
func ReadConfig() (*Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads, logs and validates the configuration and prepares the
// thumbnail root.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	cfg.log()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	root, err := filepath.Abs(cfg.ThumbnailRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve thumbnail root: %w", err)
	}
	cfg.ThumbnailRoot = root
	logging.Info("  Thumbnail root (absolute): %s", root)

	if err := ensureDirectory(root, "thumbnail"); err != nil {
		return nil, fmt.Errorf("thumbnail root error: %w", err)
	}
	if err := testWriteAccess(root); err != nil {
		return nil, fmt.Errorf("thumbnail root is not writable: %w", err)
	}
	logging.Info("  [OK] Thumbnail root is writable")

	if cfg.TempDir != "" {
		if err := ensureDirectory(cfg.TempDir, "temp"); err != nil {
			return nil, fmt.Errorf("temp directory error: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) log() {
	sizes := "any"
	if len(c.Sizes) > 0 {
		parts := make([]string, len(c.Sizes))
		for i, s := range c.Sizes {
			parts[i] = strconv.Itoa(s)
		}
		sizes = strings.Join(parts, ",")
	}
	font := c.WatermarkFont
	if font == "" {
		font = "(embedded Go Regular)"
	}

	logging.Info("  THUMBNAIL_ROOT:                      %s", c.ThumbnailRoot)
	logging.Info("  THUMBNAIL_EXTENSION:                 %s", c.Extension)
	logging.Info("  THUMBNAIL_IMAGE_SIZE_LIMIT:          %d MB", c.ImageSizeLimitMB)
	logging.Info("  THUMBNAIL_IMAGE_ORIGINAL_SIZE_LIMIT: %d MB", c.OriginalSizeLimitMB)
	logging.Info("  ENABLE_VIDEO_THUMBNAIL:              %v", c.VideoEnabled)
	logging.Info("  THUMBNAIL_VIDEO_FRAME_TIME:          %vs", c.VideoFrameSeconds)
	logging.Info("  THUMBNAIL_SIZES:                     %s", sizes)
	logging.Info("  WATERMARK_FONT:                      %s", font)
	logging.Info("  SEAHUB_DB_PATH:                      %s", c.DatabasePath)
	logging.Info("  S3_ENDPOINT:                         %s", valueOr(c.S3.Endpoint, "(AWS)"))
	logging.Info("  S3_BUCKET:                           %s", c.S3.Bucket)
	logging.Info("  S3_PREFIX:                           %s", valueOr(c.S3.Prefix, "(none)"))
	logging.Info("  PORT:                                %s", c.Port)
	logging.Info("  METRICS_PORT:                        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:                     %v", c.MetricsEnabled)
	logging.Info("  SHARE_LINK_WATERMARK:                %v", c.ShareLinkWatermark)
	logging.Info("  LOG_HEALTH_CHECKS:                   %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:                           %s", logging.GetLevel())
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
