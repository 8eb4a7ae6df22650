package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seafile_thumbnail_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seafile_thumbnail_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Thumbnail metrics
var (
	// ThumbnailGenerationsTotal counts Generate calls by media type and
	// resulting status code.
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_generations_total",
			Help: "Total number of thumbnail generation requests",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seafile_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)

	ThumbnailFetchBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "seafile_thumbnail_fetch_bytes",
			Help:    "Size of original files fetched from the content store",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
	)

	ThumbnailImageDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_image_decode_total",
			Help: "Total number of decoded source images by format",
		},
		[]string{"format"},
	)

	ThumbnailMemoryLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_memory_limit_rejections_total",
			Help: "Images rejected because their decoded size exceeds the memory ceiling",
		},
	)

	ThumbnailWatermarksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_watermarks_total",
			Help: "Total number of watermarked images rendered",
		},
	)

	VideoFrameExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seafile_thumbnail_video_frame_extraction_duration_seconds",
			Help:    "Duration of video frame extraction in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"},
	)
)

// Content store metrics
var (
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_store_operations_total",
			Help: "Total number of content store operations",
		},
		[]string{"operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seafile_thumbnail_store_operation_duration_seconds",
			Help:    "Content store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seafile_thumbnail_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after ESTALE",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seafile_thumbnail_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seafile_thumbnail_memory_paused",
			Help: "1 while thumbnail generation is held back by memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seafile_thumbnail_memory_pauses_total",
			Help: "Number of times thumbnail generation was paused by memory pressure",
		},
	)
)

// Application metrics
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seafile_thumbnail_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// Cache metrics, refreshed by the Collector
var (
	ThumbnailCacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seafile_thumbnail_cache_size_bytes",
			Help: "Size of the thumbnail cache in bytes, by thumbnail size",
		},
		[]string{"size"},
	)

	ThumbnailCacheCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seafile_thumbnail_cache_count",
			Help: "Number of cached thumbnails, by thumbnail size",
		},
		[]string{"size"},
	)
)
