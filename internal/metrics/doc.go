// Package metrics provides Prometheus instrumentation for the thumbnail service.
//
// All metrics are prefixed with "seafile_thumbnail_" to avoid naming
// collisions with other applications.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Thumbnail Metrics
//
//   - ThumbnailGenerationsTotal: Generate calls by media type and status code
//   - ThumbnailGenerationDuration: Generation latency by media type
//   - ThumbnailCacheHits / ThumbnailCacheMisses: existence-check outcomes
//   - ThumbnailFetchBytes: size of originals pulled from the content store
//   - ThumbnailImageDecodeByFormat: decoded images by source format
//   - ThumbnailMemoryLimitRejections: images refused by the decoded-memory ceiling
//   - ThumbnailWatermarksTotal: watermarked renders
//   - VideoFrameExtractionDuration: ffmpeg frame extraction latency
//   - ThumbnailCacheSize / ThumbnailCacheCount: on-disk cache footprint per size
//
// ## Store, Database and Filesystem Metrics
//
//   - StoreOperationsTotal / StoreOperationDuration: content store calls
//   - DBQueryTotal / DBQueryDuration: nickname and share link queries
//   - Filesystem*: ESTALE retry behaviour of the cache existence check
//
// # Usage
//
//	metrics.InitializeMetrics()
//	http.Handle("/metrics", promhttp.Handler())
//
// The Collector refreshes the cache footprint gauges on an interval:
//
//	c := metrics.NewCollector(metrics.DirStatsProvider{Root: root}, time.Minute)
//	c.Start()
//	defer c.Stop()
package metrics
