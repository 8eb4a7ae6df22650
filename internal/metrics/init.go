package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, mediaType := range []string{"image", "video", "other", "unknown"} {
		ThumbnailGenerationDuration.WithLabelValues(mediaType)
		for _, status := range []string{"200", "400", "403", "500"} {
			ThumbnailGenerationsTotal.WithLabelValues(mediaType, status)
		}
	}

	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "vips", "unknown"} {
		ThumbnailImageDecodeByFormat.WithLabelValues(format)
	}

	for _, status := range []string{"success", "error"} {
		VideoFrameExtractionDuration.WithLabelValues(status)
	}

	for _, op := range []string{"file_id", "repo", "file_size", "access_token", "file_url", "fetch"} {
		StoreOperationDuration.WithLabelValues(op)
		for _, status := range []string{"success", "not_found", "error"} {
			StoreOperationsTotal.WithLabelValues(op, status)
		}
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
