package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, size := range []string{"small", "medium", "large"} {
		ThumbnailJobsEnqueued.WithLabelValues(size)
		ThumbnailJobsCompleted.WithLabelValues(size)
		ThumbnailGenerationDuration.WithLabelValues(size)
		ThumbnailsStored.WithLabelValues(size)
	}

	for _, reason := range []string{"generation", "timeout", "persistence"} {
		ThumbnailJobsRetried.WithLabelValues(reason)
		ThumbnailJobsFailed.WithLabelValues(reason)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "upsert_thumbnail", "find_thumbnail",
		"delete_thumbnails", "delete_orphans", "upsert_file", "files_missing_thumbnails", "thumbnail_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
