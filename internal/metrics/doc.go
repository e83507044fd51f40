// Package metrics provides Prometheus instrumentation for media-tagger.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_tagger_".
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter of requests by method, path and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of requests being served
//
// ## Database Metrics
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBConnectionsOpen: Gauge of open SQLite connections
//
// ## Thumbnail Pipeline Metrics
//   - ThumbnailJobsEnqueued / ThumbnailJobsCompleted: Counters by size
//   - ThumbnailJobsRetried / ThumbnailJobsFailed: Counters by failure reason
//     (generation, timeout, persistence)
//   - ThumbnailGenerationDuration: Histogram of successful job duration by size
//   - ThumbnailQueueDepth, ThumbnailJobsInFlight, ThumbnailWorkers: Gauges
//   - ThumbnailThroughput: Gauge of jobs per second over the last stats interval
//
// ## Storage Metrics
//   - ThumbnailsStored: Gauge of persisted thumbnails by size
//   - ThumbnailsStoredBytes: Gauge of persisted payload bytes
//
// ## Filesystem and Memory Metrics
//   - FilesystemRetry*: NFS stale handle retries by operation
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses: memory backpressure
//
// # Wiring
//
// The pipeline and filesystem packages cannot import this package, so they
// report through observers:
//
//	filesystem.SetObserver(metrics.NewFilesystemObserver())
//	p := pipeline.New(repo, gen, cfg, pipeline.WithObserver(metrics.NewPipelineObserver()))
//
// Storage gauges are refreshed by a [Collector]:
//
//	collector := metrics.NewCollector(db, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Failure rate by reason:
//
//	sum(rate(media_tagger_thumbnail_jobs_failed_total[5m])) by (reason)
//
// P95 generation time:
//
//	histogram_quantile(0.95, sum(rate(media_tagger_thumbnail_generation_duration_seconds_bucket[5m])) by (le, size))
//
// Retries per completed job:
//
//	rate(media_tagger_thumbnail_jobs_retried_total[15m]) / rate(media_tagger_thumbnail_jobs_completed_total[15m])
package metrics
