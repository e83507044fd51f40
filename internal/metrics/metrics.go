package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_tagger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_tagger_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Thumbnail pipeline metrics
var (
	ThumbnailJobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_thumbnail_jobs_enqueued_total",
			Help: "Total number of thumbnail jobs placed on the queue",
		},
		[]string{"size"},
	)

	ThumbnailJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_thumbnail_jobs_completed_total",
			Help: "Total number of thumbnail jobs that generated and persisted a thumbnail",
		},
		[]string{"size"},
	)

	ThumbnailJobsRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_thumbnail_jobs_retried_total",
			Help: "Total number of thumbnail job attempts scheduled for retry, by failure reason",
		},
		[]string{"reason"},
	)

	ThumbnailJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_thumbnail_jobs_failed_total",
			Help: "Total number of thumbnail jobs that exhausted their retries, by last failure reason",
		},
		[]string{"reason"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_tagger_thumbnail_generation_duration_seconds",
			Help:    "Duration of successful thumbnail jobs (generate + persist) in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"size"},
	)

	ThumbnailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_thumbnail_queue_depth",
			Help: "Number of thumbnail jobs waiting in the queue",
		},
	)

	ThumbnailJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_thumbnail_jobs_in_flight",
			Help: "Number of thumbnail jobs currently held by a worker",
		},
	)

	ThumbnailThroughput = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_thumbnail_throughput_per_second",
			Help: "Completed thumbnail jobs per second over the last stats interval",
		},
	)

	ThumbnailWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_thumbnail_workers",
			Help: "Number of running thumbnail workers",
		},
	)
)

// Thumbnail storage metrics
var (
	ThumbnailsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_tagger_thumbnails_stored",
			Help: "Number of persisted thumbnails by size",
		},
		[]string{"size"},
	)

	ThumbnailsStoredBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_thumbnails_stored_bytes",
			Help: "Total size of persisted thumbnail payloads in bytes",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after a stale NFS handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_tagger_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit (0.0-1.0)",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tagger_memory_paused",
			Help: "Whether thumbnail workers are paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_tagger_memory_gc_pauses_total",
			Help: "Total number of times processing was paused for memory pressure",
		},
	)
)
