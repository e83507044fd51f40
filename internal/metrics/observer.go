package metrics

import (
	"time"

	"media-tagger/internal/filesystem"
	"media-tagger/internal/pipeline"
)

// filesystemObserver implements filesystem.Observer with the counters
// declared in metrics.go.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records NFS retry metrics.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveRetryAttempt(op string) {
	FilesystemRetryAttempts.WithLabelValues(op).Inc()
}

func (filesystemObserver) ObserveRetrySuccess(op string) {
	FilesystemRetrySuccess.WithLabelValues(op).Inc()
}

func (filesystemObserver) ObserveRetryFailure(op string) {
	FilesystemRetryFailures.WithLabelValues(op).Inc()
}

func (filesystemObserver) ObserveStaleError(op string) {
	FilesystemStaleErrors.WithLabelValues(op).Inc()
}

// pipelineObserver implements pipeline.Observer.
type pipelineObserver struct{}

// NewPipelineObserver creates an observer that exports thumbnail pipeline
// events as Prometheus metrics.
func NewPipelineObserver() pipeline.Observer {
	return pipelineObserver{}
}

func (pipelineObserver) JobQueued(job pipeline.Job, depth int) {
	ThumbnailJobsEnqueued.WithLabelValues(job.Size.String()).Inc()
	ThumbnailQueueDepth.Set(float64(depth))
}

func (pipelineObserver) JobStarted(_ pipeline.Job, depth int) {
	ThumbnailQueueDepth.Set(float64(depth))
	ThumbnailJobsInFlight.Inc()
}

func (pipelineObserver) JobCompleted(job pipeline.Job, elapsed time.Duration) {
	ThumbnailJobsInFlight.Dec()
	ThumbnailJobsCompleted.WithLabelValues(job.Size.String()).Inc()
	ThumbnailGenerationDuration.WithLabelValues(job.Size.String()).Observe(elapsed.Seconds())
}

func (pipelineObserver) JobRetrying(_ pipeline.Job, kind pipeline.FailureKind, _ time.Duration) {
	ThumbnailJobsInFlight.Dec()
	ThumbnailJobsRetried.WithLabelValues(kind.String()).Inc()
}

func (pipelineObserver) JobFailed(_ pipeline.Job, kind pipeline.FailureKind) {
	ThumbnailJobsInFlight.Dec()
	ThumbnailJobsFailed.WithLabelValues(kind.String()).Inc()
}

func (pipelineObserver) StatsUpdated(stats pipeline.ProcessingStats) {
	ThumbnailThroughput.Set(stats.ThroughputPerSecond)
	ThumbnailWorkers.Set(float64(stats.ActiveWorkers))
}
