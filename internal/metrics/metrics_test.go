package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"media-tagger/internal/pipeline"
	"media-tagger/internal/thumbnail"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestInitializeMetrics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("InitializeMetrics() panicked: %v", r)
		}
	}()
	InitializeMetrics()
}

func TestPipelineObserver(t *testing.T) {
	obs := NewPipelineObserver()
	job := *pipeline.NewJob(1, "/a.jpg", thumbnail.SizeMedium)

	enqueued := counterValue(t, ThumbnailJobsEnqueued.WithLabelValues("medium"))
	completed := counterValue(t, ThumbnailJobsCompleted.WithLabelValues("medium"))
	retried := counterValue(t, ThumbnailJobsRetried.WithLabelValues("timeout"))
	failed := counterValue(t, ThumbnailJobsFailed.WithLabelValues("persistence"))
	inFlight := gaugeValue(t, ThumbnailJobsInFlight)

	obs.JobQueued(job, 4)
	if got := gaugeValue(t, ThumbnailQueueDepth); got != 4 {
		t.Errorf("queue depth = %v, want 4", got)
	}

	obs.JobStarted(job, 3)
	if got := gaugeValue(t, ThumbnailJobsInFlight); got != inFlight+1 {
		t.Errorf("in flight = %v, want %v", got, inFlight+1)
	}
	obs.JobRetrying(job, pipeline.FailureTimeout, time.Second)
	obs.JobStarted(job, 2)
	obs.JobFailed(job, pipeline.FailurePersistence)
	obs.JobStarted(job, 1)
	obs.JobCompleted(job, 200*time.Millisecond)

	if got := counterValue(t, ThumbnailJobsEnqueued.WithLabelValues("medium")); got != enqueued+1 {
		t.Errorf("enqueued = %v, want %v", got, enqueued+1)
	}
	if got := counterValue(t, ThumbnailJobsCompleted.WithLabelValues("medium")); got != completed+1 {
		t.Errorf("completed = %v, want %v", got, completed+1)
	}
	if got := counterValue(t, ThumbnailJobsRetried.WithLabelValues("timeout")); got != retried+1 {
		t.Errorf("retried = %v, want %v", got, retried+1)
	}
	if got := counterValue(t, ThumbnailJobsFailed.WithLabelValues("persistence")); got != failed+1 {
		t.Errorf("failed = %v, want %v", got, failed+1)
	}
	if got := gaugeValue(t, ThumbnailJobsInFlight); got != inFlight {
		t.Errorf("in flight = %v, want %v", got, inFlight)
	}

	obs.StatsUpdated(pipeline.ProcessingStats{ThroughputPerSecond: 2.5, ActiveWorkers: 4})
	if got := gaugeValue(t, ThumbnailThroughput); got != 2.5 {
		t.Errorf("throughput = %v, want 2.5", got)
	}
	if got := gaugeValue(t, ThumbnailWorkers); got != 4 {
		t.Errorf("workers = %v, want 4", got)
	}
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()
	before := counterValue(t, FilesystemStaleErrors.WithLabelValues("open"))

	obs.ObserveStaleError("open")
	obs.ObserveRetryAttempt("open")
	obs.ObserveRetrySuccess("open")
	obs.ObserveRetryFailure("open")

	if got := counterValue(t, FilesystemStaleErrors.WithLabelValues("open")); got != before+1 {
		t.Errorf("stale errors = %v, want %v", got, before+1)
	}
}

type fakeStatsProvider struct {
	stats thumbnail.StorageStats
	err   error
	calls chan struct{}
}

func (f *fakeStatsProvider) StorageStats(context.Context) (thumbnail.StorageStats, error) {
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return f.stats, f.err
}

func TestCollectorUpdatesStorageGauges(t *testing.T) {
	provider := &fakeStatsProvider{
		stats: thumbnail.StorageStats{
			Total:      5,
			BySize:     map[thumbnail.Size]int64{thumbnail.SizeSmall: 3, thumbnail.SizeLarge: 2},
			TotalBytes: 4096,
		},
		calls: make(chan struct{}, 1),
	}

	c := NewCollector(provider, time.Hour)
	c.Start()
	<-provider.calls
	c.Stop()

	if got := gaugeValue(t, ThumbnailsStored.WithLabelValues("small")); got != 3 {
		t.Errorf("stored small = %v, want 3", got)
	}
	if got := gaugeValue(t, ThumbnailsStored.WithLabelValues("medium")); got != 0 {
		t.Errorf("stored medium = %v, want 0", got)
	}
	if got := gaugeValue(t, ThumbnailsStoredBytes); got != 4096 {
		t.Errorf("stored bytes = %v, want 4096", got)
	}
}

func TestCollectorToleratesErrors(t *testing.T) {
	provider := &fakeStatsProvider{err: errors.New("locked"), calls: make(chan struct{}, 1)}
	c := NewCollector(provider, time.Hour)
	c.Start()
	<-provider.calls
	c.Stop()
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.Start()
	c.Stop()
}
