package pipeline

import (
	"context"
	"sync"
	"time"
)

// ProcessingStats is a point-in-time view of the pipeline. Counters only
// ever increase.
type ProcessingStats struct {
	PendingJobs         int           `json:"pendingJobs"`
	ProcessingJobs      int           `json:"processingJobs"`
	RetryingJobs        int           `json:"retryingJobs"`
	CompletedJobs       uint64        `json:"completedJobs"`
	FailedJobs          uint64        `json:"failedJobs"`
	DequeuedJobs        uint64        `json:"dequeuedJobs"`
	RetriedJobs         uint64        `json:"retriedJobs"`
	TimedOutJobs        uint64        `json:"timedOutJobs"`
	ActiveWorkers       int           `json:"activeWorkers"`
	AvgProcessingTime   time.Duration `json:"avgProcessingTimeNs"`
	ThroughputPerSecond float64       `json:"throughputPerSecond"`
	LastUpdate          time.Time     `json:"lastUpdate"`
}

// statsAggregator collects counters from all workers. Every method holds
// the lock only for the update itself.
type statsAggregator struct {
	mu              sync.Mutex
	stats           ProcessingStats
	totalProcessing time.Duration
	lastCompleted   uint64
	lastTick        time.Time
}

func newStatsAggregator() *statsAggregator {
	now := time.Now()
	return &statsAggregator{
		stats:    ProcessingStats{LastUpdate: now},
		lastTick: now,
	}
}

func (s *statsAggregator) jobDequeued() {
	s.mu.Lock()
	s.stats.DequeuedJobs++
	s.stats.ProcessingJobs++
	s.mu.Unlock()
}

func (s *statsAggregator) jobCompleted(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ProcessingJobs--
	s.stats.CompletedJobs++
	s.totalProcessing += elapsed
	s.stats.AvgProcessingTime = s.totalProcessing / time.Duration(s.stats.CompletedJobs)
}

func (s *statsAggregator) jobRetrying(kind FailureKind) {
	s.mu.Lock()
	s.stats.ProcessingJobs--
	s.stats.RetriedJobs++
	if kind == FailureTimeout {
		s.stats.TimedOutJobs++
	}
	s.mu.Unlock()
}

func (s *statsAggregator) jobFailed(kind FailureKind) {
	s.mu.Lock()
	s.stats.ProcessingJobs--
	s.stats.FailedJobs++
	if kind == FailureTimeout {
		s.stats.TimedOutJobs++
	}
	s.mu.Unlock()
}

// tick recomputes throughput from the completions since the previous tick.
func (s *statsAggregator) tick(now time.Time) ProcessingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elapsed := now.Sub(s.lastTick).Seconds(); elapsed > 0 {
		s.stats.ThroughputPerSecond = float64(s.stats.CompletedJobs-s.lastCompleted) / elapsed
	}
	s.lastCompleted = s.stats.CompletedJobs
	s.lastTick = now
	s.stats.LastUpdate = now
	return s.stats
}

func (s *statsAggregator) snapshot() ProcessingStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// run updates throughput every interval until ctx is cancelled.
func (s *statsAggregator) run(ctx context.Context, interval time.Duration, observer Observer) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			observer.StatsUpdated(s.tick(now))
		}
	}
}
