package pipeline

import "time"

// Observer receives pipeline events, typically to export metrics. Jobs are
// passed by value. Implementations must be safe for concurrent use and must
// not block.
type Observer interface {
	JobQueued(job Job, depth int)
	JobStarted(job Job, depth int)
	JobCompleted(job Job, elapsed time.Duration)
	JobRetrying(job Job, kind FailureKind, delay time.Duration)
	JobFailed(job Job, kind FailureKind)
	StatsUpdated(stats ProcessingStats)
}

type nopObserver struct{}

func (nopObserver) JobQueued(Job, int) {}
func (nopObserver) JobStarted(Job, int) {}
func (nopObserver) JobCompleted(Job, time.Duration) {}
func (nopObserver) JobRetrying(Job, FailureKind, time.Duration) {}
func (nopObserver) JobFailed(Job, FailureKind) {}
func (nopObserver) StatsUpdated(ProcessingStats) {}
