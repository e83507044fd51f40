package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// retryScheduler re-enqueues failed jobs after their backoff without
// blocking the worker that failed them. Pending timers are tracked so
// shutdown can cancel them.
type retryScheduler struct {
	mu      sync.Mutex
	timers  map[uuid.UUID]*time.Timer
	stopped bool
	enqueue func(*Job)
}

func newRetryScheduler(enqueue func(*Job)) *retryScheduler {
	return &retryScheduler{
		timers:  make(map[uuid.UUID]*time.Timer),
		enqueue: enqueue,
	}
}

// schedule re-enqueues job after delay. It reports false if the scheduler
// has been stopped and the job was dropped.
func (r *retryScheduler) schedule(job *Job, delay time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}

	id := job.ID
	r.timers[id] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		delete(r.timers, id)
		r.mu.Unlock()

		r.enqueue(job)
	})
	return true
}

// pending returns the number of jobs waiting on a backoff timer.
func (r *retryScheduler) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// stop cancels every pending timer and returns how many jobs were dropped.
func (r *retryScheduler) stop() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	dropped := 0
	for id, t := range r.timers {
		if t.Stop() {
			dropped++
		}
		delete(r.timers, id)
	}
	return dropped
}
