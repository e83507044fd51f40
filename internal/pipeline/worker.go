package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-tagger/internal/logging"
	"media-tagger/internal/thumbnail"
)

// worker pulls jobs from the shared queue until the shutdown context is
// cancelled. Failures never leave the worker; they feed the retry policy.
type worker struct {
	id       int
	log      logging.Logger
	cfg      Config
	queue    *Queue
	stats    *statsAggregator
	retries  *retryScheduler
	repo     Repository
	gen      Generator
	observer Observer
	pressure PressureGauge
}

func (w *worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Debug("Worker started")
	defer w.log.Debug("Worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Shutdown wins when it became ready alongside the tick.
		if ctx.Err() != nil {
			return
		}
		if w.pressure != nil && w.pressure.IsPaused() {
			continue
		}

		job, ok := w.queue.Dequeue()
		if !ok {
			continue
		}
		w.process(job)
	}
}

func (w *worker) process(job *Job) {
	job.Status = StatusProcessing
	w.stats.jobDequeued()
	w.observer.JobStarted(*job, w.queue.Len())

	start := time.Now()
	kind, err := w.attempt(job)
	if err == nil {
		elapsed := time.Since(start)
		job.Status = StatusCompleted
		w.stats.jobCompleted(elapsed)
		w.observer.JobCompleted(*job, elapsed)
		w.log.Debug("Generated %s thumbnail for file %d in %v", job.Size, job.FileID, elapsed)
		return
	}

	w.fail(job, kind, err)
}

// attempt runs one generate-and-persist cycle.
func (w *worker) attempt(job *Job) (FailureKind, error) {
	thumb, err := w.generate(job)
	if err != nil {
		if errors.Is(err, ErrGenerationTimeout) {
			return FailureTimeout, err
		}
		return FailureGeneration, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ProcessingTimeout)
	defer cancel()
	if _, err := w.repo.CreateOrUpdateThumbnail(ctx, job.FileID, thumb); err != nil {
		return FailurePersistence, err
	}
	return 0, nil
}

type generateResult struct {
	thumb *thumbnail.Thumbnail
	err   error
}

// generate calls the generator under ProcessingTimeout. The context is not
// derived from shutdown: an in-flight attempt runs until it finishes or
// times out.
func (w *worker) generate(job *Job) (*thumbnail.Thumbnail, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ProcessingTimeout)
	defer cancel()

	done := make(chan generateResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generateResult{err: fmt.Errorf("%w: %v", ErrGeneratorPanic, r)}
			}
		}()
		thumb, err := w.gen.Generate(ctx, job.FilePath, job.Size)
		done <- generateResult{thumb: thumb, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %v: %v", ErrGenerationTimeout, w.cfg.ProcessingTimeout, res.err)
			}
			return nil, res.err
		}
		if res.thumb == nil {
			return nil, errors.New("generator returned no thumbnail")
		}
		return res.thumb, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w after %v", ErrGenerationTimeout, w.cfg.ProcessingTimeout)
	}
}

// fail applies the retry policy to a failed attempt. RetryCount never
// exceeds MaxRetries: the failure that would push it past is permanent.
func (w *worker) fail(job *Job, kind FailureKind, err error) {
	switch kind {
	case FailureTimeout:
		w.log.Error("Job %s for file %d (%s) timed out: %v", job.ID, job.FileID, job.Size, err)
	case FailurePersistence:
		w.log.Error("Failed to save %s thumbnail for file %d: %v", job.Size, job.FileID, err)
	default:
		w.log.Warn("Failed to generate %s thumbnail for %s: %v", job.Size, job.FilePath, err)
	}

	if job.RetryCount >= w.cfg.MaxRetries {
		job.Status = StatusFailed
		w.stats.jobFailed(kind)
		w.observer.JobFailed(*job, kind)
		w.log.Warn("Job %s for file %d (%s) failed permanently after %d attempts",
			job.ID, job.FileID, job.Size, job.RetryCount+1)
		return
	}

	job.RetryCount++
	job.Status = StatusPending
	delay := w.cfg.RetryDelay * time.Duration(job.RetryCount)
	w.stats.jobRetrying(kind)
	w.observer.JobRetrying(*job, kind, delay)
	w.log.Info("Retrying job %s for file %d in %v (attempt %d/%d)",
		job.ID, job.FileID, delay, job.RetryCount+1, w.cfg.MaxRetries+1)

	// The job belongs to the timer from here on.
	if !w.retries.schedule(job, delay) {
		w.log.Debug("Dropped retry of file %d, processor is shutting down", job.FileID)
	}
}
