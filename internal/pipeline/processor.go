package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"media-tagger/internal/logging"
	"media-tagger/internal/thumbnail"
)

// Processor owns the job queue, the worker pool and the statistics
// updater. All requests are handled in order by a single message loop.
type Processor struct {
	cfg      Config
	log      logging.Logger
	repo     Repository
	gen      Generator
	catalog  Catalog
	observer Observer
	pressure PressureGauge

	queue   *Queue
	stats   *statsAggregator
	retries *retryScheduler

	requests chan request
	loopDone chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	startOnce sync.Once
	started   atomic.Bool
}

// Option configures optional Processor collaborators.
type Option func(*Processor)

// WithObserver registers an observer for pipeline events.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithCatalog enables QueueMissing.
func WithCatalog(c Catalog) Option {
	return func(p *Processor) { p.catalog = c }
}

// WithPressureGauge pauses dequeuing while the gauge reports pressure.
func WithPressureGauge(g PressureGauge) Option {
	return func(p *Processor) { p.pressure = g }
}

// New creates a processor. Call Start to launch its goroutines.
func New(repo Repository, gen Generator, cfg Config, opts ...Option) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		cfg:      cfg.withDefaults(),
		log:      logging.For("thumbnails"),
		repo:     repo,
		gen:      gen,
		observer: nopObserver{},
		queue:    NewQueue(),
		stats:    newStatsAggregator(),
		requests: make(chan request),
		loopDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.retries = newRetryScheduler(p.enqueue)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// Start launches the workers, the statistics updater and the message loop.
// Calling it more than once has no effect.
func (p *Processor) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.Workers; i++ {
			w := &worker{
				id:       i,
				log:      logging.For(fmt.Sprintf("worker-%d", i)),
				cfg:      p.cfg,
				queue:    p.queue,
				stats:    p.stats,
				retries:  p.retries,
				repo:     p.repo,
				gen:      p.gen,
				observer: p.observer,
				pressure: p.pressure,
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				w.run(p.ctx)
			}()
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.stats.run(p.ctx, p.cfg.StatsInterval, p.observer)
		}()

		go p.loop()
		p.started.Store(true)

		p.log.Info("Started %d thumbnail workers (max retries: %d, retry delay: %v, timeout: %v)",
			p.cfg.Workers, p.cfg.MaxRetries, p.cfg.RetryDelay, p.cfg.ProcessingTimeout)
	})
}

// request is a message for the processor loop. handle runs on the loop
// goroutine and reports whether the loop should exit.
type request interface {
	handle(p *Processor) (stop bool)
}

type queueFilesRequest struct {
	ctx   context.Context
	files []thumbnail.SourceFile
	sizes []thumbnail.Size
	reply chan countReply
}

type queueMissingRequest struct {
	ctx   context.Context
	reply chan countReply
}

type countReply struct {
	n   int
	err error
}

type statsRequest struct {
	reply chan ProcessingStats
}

type pendingRequest struct {
	reply chan int
}

type shutdownRequest struct {
	reply chan struct{}
}

func (r queueFilesRequest) handle(p *Processor) bool {
	n, err := p.queueFiles(r.ctx, r.files, r.sizes)
	r.reply <- countReply{n: n, err: err}
	return false
}

func (r queueMissingRequest) handle(p *Processor) bool {
	n, err := p.queueMissing(r.ctx)
	r.reply <- countReply{n: n, err: err}
	return false
}

func (r statsRequest) handle(p *Processor) bool {
	r.reply <- p.currentStats()
	return false
}

func (r pendingRequest) handle(p *Processor) bool {
	r.reply <- p.queue.Len()
	return false
}

func (r shutdownRequest) handle(p *Processor) bool {
	p.log.Info("Shutting down thumbnail processor...")
	p.cancel()
	p.wg.Wait()
	if dropped := p.retries.stop(); dropped > 0 {
		p.log.Info("Dropped %d pending retries", dropped)
	}
	stats := p.stats.snapshot()
	p.log.Info("Thumbnail processor stopped (completed: %d, failed: %d, still queued: %d)",
		stats.CompletedJobs, stats.FailedJobs, p.queue.Len())
	close(r.reply)
	return true
}

func (p *Processor) loop() {
	defer close(p.loopDone)
	for req := range p.requests {
		if req.handle(p) {
			return
		}
	}
}

// send delivers req to the loop, failing if the caller gives up or the
// processor is gone.
func (p *Processor) send(ctx context.Context, req request) error {
	if !p.started.Load() {
		return ErrNotStarted
	}
	select {
	case p.requests <- req:
		return nil
	case <-p.loopDone:
		return ErrProcessorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func awaitReply[T any](ctx context.Context, reply <-chan T) (T, error) {
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// QueueFiles queues one job per (file, size) pair and returns how many
// were queued. Pairs that already have a thumbnail are skipped when
// SkipExisting is set. Invalid input is rejected before anything is queued.
func (p *Processor) QueueFiles(ctx context.Context, files []thumbnail.SourceFile, sizes []thumbnail.Size) (int, error) {
	reply := make(chan countReply, 1)
	if err := p.send(ctx, queueFilesRequest{ctx: ctx, files: files, sizes: sizes, reply: reply}); err != nil {
		return 0, err
	}
	res, err := awaitReply(ctx, reply)
	if err != nil {
		return 0, err
	}
	return res.n, res.err
}

// QueueSingleFile queues a single (file, size) job.
func (p *Processor) QueueSingleFile(ctx context.Context, fileID int64, path string, size thumbnail.Size) error {
	_, err := p.QueueFiles(ctx, []thumbnail.SourceFile{{ID: fileID, Path: path}}, []thumbnail.Size{size})
	return err
}

// QueueMissing asks the catalog for files lacking any configured size and
// queues the sizes the repository does not hold. It checks the repository
// whether or not SkipExisting is set.
func (p *Processor) QueueMissing(ctx context.Context) (int, error) {
	reply := make(chan countReply, 1)
	if err := p.send(ctx, queueMissingRequest{ctx: ctx, reply: reply}); err != nil {
		return 0, err
	}
	res, err := awaitReply(ctx, reply)
	if err != nil {
		return 0, err
	}
	return res.n, res.err
}

// Stats returns a snapshot of the processing statistics.
func (p *Processor) Stats(ctx context.Context) (ProcessingStats, error) {
	reply := make(chan ProcessingStats, 1)
	if err := p.send(ctx, statsRequest{reply: reply}); err != nil {
		return ProcessingStats{}, err
	}
	return awaitReply(ctx, reply)
}

// PendingCount returns the number of jobs waiting in the queue.
func (p *Processor) PendingCount(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := p.send(ctx, pendingRequest{reply: reply}); err != nil {
		return 0, err
	}
	return awaitReply(ctx, reply)
}

// Shutdown stops the workers and the statistics updater, waits for them to
// exit and cancels pending retries. In-flight jobs finish first. Queued jobs
// are abandoned. Calling Shutdown again returns nil.
//
// A worker waits on a generator for at most ProcessingTimeout. A generator
// that ignores its context keeps running in its own goroutine after the
// attempt times out, and can outlive Shutdown.
func (p *Processor) Shutdown(ctx context.Context) error {
	reply := make(chan struct{})
	if err := p.send(ctx, shutdownRequest{reply: reply}); err != nil {
		if errors.Is(err, ErrProcessorStopped) {
			return nil
		}
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) enqueue(job *Job) {
	p.queue.Enqueue(job)
	p.observer.JobQueued(*job, p.queue.Len())
}

func validateRequest(files []thumbnail.SourceFile, sizes []thumbnail.Size) error {
	if len(files) == 0 {
		return ErrEmptyFileList
	}
	if len(sizes) == 0 {
		return ErrNoSizes
	}
	for _, s := range sizes {
		if !s.Valid() {
			return fmt.Errorf("%w: %q", thumbnail.ErrInvalidSize, s)
		}
	}
	for _, f := range files {
		if f.ID <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidFileID, f.ID)
		}
		if f.Path == "" {
			return fmt.Errorf("%w for file %d", ErrEmptyPath, f.ID)
		}
	}
	return nil
}

func (p *Processor) queueFiles(ctx context.Context, files []thumbnail.SourceFile, sizes []thumbnail.Size) (int, error) {
	if err := validateRequest(files, sizes); err != nil {
		return 0, err
	}

	queued, skipped := 0, 0
	for _, f := range files {
		for _, size := range sizes {
			if p.cfg.SkipExisting && p.hasThumbnail(ctx, f.ID, size) {
				skipped++
				continue
			}
			p.enqueue(NewJob(f.ID, f.Path, size))
			queued++
		}
	}

	if skipped > 0 {
		p.log.Info("Queued %d thumbnail jobs (%d already present)", queued, skipped)
	} else {
		p.log.Info("Queued %d thumbnail jobs", queued)
	}
	return queued, nil
}

// hasThumbnail reports whether a record exists. Lookup failures count as
// missing so the job is queued anyway.
func (p *Processor) hasThumbnail(ctx context.Context, fileID int64, size thumbnail.Size) bool {
	_, err := p.repo.FindThumbnail(ctx, fileID, size)
	if err == nil {
		return true
	}
	if !errors.Is(err, thumbnail.ErrNotFound) {
		p.log.Warn("Could not check existing %s thumbnail for file %d: %v", size, fileID, err)
	}
	return false
}

// queueMissing pages through the catalog by file ID and queues every
// configured size the repository does not hold. The catalog may answer from
// a different store than the repository, so each candidate is checked
// against the repository before queueing. At most MissingBatchLimit files
// are queued per call.
func (p *Processor) queueMissing(ctx context.Context) (int, error) {
	if p.catalog == nil {
		return 0, ErrNoCatalog
	}

	sizes := p.cfg.MissingSizes
	limit := p.cfg.MissingBatchLimit
	var after int64
	filesQueued, queued, present := 0, 0, 0

	for filesQueued < limit {
		page, err := p.catalog.FilesMissingThumbnails(ctx, sizes, after, limit)
		if err != nil {
			return queued, fmt.Errorf("list files missing thumbnails: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, f := range page {
			if filesQueued >= limit {
				break
			}
			if err := validateRequest([]thumbnail.SourceFile{f}, sizes); err != nil {
				p.log.Warn("Skipping catalog entry: %v", err)
				continue
			}
			n := 0
			for _, size := range sizes {
				if p.hasThumbnail(ctx, f.ID, size) {
					present++
					continue
				}
				p.enqueue(NewJob(f.ID, f.Path, size))
				n++
			}
			if n > 0 {
				filesQueued++
				queued += n
			}
		}

		last := page[len(page)-1].ID
		if len(page) < limit || last <= after {
			break
		}
		after = last
	}

	if queued == 0 {
		p.log.Debug("No files missing thumbnails (%d already present)", present)
		return 0, nil
	}
	p.log.Info("Queued %d missing thumbnail jobs for %d files (%d already present)", queued, filesQueued, present)
	return queued, nil
}

func (p *Processor) currentStats() ProcessingStats {
	stats := p.stats.snapshot()
	stats.PendingJobs = p.queue.Len()
	stats.RetryingJobs = p.retries.pending()
	stats.ActiveWorkers = p.cfg.Workers
	return stats
}
