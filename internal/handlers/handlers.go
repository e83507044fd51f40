package handlers

import (
	"context"
	"sync"
	"time"

	"media-tagger/internal/logging"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/thumbnail"
)

var log = logging.For("handlers")

// Pipeline is the part of *pipeline.Processor the handlers drive.
type Pipeline interface {
	QueueFiles(ctx context.Context, files []thumbnail.SourceFile, sizes []thumbnail.Size) (int, error)
	QueueSingleFile(ctx context.Context, fileID int64, path string, size thumbnail.Size) error
	QueueMissing(ctx context.Context) (int, error)
	Stats(ctx context.Context) (pipeline.ProcessingStats, error)
	PendingCount(ctx context.Context) (int, error)
}

// StorageStatter reports repository storage statistics.
type StorageStatter interface {
	StorageStats(ctx context.Context) (thumbnail.StorageStats, error)
}

// FileCatalog removes files from the catalog. It returns
// database.ErrFileNotFound for unknown IDs.
type FileCatalog interface {
	DeleteFile(ctx context.Context, id int64) error
}

// Handlers holds the dependencies of every route.
type Handlers struct {
	pipeline Pipeline
	repo     pipeline.Repository
	storage  StorageStatter
	files    FileCatalog
	ready    func(ctx context.Context) error

	streamInterval time.Duration
	startedAt      time.Time

	// closed when Close is called; ends all stats streams
	done    chan struct{}
	mu      sync.Mutex // guards closed and streams.Add
	closed  bool
	streams sync.WaitGroup
}

// Option configures optional Handlers collaborators.
type Option func(*Handlers)

// WithStorageStats enables GET /api/thumbnails/storage.
func WithStorageStats(s StorageStatter) Option {
	return func(h *Handlers) { h.storage = s }
}

// WithFileCatalog enables DELETE /api/files/{fileId}.
func WithFileCatalog(c FileCatalog) Option {
	return func(h *Handlers) { h.files = c }
}

// WithReadinessCheck sets the check behind /readyz and /healthz, typically
// a database ping.
func WithReadinessCheck(check func(ctx context.Context) error) Option {
	return func(h *Handlers) { h.ready = check }
}

// WithStreamInterval sets how often /ws/stats pushes a snapshot.
func WithStreamInterval(d time.Duration) Option {
	return func(h *Handlers) {
		if d > 0 {
			h.streamInterval = d
		}
	}
}

// New creates the handlers. repo serves stored thumbnails and deletions.
func New(p Pipeline, repo pipeline.Repository, opts ...Option) *Handlers {
	h := &Handlers{
		pipeline:       p,
		repo:           repo,
		streamInterval: 5 * time.Second,
		startedAt:      time.Now(),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Close ends all open statistics streams and waits for them to finish.
// Streams requested afterwards are refused with 503.
func (h *Handlers) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	h.mu.Unlock()
	h.streams.Wait()
}

// trackStream registers a new stream unless Close has been called.
func (h *Handlers) trackStream() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.streams.Add(1)
	return true
}
