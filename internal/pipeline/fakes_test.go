package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"media-tagger/internal/thumbnail"
)

type recordKey struct {
	fileID int64
	size   thumbnail.Size
}

// memoryRepository is an in-memory Repository.
type memoryRepository struct {
	mu      sync.Mutex
	records map[recordKey]*thumbnail.Record
	nextID  int64
	upserts int
	// failUpserts makes the next n upserts fail.
	failUpserts int
	findErr     error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: make(map[recordKey]*thumbnail.Record)}
}

func (r *memoryRepository) CreateOrUpdateThumbnail(_ context.Context, fileID int64, thumb *thumbnail.Thumbnail) (*thumbnail.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.upserts++
	if r.failUpserts > 0 {
		r.failUpserts--
		return nil, errors.New("database is locked")
	}

	key := recordKey{fileID, thumb.Size}
	rec, ok := r.records[key]
	if !ok {
		r.nextID++
		rec = &thumbnail.Record{ID: r.nextID, FileID: fileID, Size: thumb.Size, CreatedAt: thumb.GeneratedAt}
		r.records[key] = rec
	}
	rec.Data = thumb.Data
	rec.MimeType = thumb.MimeType
	rec.FileSize = int64(len(thumb.Data))
	rec.UpdatedAt = thumb.GeneratedAt
	return rec, nil
}

func (r *memoryRepository) FindThumbnail(_ context.Context, fileID int64, size thumbnail.Size) (*thumbnail.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[recordKey{fileID, size}]
	if !ok {
		return nil, thumbnail.ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepository) DeleteThumbnailsForFile(_ context.Context, fileID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key := range r.records {
		if key.fileID == fileID {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *memoryRepository) upsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upserts
}

// scriptedGenerator records every call and delegates to fn.
type scriptedGenerator struct {
	mu    sync.Mutex
	calls []generatorCall
	fn    func(ctx context.Context, path string, size thumbnail.Size, attempt int) (*thumbnail.Thumbnail, error)
}

type generatorCall struct {
	path string
	size thumbnail.Size
	at   time.Time
}

func (g *scriptedGenerator) Generate(ctx context.Context, path string, size thumbnail.Size) (*thumbnail.Thumbnail, error) {
	g.mu.Lock()
	attempt := 1
	for _, c := range g.calls {
		if c.path == path && c.size == size {
			attempt++
		}
	}
	g.calls = append(g.calls, generatorCall{path: path, size: size, at: time.Now()})
	g.mu.Unlock()

	if g.fn == nil {
		return okThumbnail(size), nil
	}
	return g.fn(ctx, path, size, attempt)
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *scriptedGenerator) callsSnapshot() []generatorCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generatorCall(nil), g.calls...)
}

func okThumbnail(size thumbnail.Size) *thumbnail.Thumbnail {
	return &thumbnail.Thumbnail{
		Size:        size,
		Data:        []byte("thumb-" + string(size)),
		MimeType:    "image/jpeg",
		GeneratedAt: time.Now(),
	}
}

// observed is a copy of the events a recordingObserver has seen.
type observed struct {
	queued    int
	started   int
	completed int
	retries   []FailureKind
	failures  []FailureKind
	updates   int
}

// recordingObserver keeps every event for assertions.
type recordingObserver struct {
	mu sync.Mutex
	ev observed
}

func (o *recordingObserver) JobQueued(Job, int) {
	o.mu.Lock()
	o.ev.queued++
	o.mu.Unlock()
}

func (o *recordingObserver) JobStarted(Job, int) {
	o.mu.Lock()
	o.ev.started++
	o.mu.Unlock()
}

func (o *recordingObserver) JobCompleted(Job, time.Duration) {
	o.mu.Lock()
	o.ev.completed++
	o.mu.Unlock()
}

func (o *recordingObserver) JobRetrying(_ Job, kind FailureKind, _ time.Duration) {
	o.mu.Lock()
	o.ev.retries = append(o.ev.retries, kind)
	o.mu.Unlock()
}

func (o *recordingObserver) JobFailed(_ Job, kind FailureKind) {
	o.mu.Lock()
	o.ev.failures = append(o.ev.failures, kind)
	o.mu.Unlock()
}

func (o *recordingObserver) StatsUpdated(ProcessingStats) {
	o.mu.Lock()
	o.ev.updates++
	o.mu.Unlock()
}

func (o *recordingObserver) snapshot() observed {
	o.mu.Lock()
	defer o.mu.Unlock()
	ev := o.ev
	ev.retries = append([]FailureKind(nil), o.ev.retries...)
	ev.failures = append([]FailureKind(nil), o.ev.failures...)
	return ev
}

// staticCatalog lists every file as missing, like a catalog whose own
// thumbnail table is never written.
type staticCatalog struct {
	mu    sync.Mutex
	files []thumbnail.SourceFile
	err   error
	gotN  int
	pages int
}

func (c *staticCatalog) FilesMissingThumbnails(_ context.Context, _ []thumbnail.Size, afterID int64, limit int) ([]thumbnail.SourceFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gotN = limit
	c.pages++
	if c.err != nil {
		return nil, c.err
	}
	var page []thumbnail.SourceFile
	for _, f := range c.files {
		if f.ID > afterID && len(page) < limit {
			page = append(page, f)
		}
	}
	return page, nil
}

func (c *staticCatalog) set(files []thumbnail.SourceFile, err error) {
	c.mu.Lock()
	c.files, c.err = files, err
	c.mu.Unlock()
}

type switchGauge struct {
	mu     sync.Mutex
	paused bool
}

func (g *switchGauge) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

func (g *switchGauge) set(paused bool) {
	g.mu.Lock()
	g.paused = paused
	g.mu.Unlock()
}

func testConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        10 * time.Millisecond,
		ProcessingTimeout: 500 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		StatsInterval:     20 * time.Millisecond,
	}
}

func files(n int) []thumbnail.SourceFile {
	out := make([]thumbnail.SourceFile, n)
	for i := range out {
		out[i] = thumbnail.SourceFile{ID: int64(i + 1), Path: fmt.Sprintf("/library/file-%d.jpg", i+1)}
	}
	return out
}

// fileIDFromPath recovers the ID from a path built by files.
func fileIDFromPath(t *testing.T, path string) int64 {
	t.Helper()
	var id int64
	if _, err := fmt.Sscanf(path, "/library/file-%d.jpg", &id); err != nil {
		t.Fatalf("unexpected path %q: %v", path, err)
	}
	return id
}

// startProcessor starts p and shuts it down when the test ends.
func startProcessor(t *testing.T, p *Processor) *Processor {
	t.Helper()
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return p
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

func mustStats(t *testing.T, p *Processor) ProcessingStats {
	t.Helper()
	stats, err := p.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	return stats
}

// waitResolved waits until completed+failed reaches n.
func waitResolved(t *testing.T, p *Processor, n uint64) ProcessingStats {
	t.Helper()
	var stats ProcessingStats
	waitFor(t, 5*time.Second, fmt.Sprintf("%d resolved jobs", n), func() bool {
		stats = mustStats(t, p)
		return stats.CompletedJobs+stats.FailedJobs >= n
	})
	return stats
}
