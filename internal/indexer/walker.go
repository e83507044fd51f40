package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-tagger/internal/logging"
	"media-tagger/internal/thumbnail"
	"media-tagger/internal/workers"
)

// Registrar adds a file to the catalog.
type Registrar interface {
	UpsertFile(ctx context.Context, path string) (thumbnail.SourceFile, error)
}

// Config configures the walker
type Config struct {
	// Workers is the number of registration workers (0 = auto, I/O bound)
	Workers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
}

// DefaultConfig returns defaults suitable for local and network filesystems
func DefaultConfig() Config {
	return Config{
		Workers:       workers.ForIO(8),
		ChannelBuffer: 256,
		SkipHidden:    true,
	}
}

// Result summarises a walk.
type Result struct {
	Files    []thumbnail.SourceFile
	Skipped  int64
	Errors   int64
	Duration time.Duration
}

// Walker walks directory trees and registers the files it finds.
type Walker struct {
	config Config
	reg    Registrar
	log    logging.Logger

	registered atomic.Int64
	skipped    atomic.Int64
	errorCount atomic.Int64
}

// NewWalker creates a walker that registers files through reg.
func NewWalker(reg Registrar, config Config) *Walker {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.ChannelBuffer < 0 {
		config.ChannelBuffer = 0
	}
	return &Walker{
		config: config,
		reg:    reg,
		log:    logging.For("indexer"),
	}
}

// Walk registers every regular file under roots. A root may also be a
// single file. Per-file errors are logged and counted, not returned; a
// missing root or a cancelled ctx is an error. Files come back sorted by
// path.
func (w *Walker) Walk(ctx context.Context, roots ...string) (Result, error) {
	start := time.Now()
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			return Result{}, fmt.Errorf("cannot walk %s: %w", root, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string, w.config.ChannelBuffer)
	results := make(chan thumbnail.SourceFile, w.config.ChannelBuffer)

	var wg sync.WaitGroup
	for i := 0; i < w.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.worker(ctx, jobs, results)
		}()
	}

	var files []thumbnail.SourceFile
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for f := range results {
			files = append(files, f)
		}
	}()

	var walkErr error
	for _, root := range roots {
		if walkErr = w.enqueue(ctx, root, jobs); walkErr != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	<-collected

	if walkErr == nil {
		walkErr = ctx.Err()
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	res := Result{
		Files:    files,
		Skipped:  w.skipped.Load(),
		Errors:   w.errorCount.Load(),
		Duration: time.Since(start),
	}
	w.log.Info("Walk complete: %d files registered, %d skipped, %d errors in %v",
		len(files), res.Skipped, res.Errors, res.Duration)
	return res, walkErr
}

func (w *Walker) enqueue(ctx context.Context, root string, jobs chan<- string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("Error accessing path %s: %v", path, err)
			w.errorCount.Add(1)
			return nil
		}

		if w.config.SkipHidden && path != root && strings.HasPrefix(d.Name(), ".") {
			w.skipped.Add(1)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			w.skipped.Add(1)
			return nil
		}

		select {
		case jobs <- path:
			return nil
		case <-ctx.Done():
			return fs.SkipAll
		}
	})
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (w *Walker) worker(ctx context.Context, jobs <-chan string, results chan<- thumbnail.SourceFile) {
	for path := range jobs {
		if ctx.Err() != nil {
			continue
		}
		f, err := w.reg.UpsertFile(ctx, path)
		if err != nil {
			w.log.Warn("Failed to register %s: %v", path, err)
			w.errorCount.Add(1)
			continue
		}
		w.registered.Add(1)
		results <- f
	}
}

// Registered returns how many files have been registered so far.
func (w *Walker) Registered() int64 {
	return w.registered.Load()
}
