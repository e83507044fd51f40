package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"media-tagger/internal/database"
	"media-tagger/internal/filesystem"
	"media-tagger/internal/kvstore"
	"media-tagger/internal/logging"
	"media-tagger/internal/memory"
	"media-tagger/internal/metrics"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/startup"
	"media-tagger/internal/thumbnail"
)

// storageRepository is a thumbnail repository that can also summarise
// what it stores. Both backends satisfy it.
type storageRepository interface {
	pipeline.Repository
	metrics.StatsProvider
}

// app holds the opened stores. The SQLite database is always the file
// catalog; thumbnails go to it or to the Pebble store.
type app struct {
	cfg   *startup.Config
	db    *database.Database
	kv    *kvstore.Store
	repo  storageRepository
	vips  bool
	probe func(ctx context.Context) error
}

func openApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := startup.LoadConfig(v)
	if err != nil {
		return nil, err
	}

	memory.ConfigureFromEnv()
	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	start := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{cfg: cfg, db: db, repo: db, probe: db.Ping}

	if cfg.StoreBackend == startup.BackendPebble {
		kv, err := kvstore.Open(cfg.PebbleDir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.kv = kv
		a.repo = kv
	}
	startup.LogStoreInit(cfg.StoreBackend, time.Since(start))

	if cfg.VipsEnabled {
		thumbnail.InitVips()
		a.vips = thumbnail.VipsAvailable()
	}
	startup.LogGeneratorInit(a.vips)

	return a, nil
}

func (a *app) newProcessor(opts ...pipeline.Option) *pipeline.Processor {
	gen := thumbnail.NewImageGenerator(
		thumbnail.WithVips(a.vips),
		thumbnail.WithRetryConfig(a.cfg.SourceRetry),
	)
	opts = append([]pipeline.Option{
		pipeline.WithObserver(metrics.NewPipelineObserver()),
		pipeline.WithCatalog(a.db),
	}, opts...)
	return pipeline.New(a.repo, gen, a.cfg.Pipeline, opts...)
}

// deleteOrphans removes thumbnails whose file left the catalog from
// whichever store holds them.
func (a *app) deleteOrphans(ctx context.Context) (int64, error) {
	if a.kv != nil {
		return a.kv.DeleteOrphanedThumbnails(ctx, a.db)
	}
	return a.db.DeleteOrphanedThumbnails(ctx)
}

func (a *app) close() error {
	if a.vips {
		thumbnail.ShutdownVips()
	}
	var errs []error
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	errs = append(errs, a.db.Close())
	if err := errors.Join(errs...); err != nil {
		logging.Error("Closing stores: %v", err)
		return err
	}
	return nil
}
