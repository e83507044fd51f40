package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"media-tagger/internal/handlers"
	"media-tagger/internal/logging"
	"media-tagger/internal/memory"
	"media-tagger/internal/metrics"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/startup"
)

const (
	flagPort     = "port"
	flagBackfill = "backfill"

	shutdownTimeout = 30 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the thumbnail pipeline and its HTTP control surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backfill, err := cmd.Flags().GetBool(flagBackfill)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), v, backfill)
		},
	}
	cmd.Flags().String(flagPort, "", "HTTP listen port ($PORT)")
	cmd.Flags().Bool(flagBackfill, false, "queue thumbnails missing from the catalog at startup")
	if err := v.BindPFlag(startup.KeyPort, cmd.Flags().Lookup(flagPort)); err != nil {
		panic(err)
	}
	return cmd
}

func runServe(ctx context.Context, v *viper.Viper, backfill bool) error {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.close()

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	proc := a.newProcessor(pipeline.WithPressureGauge(monitor))
	proc.Start()
	startup.LogPipelineStarted(proc.Config())

	collector := metrics.NewCollector(a.repo, time.Minute)
	collector.Start()
	defer collector.Stop()

	if backfill {
		go runBackfill(ctx, a, proc)
	}

	h := handlers.New(proc, a.repo,
		handlers.WithStorageStats(a.repo),
		handlers.WithFileCatalog(a.db),
		handlers.WithReadinessCheck(a.probe),
		handlers.WithStreamInterval(a.cfg.Pipeline.StatsInterval),
	)
	router := handlers.NewRouter(h, handlers.RouterConfig{
		MetricsEnabled:  a.cfg.MetricsEnabled,
		LogHealthChecks: a.cfg.LogHealthChecks,
	})
	startup.LogHTTPRoutes(router)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            a.cfg.Port,
		MetricsEnabled:  a.cfg.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		startup.LogShutdownInitiated(sig.String())
	case err := <-serveErr:
		runErr = err
		startup.LogShutdownInitiated("server error")
		logging.Error("HTTP server failed: %v", err)
	case <-ctx.Done():
		startup.LogShutdownInitiated("context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// Shutdown does not wait for hijacked websocket connections.
	startup.LogShutdownStep("Closing stats streams")
	h.Close()
	startup.LogShutdownStepComplete("Stats streams closed")

	startup.LogShutdownStep("Stopping thumbnail pipeline")
	if err := proc.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Pipeline shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Thumbnail pipeline stopped")
	}

	startup.LogShutdownComplete()
	return runErr
}

// runBackfill queues every thumbnail the catalog is missing and records
// the run.
func runBackfill(ctx context.Context, a *app, proc *pipeline.Processor) {
	last, err := a.db.GetLastBackfillRun(ctx)
	if err != nil {
		logging.Warn("Reading last backfill run: %v", err)
	} else if !last.IsZero() {
		logging.Info("Last backfill ran at %s", last.Format(time.RFC3339))
	}

	if removed, err := a.deleteOrphans(ctx); err != nil {
		logging.Warn("Removing orphaned thumbnails: %v", err)
	} else if removed > 0 {
		logging.Info("Removed %d orphaned thumbnail(s)", removed)
	}

	n, err := proc.QueueMissing(ctx)
	if err != nil {
		logging.Error("Backfill failed: %v", err)
		return
	}
	logging.Info("Backfill queued %d thumbnail job(s)", n)

	if err := a.db.SetLastBackfillRun(ctx, time.Now()); err != nil {
		logging.Warn("Recording backfill run: %v", err)
	}
}
