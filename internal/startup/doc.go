// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read through viper from environment variables, optionally
// seeded from a .env file by [LoadEnvFile], and may be overridden by command
// line flags bound to the same keys. [LoadConfig] validates the result and
// logs it. The following keys are supported:
//
//   - DATABASE_DIR: directory for the SQLite database or Pebble store (default: ./data)
//   - STORE_BACKEND: thumbnail repository, sqlite or pebble (default: sqlite)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: serve /metrics and record HTTP metrics (default: true)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_HEALTH_CHECKS: log probe requests (default: false)
//   - VIPS_ENABLED: use libvips when available (default: true)
//   - THUMBNAIL_WORKERS: worker count, 0 for one per CPU
//   - THUMBNAIL_MAX_RETRIES: retries after the first attempt (default: 3)
//   - THUMBNAIL_RETRY_DELAY: base linear backoff (default: 5s)
//   - THUMBNAIL_TIMEOUT: per-attempt timeout (default: 30s)
//   - THUMBNAIL_POLL_INTERVAL: idle worker poll interval (default: 100ms)
//   - THUMBNAIL_STATS_INTERVAL: throughput update interval (default: 5s)
//   - THUMBNAIL_SKIP_EXISTING: skip pairs that already have a thumbnail (default: true)
//   - THUMBNAIL_SIZES: sizes generated by backfill (default: small,medium,large)
//   - THUMBNAIL_BACKFILL_LIMIT: files fetched per backfill (default: 1000)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// # Logging
//
// The Log* helpers print the banner-style sections that make up the
// startup and shutdown log.
package startup
