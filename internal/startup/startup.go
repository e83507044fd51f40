package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"media-tagger/internal/filesystem"
	"media-tagger/internal/logging"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/thumbnail"
	"media-tagger/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
)

// Configuration keys. Each is read from the environment variable of the
// same name and may be bound to a command line flag.
const (
	KeyDatabaseDir     = "DATABASE_DIR"
	KeyStoreBackend    = "STORE_BACKEND"
	KeyPort            = "PORT"
	KeyMetricsEnabled  = "METRICS_ENABLED"
	KeyLogHealthChecks = "LOG_HEALTH_CHECKS"
	KeyLogLevel        = "LOG_LEVEL"
	KeyVipsEnabled     = "VIPS_ENABLED"
	KeyWorkers         = workers.EnvOverride
	KeyMaxRetries      = "THUMBNAIL_MAX_RETRIES"
	KeyRetryDelay      = "THUMBNAIL_RETRY_DELAY"
	KeyTimeout         = "THUMBNAIL_TIMEOUT"
	KeyPollInterval    = "THUMBNAIL_POLL_INTERVAL"
	KeyStatsInterval   = "THUMBNAIL_STATS_INTERVAL"
	KeySkipExisting    = "THUMBNAIL_SKIP_EXISTING"
	KeyMissingSizes    = "THUMBNAIL_SIZES"
	KeyBackfillLimit   = "THUMBNAIL_BACKFILL_LIMIT"
	KeySourceRetries   = "SOURCE_RETRIES"
	KeySourceBackoff   = "SOURCE_RETRY_BACKOFF"
)

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DatabaseDir     string
	StoreBackend    string
	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool
	VipsEnabled     bool

	Pipeline pipeline.Config
	// SourceRetry is the stale-handle retry policy for reading source files.
	SourceRetry filesystem.RetryConfig

	// Derived paths
	DatabasePath string
	PebbleDir    string
}

// NewViper returns a viper instance that reads configuration from the
// environment with every default registered.
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	defaults := pipeline.DefaultConfig()
	retry := filesystem.DefaultRetryConfig()
	v.SetDefault(KeyDatabaseDir, "./data")
	v.SetDefault(KeyStoreBackend, BackendSQLite)
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyLogHealthChecks, false)
	v.SetDefault(KeyVipsEnabled, true)
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyMaxRetries, defaults.MaxRetries)
	v.SetDefault(KeyRetryDelay, defaults.RetryDelay.String())
	v.SetDefault(KeyTimeout, defaults.ProcessingTimeout.String())
	v.SetDefault(KeyPollInterval, defaults.PollInterval.String())
	v.SetDefault(KeyStatsInterval, defaults.StatsInterval.String())
	v.SetDefault(KeySkipExisting, defaults.SkipExisting)
	v.SetDefault(KeyMissingSizes, "small,medium,large")
	v.SetDefault(KeyBackfillLimit, defaults.MissingBatchLimit)
	v.SetDefault(KeySourceRetries, retry.MaxRetries)
	v.SetDefault(KeySourceBackoff, retry.InitialBackoff.String())
	return v
}

// LoadEnvFile loads variables from path into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Info("Loaded environment from %s", path)
	return nil
}

// LoadConfig builds and validates the configuration from v, then logs it
// banner style. Invalid durations and numbers fall back to defaults with a
// warning; an invalid backend or size list is an error.
func LoadConfig(v *viper.Viper) (*Config, error) {
	printBanner()
	logSystemInfo()

	if level := v.GetString(KeyLogLevel); level != "" {
		logging.SetLevel(logging.ParseLevel(level))
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	defaults := pipeline.DefaultConfig()
	retryDefaults := filesystem.DefaultRetryConfig()

	backend := strings.ToLower(strings.TrimSpace(v.GetString(KeyStoreBackend)))
	if backend != BackendSQLite && backend != BackendPebble {
		return nil, fmt.Errorf("invalid %s %q (want %s or %s)", KeyStoreBackend, backend, BackendSQLite, BackendPebble)
	}

	sizes, err := thumbnail.ParseSizes(v.GetString(KeyMissingSizes))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyMissingSizes, err)
	}

	cfg := &Config{
		DatabaseDir:     v.GetString(KeyDatabaseDir),
		StoreBackend:    backend,
		Port:            v.GetString(KeyPort),
		MetricsEnabled:  getBool(v, KeyMetricsEnabled, true),
		LogHealthChecks: getBool(v, KeyLogHealthChecks, false),
		VipsEnabled:     getBool(v, KeyVipsEnabled, true),
		Pipeline: pipeline.Config{
			Workers:           workers.Resolve(getInt(v, KeyWorkers, 0)),
			MaxRetries:        getInt(v, KeyMaxRetries, defaults.MaxRetries),
			RetryDelay:        getDuration(v, KeyRetryDelay, defaults.RetryDelay),
			ProcessingTimeout: getDuration(v, KeyTimeout, defaults.ProcessingTimeout),
			PollInterval:      getDuration(v, KeyPollInterval, defaults.PollInterval),
			StatsInterval:     getDuration(v, KeyStatsInterval, defaults.StatsInterval),
			SkipExisting:      getBool(v, KeySkipExisting, defaults.SkipExisting),
			MissingSizes:      sizes,
			MissingBatchLimit: getInt(v, KeyBackfillLimit, defaults.MissingBatchLimit),
		},
		SourceRetry: filesystem.RetryConfig{
			MaxRetries:     getInt(v, KeySourceRetries, retryDefaults.MaxRetries),
			InitialBackoff: getDuration(v, KeySourceBackoff, retryDefaults.InitialBackoff),
			MaxBackoff:     retryDefaults.MaxBackoff,
		},
	}
	if cfg.SourceRetry.MaxRetries < 0 {
		logging.Warn("  Negative %s, using 0", KeySourceRetries)
		cfg.SourceRetry.MaxRetries = 0
	}

	if cfg.Pipeline.MaxRetries < 0 {
		logging.Warn("  Negative %s, using 0", KeyMaxRetries)
		cfg.Pipeline.MaxRetries = 0
	}

	logging.Info("  %-26s %s", KeyDatabaseDir+":", cfg.DatabaseDir)
	logging.Info("  %-26s %s", KeyStoreBackend+":", cfg.StoreBackend)
	logging.Info("  %-26s %s", KeyPort+":", cfg.Port)
	logging.Info("  %-26s %v", KeyMetricsEnabled+":", cfg.MetricsEnabled)
	logging.Info("  %-26s %v", KeyVipsEnabled+":", cfg.VipsEnabled)
	logging.Info("  %-26s %d", KeyWorkers+":", cfg.Pipeline.Workers)
	logging.Info("  %-26s %d", KeyMaxRetries+":", cfg.Pipeline.MaxRetries)
	logging.Info("  %-26s %v", KeyRetryDelay+":", cfg.Pipeline.RetryDelay)
	logging.Info("  %-26s %v", KeyTimeout+":", cfg.Pipeline.ProcessingTimeout)
	logging.Info("  %-26s %v", KeyPollInterval+":", cfg.Pipeline.PollInterval)
	logging.Info("  %-26s %v", KeyStatsInterval+":", cfg.Pipeline.StatsInterval)
	logging.Info("  %-26s %v", KeySkipExisting+":", cfg.Pipeline.SkipExisting)
	logging.Info("  %-26s %v", KeyMissingSizes+":", cfg.Pipeline.MissingSizes)
	logging.Info("  %-26s %d (backoff %v)", KeySourceRetries+":", cfg.SourceRetry.MaxRetries, cfg.SourceRetry.InitialBackoff)
	logging.Info("  %-26s %s", KeyLogLevel+":", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)

	if err := ensureDirectory(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "media-tagger.db")
	cfg.PebbleDir = filepath.Join(cfg.DatabaseDir, "kv")

	return cfg, nil
}

// LogStoreInit logs repository initialization
func LogStoreInit(backend string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %s store initialized in %v", backend, duration)
}

// LogGeneratorInit logs which rendering paths the thumbnail generator has
func LogGeneratorInit(vips bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL GENERATOR")
	logging.Info("------------------------------------------------------------")
	if vips {
		logging.Info("  [OK] libvips fast path enabled")
	} else {
		logging.Info("  libvips disabled, using pure Go decoders")
	}
	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video thumbnails will use placeholders")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
}

// LogPipelineStarted logs the running worker pool
func LogPipelineStarted(cfg pipeline.Config) {
	logging.Info("  [OK] Thumbnail pipeline started with %d workers", cfg.Workers)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// subrouter prefixes have no methods
			return nil
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	logging.Debug("  Registered routes (%d total):", len(routes))
	for _, route := range routes {
		logging.Debug("    %-6s %s", route.Method, route.Path)
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  API:             http://localhost:%s/api/thumbnails", config.Port)
	logging.Info("  Live stats:      ws://localhost:%s/ws/stats", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	logging.Info("------------------------------------------------------------")
	logging.Info("  media-tagger thumbnail service")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path string) error {
	logging.Debug("  Checking directory: %s", path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}
	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(first))
	}
	return nil
}

// getDuration reads key as a Go duration, warning and falling back to def
// when the value does not parse or is negative.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		logging.Warn("  Invalid %s %q, using default: %v", key, raw, def)
		return def
	}
	return d
}

func getInt(v *viper.Viper, key string, def int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logging.Warn("  Invalid %s %q, using default: %d", key, raw, def)
		return def
	}
	return n
}

func getBool(v *viper.Viper, key string, def bool) bool {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logging.Warn("  Invalid boolean value for %s: %q, using default: %v", key, raw, def)
		return def
	}
	return b
}
