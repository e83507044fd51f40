package thumbnail

import (
	"errors"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"media-tagger/internal/logging"
)

var errVipsUnavailable = errors.New("libvips not available")

var (
	vipsMu      sync.Mutex
	vipsStarted bool
)

// vipsLogLevel picks the most verbose libvips level worth forwarding at the
// current application log level.
func vipsLogLevel(level logging.LogLevel) vips.LogLevel {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo
	case logging.LevelInfo:
		return vips.LogLevelWarning
	case logging.LevelWarn:
		return vips.LogLevelError
	default:
		return vips.LogLevelCritical
	}
}

func forwardVipsLog(domain string, level vips.LogLevel, msg string) {
	switch {
	case level <= vips.LogLevelCritical:
		logging.Error("[vips:%s] %s", domain, msg)
	case level == vips.LogLevelWarning:
		logging.Warn("[vips:%s] %s", domain, msg)
	default:
		logging.Debug("[vips:%s] %s", domain, msg)
	}
}

// InitVips starts libvips with conservative memory settings. It must be
// called once at startup before generators are created with vips enabled.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		return
	}

	vips.LoggingSettings(forwardVipsLog, vipsLogLevel(logging.GetLevel()))
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})
	vipsStarted = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
		logging.Info("libvips shutdown complete")
	}
}

// VipsAvailable reports whether InitVips has run.
func VipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsStarted
}

// renderWithVips shrinks at decode time and encodes directly, never holding
// the full-resolution image in Go memory.
func renderWithVips(path string, box int) ([]byte, string, error) {
	if !VipsAvailable() {
		return nil, "", errVipsUnavailable
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, "", fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(box, box, vips.InterestingNone); err != nil {
		return nil, "", fmt.Errorf("vips thumbnail: %w", err)
	}

	if ref.HasAlpha() {
		data, _, err := ref.ExportPng(vips.NewPngExportParams())
		if err != nil {
			return nil, "", fmt.Errorf("vips png export: %w", err)
		}
		return data, "image/png", nil
	}

	params := vips.NewJpegExportParams()
	params.Quality = jpegQuality
	params.StripMetadata = true
	data, _, err := ref.ExportJpeg(params)
	if err != nil {
		return nil, "", fmt.Errorf("vips jpeg export: %w", err)
	}
	return data, "image/jpeg", nil
}
