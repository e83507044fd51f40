package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-tagger/internal/logging"
)

// LoggingConfig selects which requests the access log records.
type LoggingConfig struct {
	// SkipPaths are path prefixes that are never logged.
	SkipPaths       []string
	LogHealthChecks bool
	// SlowRequest logs requests that take longer at WARN. Zero disables it.
	// Stats streams are exempt.
	SlowRequest time.Duration
}

// DefaultLoggingConfig skips scrapes and health probes.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:   []string{"/metrics", "/favicon.ico"},
		SlowRequest: 2 * time.Second,
	}
}

var healthCheckPaths = map[string]bool{
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

type fieldsKey struct{}

// requestFields collects the annotations handlers attach to a request.
type requestFields struct {
	mu   sync.Mutex
	keys []string
	vals []string
}

// Annotate attaches key=value to the access log line of the request that
// ctx belongs to. Handlers use it for the job counts and errors of API
// calls. Outside the Logger middleware it does nothing.
func Annotate(ctx context.Context, key string, value any) {
	f, ok := ctx.Value(fieldsKey{}).(*requestFields)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, k := range f.keys {
		if k == key {
			f.vals[i] = formatValue(value)
			return
		}
	}
	f.keys = append(f.keys, key)
	f.vals = append(f.vals, formatValue(value))
}

func (f *requestFields) appendTo(b *strings.Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, k := range f.keys {
		fmt.Fprintf(b, " %s=%s", k, f.vals[i])
	}
}

// Logger returns the access log middleware. Each request produces one line:
//
//	POST /api/thumbnails/queue route=/api/thumbnails/queue status=202 bytes=13 took=2ms client=10.0.0.4 queued=6
//
// Server errors log at ERROR, client errors and slow requests at WARN.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	log := logging.For("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			fields := &requestFields{}
			wrapped := newResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), fieldsKey{}, fields)))

			took := time.Since(start)
			line := accessLine(r, wrapped, took, fields)
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				log.Error("%s", line)
			case wrapped.statusCode >= http.StatusBadRequest:
				log.Warn("%s", line)
			case config.SlowRequest > 0 && took > config.SlowRequest &&
				wrapped.statusCode != http.StatusSwitchingProtocols:
				log.Warn("%s slow", line)
			default:
				log.Info("%s", line)
			}
		})
	}
}

// accessLine formats one request. Every client-controlled value passes
// through sanitizeLogField.
func accessLine(r *http.Request, rw *responseWriter, took time.Duration, fields *requestFields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s route=%s status=%d bytes=%d took=%s client=%s",
		sanitizeLogField(r.Method),
		formatValue(r.URL.Path),
		routeLabel(r),
		rw.statusCode,
		rw.bytesWritten,
		took.Round(time.Millisecond),
		formatValue(getClientIP(r)),
	)
	fields.appendTo(&b)
	return b.String()
}

// formatValue renders v for a key=value log field, quoting it when it
// contains separators.
func formatValue(v any) string {
	s := sanitizeLogField(fmt.Sprint(v))
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

// sanitizeLogField keeps a value on one log line: CR and LF become spaces,
// other control characters (including ESC) are dropped, tabs are kept.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, prefix := range config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
