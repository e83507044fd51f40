package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-tagger/internal/logging"
	"media-tagger/internal/metrics"
)

func TestResponseWriterWriteHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want first value %d", rw.statusCode, http.StatusNotFound)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorder code = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestResponseWriterWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	if _, err := rw.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}

	if rw.bytesWritten != 11 {
		t.Errorf("bytesWritten = %d, want 11", rw.bytesWritten)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", rw.statusCode)
	}
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("Hijack() on a recorder should fail")
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
		{"del\x7f", "del"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := DefaultLoggingConfig()
	cfg.SkipPaths = []string{"/internal"}

	tests := []struct {
		path string
		want bool
	}{
		{"/api/thumbnails/stats", false},
		{"/healthz", true},
		{"/metrics", false},
		{"/internal/debug", true},
	}
	for _, tt := range tests {
		if got := shouldSkip(tt.path, cfg); got != tt.want {
			t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	prev := logging.GetLevel()
	logging.SetLevel(logging.LevelInfo)
	t.Cleanup(func() {
		logging.SetOutput(os.Stderr)
		logging.SetLevel(prev)
	})
	return &buf
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		annotate  map[string]any
		want      []string
		wantLevel string
	}{
		{
			name:      "queue request with job count",
			path:      "/api/thumbnails/7/small",
			status:    http.StatusAccepted,
			annotate:  map[string]any{"queued": 6},
			want:      []string{"POST /api/thumbnails/7/small", "route=/api/thumbnails/{fileId}/{size}", "status=202", "bytes=2", "client=192.0.2.1", "queued=6"},
			wantLevel: "INFO",
		},
		{
			name:      "client error with message",
			path:      "/api/thumbnails/7/huge",
			status:    http.StatusBadRequest,
			annotate:  map[string]any{"error": "invalid size\nforged"},
			want:      []string{"status=400", `error="invalid size forged"`},
			wantLevel: "WARN",
		},
		{
			name:      "server error",
			path:      "/api/thumbnails/7/small",
			status:    http.StatusInternalServerError,
			want:      []string{"status=500"},
			wantLevel: "ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			router := mux.NewRouter()
			router.Use(Logger(DefaultLoggingConfig()))
			router.HandleFunc("/api/thumbnails/{fileId}/{size}", func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.annotate {
					Annotate(r.Context(), k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("{}"))
			})

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			router.ServeHTTP(httptest.NewRecorder(), req)

			line := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(line, want) {
					t.Errorf("log line %q missing %q", line, want)
				}
			}
			if !strings.Contains(line, tt.wantLevel) {
				t.Errorf("log line %q not at %s", line, tt.wantLevel)
			}
			if strings.Count(strings.TrimSpace(line), "\n") != 0 {
				t.Errorf("log line was split: %q", line)
			}
		})
	}
}

func TestLoggerSkipsHealthChecks(t *testing.T) {
	buf := captureLog(t)
	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("health check logged: %q", buf)
	}
}

func TestAnnotateOutsideLogger(t *testing.T) {
	// Must not panic without the middleware.
	Annotate(context.Background(), "queued", 1)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{42, "42"},
		{"plain", "plain"},
		{"two words", `"two words"`},
		{"", `""`},
		{"a=b", `"a=b"`},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(Metrics(DefaultMetricsConfig()))
	router.HandleFunc("/api/thumbnails/{fileId}/{size}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {})

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/thumbnails/{fileId}/{size}", "404")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/api/thumbnails/1/small", "/api/thumbnails/2/large"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("templated counter grew by %v, want 2", got)
	}

	skipped := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/metrics", "200")
	before = testutil.ToFloat64(skipped)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if got := testutil.ToFloat64(skipped) - before; got != 0 {
		t.Errorf("skipped path was counted %v times", got)
	}
}

func TestRouteLabelUnmatched(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routeLabel(r); got != "unmatched" {
		t.Errorf("routeLabel() = %q, want unmatched", got)
	}
}
