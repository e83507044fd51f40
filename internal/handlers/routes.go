package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-tagger/internal/middleware"
)

// RouterConfig selects the optional parts of the router.
type RouterConfig struct {
	MetricsEnabled  bool
	LogHealthChecks bool
}

// NewRouter registers every route on a new mux.Router.
func NewRouter(h *Handlers, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogHealthChecks = cfg.LogHealthChecks
	r.Use(middleware.Logger(logCfg))
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	}

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("liveness")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readiness")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")
	r.HandleFunc("/ws/stats", h.StreamStats).Methods(http.MethodGet).Name("stats-stream")

	api := r.PathPrefix("/api/thumbnails").Subrouter()
	api.HandleFunc("/queue", h.QueueThumbnails).Methods(http.MethodPost).Name("queue")
	api.HandleFunc("/queue-single", h.QueueSingle).Methods(http.MethodPost).Name("queue-single")
	api.HandleFunc("/queue-missing", h.QueueMissing).Methods(http.MethodPost).Name("queue-missing")
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet).Name("stats")
	api.HandleFunc("/pending", h.GetPending).Methods(http.MethodGet).Name("pending")
	api.HandleFunc("/storage", h.GetStorageStats).Methods(http.MethodGet).Name("storage")
	api.HandleFunc("/{fileId:[0-9]+}/{size}", h.GetThumbnail).Methods(http.MethodGet, http.MethodHead).Name("thumbnail")
	api.HandleFunc("/{fileId:[0-9]+}", h.DeleteThumbnails).Methods(http.MethodDelete).Name("delete-thumbnails")

	r.HandleFunc("/api/files/{fileId:[0-9]+}", h.DeleteFile).Methods(http.MethodDelete).Name("delete-file")

	return r
}
