package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"media-tagger/internal/middleware"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/thumbnail"
)

// QueueRequest is the body of POST /api/thumbnails/queue.
type QueueRequest struct {
	Files []thumbnail.SourceFile `json:"files"`
	Sizes []thumbnail.Size       `json:"sizes"`
}

// QueueSingleRequest is the body of POST /api/thumbnails/queue-single.
type QueueSingleRequest struct {
	FileID int64          `json:"fileId"`
	Path   string         `json:"path"`
	Size   thumbnail.Size `json:"size"`
}

// QueueThumbnails queues every (file, size) pair of the request.
func (h *Handlers) QueueThumbnails(w http.ResponseWriter, r *http.Request) {
	var req QueueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	middleware.Annotate(r.Context(), "files", len(req.Files))
	middleware.Annotate(r.Context(), "sizes", len(req.Sizes))
	n, err := h.pipeline.QueueFiles(r.Context(), req.Files, req.Sizes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.Annotate(r.Context(), "queued", n)
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": n})
}

// QueueSingle queues one (file, size) job.
func (h *Handlers) QueueSingle(w http.ResponseWriter, r *http.Request) {
	var req QueueSingleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err)
		return
	}

	middleware.Annotate(r.Context(), "file", req.FileID)
	middleware.Annotate(r.Context(), "size", req.Size)
	if err := h.pipeline.QueueSingleFile(r.Context(), req.FileID, req.Path, req.Size); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.Annotate(r.Context(), "queued", 1)
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": 1})
}

// QueueMissing queues thumbnails for catalogued files that lack them.
func (h *Handlers) QueueMissing(w http.ResponseWriter, r *http.Request) {
	n, err := h.pipeline.QueueMissing(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.Annotate(r.Context(), "queued", n)
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": n})
}

// GetStats returns the current processing statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, stats)
}

// GetPending returns the number of queued jobs.
func (h *Handlers) GetPending(w http.ResponseWriter, r *http.Request) {
	n, err := h.pipeline.PendingCount(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

// GetStorageStats returns repository storage statistics.
func (h *Handlers) GetStorageStats(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeJSONError(w, "storage statistics not available for this repository", http.StatusNotImplemented)
		return
	}
	stats, err := h.storage.StorageStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetThumbnail serves a stored thumbnail image.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	fileID, err := parseFileID(vars["fileId"])
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}
	size, err := thumbnail.ParseSize(vars["size"])
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.repo.FindThumbnail(r.Context(), fileID, size)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := `"` + strconv.FormatInt(rec.ID, 10) + "-" + strconv.FormatInt(rec.UpdatedAt.UnixMilli(), 10) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Data)))
	w.Header().Set("Last-Modified", rec.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(rec.Data); err != nil {
		log.Debug("writing thumbnail %d/%s: %v", fileID, size, err)
	}
}

// DeleteThumbnails removes every stored size of a file.
func (h *Handlers) DeleteThumbnails(w http.ResponseWriter, r *http.Request) {
	fileID, err := parseFileID(mux.Vars(r)["fileId"])
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	n, err := h.repo.DeleteThumbnailsForFile(r.Context(), fileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.Annotate(r.Context(), "deleted", n)
	log.Info("Deleted %d thumbnail(s) for file %d", n, fileID)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// DeleteFile removes a file from the catalog after deleting its thumbnails
// from the repository, which need not share storage with the catalog.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeJSONError(w, "file catalog not configured", http.StatusNotImplemented)
		return
	}
	fileID, err := parseFileID(mux.Vars(r)["fileId"])
	if err != nil {
		writeBadRequest(w, r, err)
		return
	}

	n, err := h.repo.DeleteThumbnailsForFile(r.Context(), fileID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.files.DeleteFile(r.Context(), fileID); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.Annotate(r.Context(), "deleted", n)
	log.Info("Removed file %d from the catalog (%d thumbnail(s))", fileID, n)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// etagMatches reports whether an If-None-Match header value lists etag or
// is "*". Weak validators match their strong form.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func parseFileID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", pipeline.ErrInvalidFileID, raw)
	}
	return id, nil
}
