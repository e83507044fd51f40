package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"media-tagger/internal/database"
	"media-tagger/internal/logging"
	"media-tagger/internal/middleware"
	"media-tagger/internal/pipeline"
	"media-tagger/internal/thumbnail"
)

// maxBodyBytes bounds request bodies; queue requests carry paths only.
const maxBodyBytes = 4 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusForError maps pipeline and repository errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyFileList),
		errors.Is(err, pipeline.ErrNoSizes),
		errors.Is(err, pipeline.ErrInvalidFileID),
		errors.Is(err, pipeline.ErrEmptyPath),
		errors.Is(err, thumbnail.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, thumbnail.ErrNotFound),
		errors.Is(err, database.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNoCatalog):
		return http.StatusNotImplemented
	case errors.Is(err, pipeline.ErrNotStarted),
		errors.Is(err, pipeline.ErrProcessorStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeBadRequest rejects a malformed request with 400.
func writeBadRequest(w http.ResponseWriter, r *http.Request, err error) {
	middleware.Annotate(r.Context(), "error", err)
	writeJSONError(w, err.Error(), http.StatusBadRequest)
}

// writeError writes err with the status statusForError picks. Server-side
// failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.Annotate(r.Context(), "error", err)
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.Error("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSONError(w, err.Error(), status)
}
