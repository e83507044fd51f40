package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"media-tagger/internal/middleware"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamStats upgrades to a websocket and pushes a ProcessingStats snapshot
// immediately and then every stream interval until the client disconnects
// or the handlers are closed.
func (h *Handlers) StreamStats(w http.ResponseWriter, r *http.Request) {
	if !h.trackStream() {
		writeJSONError(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.streams.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Debug("stats stream opened from %s", r.RemoteAddr)
	defer log.Debug("stats stream closed from %s", r.RemoteAddr)

	// The read loop only notices client close frames and pongs.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	pushed := 0
	defer func() { middleware.Annotate(r.Context(), "snapshots", pushed) }()

	for {
		if !h.pushStats(r, conn) {
			return
		}
		pushed++
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-h.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case <-r.Context().Done():
			return
		}
	}
}

// pushStats writes one snapshot followed by a ping. It reports whether the
// stream should continue.
func (h *Handlers) pushStats(r *http.Request, conn *websocket.Conn) bool {
	stats, err := h.pipeline.Stats(r.Context())
	if err != nil {
		log.Debug("stats stream ending: %v", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
			time.Now().Add(streamWriteWait))
		return false
	}

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(stats); err != nil {
		log.Debug("stats stream write failed: %v", err)
		return false
	}
	if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
		return false
	}
	return true
}
