// Package middleware provides HTTP middleware for the media-tagger control
// surface.
//
// It includes:
//   - A one-line access log per request with the route template and any
//     fields handlers attach through Annotate (queued job counts, errors)
//   - Prometheus request metrics labelled by mux route template
//
// Both wrappers pass through http.Flusher and http.Hijacker so the
// websocket statistics stream works behind them.
package middleware
