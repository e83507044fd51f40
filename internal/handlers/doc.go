// Package handlers implements the HTTP control surface of the thumbnail
// pipeline.
//
// Routes are registered on a gorilla/mux router by NewRouter:
//
//	POST   /api/thumbnails/queue            queue files for a set of sizes
//	POST   /api/thumbnails/queue-single     queue one (file, size) job
//	POST   /api/thumbnails/queue-missing    backfill from the file catalog
//	GET    /api/thumbnails/stats            processing statistics
//	GET    /api/thumbnails/pending          queue depth
//	GET    /api/thumbnails/storage          repository storage statistics
//	GET    /api/thumbnails/{fileId}/{size}  stored thumbnail image
//	DELETE /api/thumbnails/{fileId}         delete every size of a file
//	DELETE /api/files/{fileId}              remove a file and its thumbnails
//	GET    /ws/stats                        live statistics over a websocket
//	GET    /healthz, /livez, /readyz        probes
//	GET    /version                         build information
//	GET    /metrics                         Prometheus metrics
//
// Validation errors from the pipeline are returned as 400 with the error
// text.
package handlers
