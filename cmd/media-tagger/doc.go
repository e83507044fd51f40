// Command media-tagger runs the background thumbnail pipeline for the
// media-tagger file catalog.
//
// Usage:
//
//	media-tagger serve [--port 8080] [--backfill]
//	media-tagger generate [--sizes small,medium,large] [--force] <path>...
//	media-tagger stats [--json]
//	media-tagger version
//
// Configuration comes from environment variables (see package startup),
// optionally loaded from a .env file, and from the persistent flags
// --database-dir, --store, --log-level and --workers.
package main
