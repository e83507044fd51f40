// Package kvstore implements the thumbnail repository on a Pebble
// key/value store, for deployments that keep the file catalog elsewhere.
//
// Thumbnails are stored as JSON under thumb/<20-digit file id>/<size>, so
// all sizes of a file share a key prefix and are removed with one range
// scan. Record IDs come from a persisted sequence key.
package kvstore
