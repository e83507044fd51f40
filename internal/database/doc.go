// Package database provides the SQLite file catalog and thumbnail
// repository for media-tagger.
//
// It handles storage and retrieval of:
//   - Catalogued source files
//   - Generated thumbnails, at most one per file and size
//   - Small key/value metadata such as the last backfill run
//
// The database uses WAL mode with foreign keys enabled; deleting a file
// cascades to its thumbnails. Schema initialization is automatic.
package database
