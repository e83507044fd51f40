// Package indexer registers source files in the catalog.
//
// A Walker walks one or more roots and hands every regular file to a pool
// of workers that upsert it through a Registrar, typically
// *database.Database. Hidden files and directories are skipped by default.
package indexer
