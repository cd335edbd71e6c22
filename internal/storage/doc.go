// Package storage owns the shared SQLite container and the error taxonomy
// every store surfaces.
//
// The blob, queue, and history partitions are tables in one database file.
// Stores receive a *DB and use its exec helpers, which retry on transient
// SQLITE_BUSY errors with exponential backoff. Schema changes bump the
// version in schema.go; a mismatched database must be deleted.
package storage
