// Package blobstore persists opaque binary payloads behind generated
// identifiers.
//
// Blobs are referenced by "blob://<id>" strings and never duplicated: queue
// items, history snapshots, and catalog records hold the reference, not the
// bytes. Deletion is explicit; nothing garbage-collects a blob because it may
// be referenced by records outside this subsystem's visibility.
package blobstore
