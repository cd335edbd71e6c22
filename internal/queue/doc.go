// Package queue persists upload work items and their lifecycle in the shared
// container.
//
// Items move queued -> uploading -> completed, error, or cancelled, with
// uploading pausable in both directions. Listing order is priority descending
// then explicit order ascending; duplicate detection keys on the content hash
// of items that have not reached a terminal state.
package queue
