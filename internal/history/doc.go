// Package history archives finished upload items for later inspection.
//
// Entries are write-once: archiving an id that already exists is a no-op, and
// no update path is exposed. Retention is enforced by PurgeOlderThan against
// the completion timestamp.
package history
