// Package uploader drives queued items through a pluggable transport and
// enforces queue and history retention.
package uploader
