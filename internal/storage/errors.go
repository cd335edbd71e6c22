package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable means the durable container cannot be used at all
	// in this environment. Fatal for the subsystem; surfaced once at startup.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrRecordNotFound means an operation targeted a nonexistent id. Always
	// recoverable by the caller.
	ErrRecordNotFound = errors.New("record not found")

	// ErrWriteFailure wraps an underlying transaction error. The cause is
	// kept verbatim so quota-detection heuristics upstream can inspect it.
	ErrWriteFailure = errors.New("write failure")

	// ErrStorageExhausted means both tiers are unusable. Terminal; the user
	// must free space.
	ErrStorageExhausted = errors.New("storage exhausted")

	// ErrSerialization means a value could not be normalized for storage.
	// Indicates a programming error upstream.
	ErrSerialization = errors.New("serialization error")
)

// WriteError tags err as a write failure while keeping the cause intact for
// errors.Is/As inspection and for message-based quota classification.
func WriteError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWriteFailure, op, err)
}

// NotFoundError reports a missing record of the given kind.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrRecordNotFound, kind, id)
}

// ExhaustedError reports that both tiers refused a write. The message is
// user-actionable: freeing space or reducing file sizes is the only remedy.
func ExhaustedError(op string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: free up disk space or reduce file sizes: %w", ErrStorageExhausted, op, err)
	}
	return fmt.Errorf("%w: %s: free up disk space or reduce file sizes", ErrStorageExhausted, op)
}
