package uploader

import (
	"context"

	"mediaspool/internal/queue"
)

// ProgressFunc receives transfer advancement while an upload runs. Speed is
// bytes per second; implementations may call it at any cadence.
type ProgressFunc func(loaded, total int64, speed float64)

// Transport moves item payloads to their destination. Implementations honor
// context cancellation and report failures as ordinary errors; retry policy
// belongs to the Manager, not the transport.
type Transport interface {
	Upload(ctx context.Context, item *queue.Item, payload []byte, progress ProgressFunc) error
}
