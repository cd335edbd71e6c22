package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/config"
	"mediaspool/internal/history"
	"mediaspool/internal/logging"
	"mediaspool/internal/queue"
)

// Manager drives the upload queue: it admits new payloads through the
// duplicate gate, walks queued items through the transport, and runs the
// retention sweeps that move finished work into history.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	archive   *history.Store
	blobs     *blobstore.Store
	transport Transport
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager wires the queue driver. A nil transport disables the processing
// loop; enqueue, sweep, and inspection operations keep working.
func NewManager(cfg *config.Config, store *queue.Store, archive *history.Store, blobs *blobstore.Store, transport Transport, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	return &Manager{
		cfg:       cfg,
		store:     store,
		archive:   archive,
		blobs:     blobs,
		transport: transport,
		logger:    logging.WithComponent(logger, "uploader"),
	}
}

// Enqueue admits a payload into the queue. The payload is hashed for
// duplicate detection and persisted as a blob before the item is saved.
// When an active item already carries the same content hash, that item is
// returned and created is false.
func (m *Manager) Enqueue(ctx context.Context, payload []byte, draft queue.Draft) (item *queue.Item, created bool, err error) {
	hash := queue.HashPayload(payload)

	existing, err := m.store.CheckDuplicate(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		m.logger.Info("duplicate payload rejected",
			"item_id", existing.ID,
			"status", existing.Status,
			"filename", draft.Filename)
		return existing, false, nil
	}

	ref, err := m.blobs.Store(ctx, payload, blobstore.Options{
		Name:     draft.Filename,
		MimeType: draft.MimeType,
	})
	if err != nil {
		return nil, false, err
	}

	draft.FileID = ref
	draft.FileHash = hash
	draft.Size = int64(len(payload))
	saved, err := m.store.SaveItem(ctx, draft)
	if err != nil {
		return nil, false, err
	}

	m.logger.Info("item enqueued", "item_id", saved.ID, "filename", saved.Filename, "size", saved.Size)
	return saved, true, nil
}

// Pause marks an in-flight or queued item paused.
func (m *Manager) Pause(ctx context.Context, id string) (*queue.Item, error) {
	return m.store.UpdateStatus(ctx, id, queue.StatusPaused, nil)
}

// Resume returns a paused item to the queue for another pass.
func (m *Manager) Resume(ctx context.Context, id string) (*queue.Item, error) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Status != queue.StatusPaused {
		return item, fmt.Errorf("resume: item %s is not paused", id)
	}
	return m.store.UpdateStatus(ctx, id, queue.StatusQueued, nil)
}

// Cancel terminates an item. Cancelled items release their content hash for
// re-enqueueing but stay visible until swept or removed.
func (m *Manager) Cancel(ctx context.Context, id string) (*queue.Item, error) {
	return m.store.UpdateStatus(ctx, id, queue.StatusCancelled, nil)
}

// Start launches the background loop. Without a transport the loop only
// runs retention maintenance; queued items wait for a process that has one.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)
}

// Stop halts the processing loop and waits for in-flight work to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	poll := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	lastSweep := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if m.transport != nil {
			for m.processNext(ctx) {
			}
		}

		if time.Since(lastSweep) >= time.Hour {
			if _, err := m.SweepCompleted(ctx); err != nil {
				m.logger.Error("queue sweep failed", "error", err)
			}
			if _, err := m.PurgeHistory(ctx); err != nil {
				m.logger.Error("history purge failed", "error", err)
			}
			lastSweep = time.Now()
		}
	}
}

// processNext uploads the highest-priority queued item. It reports whether
// an item was attempted so the caller can drain the queue in one pass.
func (m *Manager) processNext(ctx context.Context) bool {
	item, err := m.store.NextQueued(ctx)
	if err != nil {
		m.logger.Error("queue poll failed", "error", err)
		return false
	}
	if item == nil {
		return false
	}

	if _, err := m.store.UpdateStatus(ctx, item.ID, queue.StatusUploading, nil); err != nil {
		m.logger.Error("status transition failed", "item_id", item.ID, "error", err)
		return false
	}

	record, err := m.blobs.Retrieve(ctx, item.FileID)
	if err != nil {
		m.fail(ctx, item, fmt.Errorf("load payload: %w", err))
		return true
	}

	uploadErr := m.transport.Upload(ctx, item, record.Data, func(loaded, total int64, speed float64) {
		if _, err := m.store.UpdateProgress(ctx, item.ID, queue.ProgressDelta{
			Loaded: &loaded,
			Total:  &total,
			Speed:  &speed,
		}); err != nil {
			m.logger.Warn("progress update failed", "item_id", item.ID, "error", err)
		}
	})

	// An operator may have paused or cancelled the item while the transport
	// ran; those states take precedence over the transport outcome.
	current, err := m.store.GetByID(ctx, item.ID)
	if err != nil || current == nil {
		return true
	}
	if current.Status == queue.StatusPaused || current.Status == queue.StatusCancelled {
		m.logger.Info("upload superseded by operator", "item_id", item.ID, "status", current.Status)
		return true
	}

	if uploadErr != nil {
		if errors.Is(uploadErr, context.Canceled) {
			return false
		}
		m.fail(ctx, current, uploadErr)
		return true
	}

	if _, err := m.store.UpdateStatus(ctx, item.ID, queue.StatusCompleted, nil); err != nil {
		m.logger.Error("completion update failed", "item_id", item.ID, "error", err)
		return true
	}
	m.logger.Info("upload completed", "item_id", item.ID, "filename", item.Filename)
	return true
}

// fail records an upload failure and requeues the item while retry budget
// remains.
func (m *Manager) fail(ctx context.Context, item *queue.Item, cause error) {
	m.logger.Error("upload failed", "item_id", item.ID, "retries", item.RetryCount, "error", cause)
	updated, err := m.store.UpdateStatus(ctx, item.ID, queue.StatusError, cause)
	if err != nil {
		m.logger.Error("failure update failed", "item_id", item.ID, "error", err)
		return
	}
	if updated.RetryCount < m.cfg.Workflow.MaxRetries {
		if _, err := m.store.Requeue(ctx, item.ID); err != nil {
			m.logger.Error("requeue failed", "item_id", item.ID, "error", err)
		}
	}
}

// SweepCompleted archives completed items older than the retention window
// and removes them from the active queue. Archival happens before removal so
// a crash between the two steps never loses a record.
func (m *Manager) SweepCompleted(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(m.cfg.Retention.QueueSweepHours) * time.Hour)
	items, err := m.store.CompletedOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, item := range items {
		if _, err := m.archive.Archive(ctx, item); err != nil {
			return swept, err
		}
		if err := m.store.Remove(ctx, item.ID); err != nil {
			return swept, err
		}
		swept++
	}
	if swept > 0 {
		m.logger.Info("completed items swept to history", "count", swept)
	}
	return swept, nil
}

// PurgeHistory deletes archived entries past the history retention window.
func (m *Manager) PurgeHistory(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.Retention.HistoryPurgeDays)
	purged, err := m.archive.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		m.logger.Info("history entries purged", "count", purged)
	}
	return purged, nil
}
