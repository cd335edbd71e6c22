package uploader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/config"
	"mediaspool/internal/history"
	"mediaspool/internal/queue"
	"mediaspool/internal/testsupport"
)

type fakeTransport struct {
	mu       sync.Mutex
	uploads  []string
	failures map[string]error
	progress bool
}

func (f *fakeTransport) Upload(ctx context.Context, item *queue.Item, payload []byte, progress ProgressFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, item.ID)
	if f.progress && progress != nil {
		progress(int64(len(payload))/2, int64(len(payload)), 1024)
		progress(int64(len(payload)), int64(len(payload)), 2048)
	}
	if err, ok := f.failures[item.ID]; ok {
		return err
	}
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func newManager(t *testing.T, transport Transport) (*Manager, *queue.Store, *history.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	store := queue.NewStore(db)
	archive := history.NewStore(db)
	blobs := blobstore.New(db)
	return NewManager(cfg, store, archive, blobs, transport, nil), store, archive, cfg
}

func TestEnqueueStoresPayloadAndItem(t *testing.T) {
	manager, store, _, _ := newManager(t, nil)
	ctx := context.Background()

	item, created, err := manager.Enqueue(ctx, []byte("payload bytes"), queue.Draft{Filename: "clip.mp4", MimeType: "video/mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !created {
		t.Fatal("expected new item")
	}
	if item.FileID == "" || item.FileHash == "" {
		t.Fatalf("expected blob reference and hash recorded: %#v", item)
	}
	if item.Size != int64(len("payload bytes")) {
		t.Fatalf("expected payload size recorded, got %d", item.Size)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil || fetched == nil {
		t.Fatalf("expected persisted item: %v", err)
	}
}

func TestEnqueueRejectsDuplicatePayload(t *testing.T) {
	manager, _, _, _ := newManager(t, nil)
	ctx := context.Background()

	payload := []byte("identical content")
	first, created, err := manager.Enqueue(ctx, payload, queue.Draft{Filename: "a.mp4"})
	if err != nil || !created {
		t.Fatalf("first Enqueue: created=%v err=%v", created, err)
	}

	second, created, err := manager.Enqueue(ctx, payload, queue.Draft{Filename: "b.mp4"})
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if created {
		t.Fatal("expected duplicate rejection")
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing item returned, got %s vs %s", second.ID, first.ID)
	}

	// A cancelled item releases the hash for re-enqueueing.
	if _, err := manager.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, created, err = manager.Enqueue(ctx, payload, queue.Draft{Filename: "c.mp4"})
	if err != nil || !created {
		t.Fatalf("expected re-enqueue after cancel: created=%v err=%v", created, err)
	}
}

func TestProcessNextCompletesItem(t *testing.T) {
	transport := &fakeTransport{progress: true}
	manager, store, _, _ := newManager(t, transport)
	ctx := context.Background()

	item, _, err := manager.Enqueue(ctx, []byte("upload me"), queue.Draft{Filename: "a.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if !manager.processNext(ctx) {
		t.Fatal("expected an item to be processed")
	}
	if manager.processNext(ctx) {
		t.Fatal("expected empty queue on second pass")
	}

	done, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if done.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %q", done.Status)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completion stamp")
	}
	if done.Progress.Percentage != 100 {
		t.Fatalf("expected progress reported through to store, got %d%%", done.Progress.Percentage)
	}
	if transport.count() != 1 {
		t.Fatalf("expected 1 transport call, got %d", transport.count())
	}
}

func TestProcessNextRetriesWithinBudget(t *testing.T) {
	transport := &fakeTransport{failures: map[string]error{}}
	manager, store, _, cfg := newManager(t, transport)
	ctx := context.Background()

	item, _, err := manager.Enqueue(ctx, []byte("flaky"), queue.Draft{Filename: "a.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	transport.failures[item.ID] = errors.New("connection reset")

	// Each pass fails and requeues until the retry budget is spent.
	for i := 0; i <= cfg.Workflow.MaxRetries; i++ {
		if !manager.processNext(ctx) {
			t.Fatalf("pass %d: expected item processed", i)
		}
	}
	if manager.processNext(ctx) {
		t.Fatal("expected no further attempts past retry budget")
	}

	final, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != queue.StatusError {
		t.Fatalf("expected terminal error status, got %q", final.Status)
	}
	if final.RetryCount != cfg.Workflow.MaxRetries {
		t.Fatalf("expected retry count %d, got %d", cfg.Workflow.MaxRetries, final.RetryCount)
	}
	if final.Error == "" {
		t.Fatal("expected failure message recorded")
	}
}

func TestOperatorCancelWinsOverTransport(t *testing.T) {
	manager, store, _, _ := newManager(t, nil)
	ctx := context.Background()

	item, _, err := manager.Enqueue(ctx, []byte("stop me"), queue.Draft{Filename: "a.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Transport cancels the item mid-upload, as an operator command would.
	manager.transport = transportFunc(func(ctx context.Context, it *queue.Item, payload []byte, progress ProgressFunc) error {
		_, err := manager.Cancel(ctx, it.ID)
		return err
	})

	if !manager.processNext(ctx) {
		t.Fatal("expected item processed")
	}
	final, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled to stick, got %q", final.Status)
	}
}

type transportFunc func(ctx context.Context, item *queue.Item, payload []byte, progress ProgressFunc) error

func (f transportFunc) Upload(ctx context.Context, item *queue.Item, payload []byte, progress ProgressFunc) error {
	return f(ctx, item, payload, progress)
}

func TestPauseAndResume(t *testing.T) {
	manager, store, _, _ := newManager(t, nil)
	ctx := context.Background()

	item, _, err := manager.Enqueue(ctx, []byte("hold"), queue.Draft{Filename: "a.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := manager.Pause(ctx, item.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	paused, _ := store.GetByID(ctx, item.ID)
	if paused.Status != queue.StatusPaused {
		t.Fatalf("expected paused, got %q", paused.Status)
	}

	if _, err := manager.Resume(ctx, item.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	resumed, _ := store.GetByID(ctx, item.ID)
	if resumed.Status != queue.StatusQueued {
		t.Fatalf("expected queued after resume, got %q", resumed.Status)
	}

	if _, err := manager.Resume(ctx, item.ID); err == nil {
		t.Fatal("expected resume rejection for non-paused item")
	}
}

func TestSweepCompletedArchivesBeforeRemoval(t *testing.T) {
	manager, store, archive, cfg := newManager(t, nil)
	ctx := context.Background()

	item, _, err := manager.Enqueue(ctx, []byte("finished"), queue.Draft{Filename: "done.mp4"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.UpdateStatus(ctx, item.ID, queue.StatusCompleted, nil); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// Inside the retention window nothing moves.
	swept, err := manager.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("SweepCompleted: %v", err)
	}
	if swept != 0 {
		t.Fatalf("expected no sweep inside window, got %d", swept)
	}

	cfg.Retention.QueueSweepHours = 0
	time.Sleep(2 * time.Millisecond)
	swept, err = manager.SweepCompleted(ctx)
	if err != nil {
		t.Fatalf("SweepCompleted: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept, got %d", swept)
	}

	if got, _ := store.GetByID(ctx, item.ID); got != nil {
		t.Fatal("expected item removed from active queue")
	}
	entry, err := archive.GetByID(ctx, item.ID)
	if err != nil || entry == nil {
		t.Fatalf("expected archived entry: %v", err)
	}
}

func TestStartStopIdle(t *testing.T) {
	manager, _, _, cfg := newManager(t, &fakeTransport{})
	cfg.Workflow.QueuePollInterval = 1

	manager.Start()
	manager.Start() // second start is a no-op
	manager.Stop()
	manager.Stop() // second stop is a no-op
}
