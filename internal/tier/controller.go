package tier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/config"
	"mediaspool/internal/logging"
	"mediaspool/internal/storage"
)

// Controller arbitrates between the budgeted primary catalog file and the
// blob-backed fallback tier.
//
// The preference flip is one-way within a process lifetime: once a write
// fails over, all later reads and writes use the fallback. The preference is
// persisted as a flag file and written only after the fallback holds the
// data, so a crash mid-failover leaves the primary authoritative.
type Controller struct {
	primary  *FileStore
	fallback *blobstore.Store
	blobID   string
	prefPath string
	logger   *slog.Logger

	mu            sync.Mutex
	usingFallback bool
}

// NewController wires the catalog tiers from configuration and runs a repair
// pass over any partially completed failover left by a crash.
func NewController(cfg *config.Config, blobs *blobstore.Store, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)}))
	}
	c := &Controller{
		primary:  NewFileStore(cfg.CatalogPrimaryPath(), cfg.Storage.PrimaryMaxBytes),
		fallback: blobs,
		blobID:   cfg.Storage.CatalogBlobID,
		prefPath: cfg.TierPreferencePath(),
		logger:   logging.WithComponent(logger, "tier"),
	}
	c.usingFallback = c.preferenceFlagged()

	if err := c.repair(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// repair reconciles the preference flag with what the tiers actually hold.
// A flag pointing at an empty fallback means the flip raced a crash or the
// container was recreated; the primary file stays authoritative.
func (c *Controller) repair(ctx context.Context) error {
	if !c.usingFallback {
		return nil
	}
	_, err := c.fallback.Retrieve(ctx, blobstore.RefPrefix+c.blobID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrRecordNotFound) {
		return fmt.Errorf("verify fallback catalog: %w", err)
	}

	c.logger.Warn("fallback catalog missing, reverting preference to primary tier")
	if err := os.Remove(c.prefPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reset tier preference: %w", err)
	}
	c.usingFallback = false
	return nil
}

// Save merges entries into the active catalog tier. A primary write rejected
// for capacity triggers failover; any other failure is returned unchanged.
func (c *Controller) Save(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usingFallback {
		return c.saveFallback(ctx, entries)
	}

	existing, err := c.primary.Read()
	if err != nil {
		return err
	}
	merged := mergeEntries(existing, entries)

	err = c.primary.Write(merged)
	if err == nil {
		return nil
	}
	if !IsQuotaExhaustion(err) {
		return err
	}

	c.logger.Warn("primary catalog tier exhausted, failing over", "cause", err)
	return c.failover(ctx, merged, err)
}

// failover moves the merged catalog to the fallback tier and flips the
// persisted preference last.
func (c *Controller) failover(ctx context.Context, merged []Entry, cause error) error {
	if !c.fallback.Available(ctx) {
		return storage.ExhaustedError("catalog failover", cause)
	}
	if err := c.writeFallback(ctx, merged); err != nil {
		return storage.ExhaustedError("catalog failover", err)
	}
	if err := os.WriteFile(c.prefPath, []byte("fallback\n"), 0o644); err != nil {
		return fmt.Errorf("persist tier preference: %w", err)
	}
	c.usingFallback = true
	c.logger.Info("catalog now served from fallback tier", "blob_id", c.blobID)
	return nil
}

func (c *Controller) saveFallback(ctx context.Context, entries []Entry) error {
	existing, err := c.readFallback(ctx)
	if err != nil {
		return err
	}
	merged := mergeEntries(existing, entries)
	if err := c.writeFallback(ctx, merged); err != nil {
		if IsQuotaExhaustion(err) {
			return storage.ExhaustedError("fallback catalog write", err)
		}
		return err
	}
	return nil
}

// Load returns the catalog from the active tier.
func (c *Controller) Load(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usingFallback {
		return c.readFallback(ctx)
	}
	return c.primary.Read()
}

// Get returns one catalog entry by id, or nil when absent.
func (c *Controller) Get(ctx context.Context, id string) (*Entry, error) {
	entries, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// Remove deletes a catalog entry from the active tier. Removing an unknown
// id is a no-op.
func (c *Controller) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		entries []Entry
		err     error
	)
	if c.usingFallback {
		entries, err = c.readFallback(ctx)
	} else {
		entries, err = c.primary.Read()
	}
	if err != nil {
		return err
	}

	kept := entries[:0]
	removed := false
	for _, entry := range entries {
		if entry.ID == id {
			removed = true
			continue
		}
		kept = append(kept, entry)
	}
	if !removed {
		return nil
	}

	if c.usingFallback {
		return c.writeFallback(ctx, kept)
	}
	return c.primary.Write(kept)
}

// UsingFallback reports whether the catalog currently lives in the fallback
// tier.
func (c *Controller) UsingFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usingFallback
}

func (c *Controller) readFallback(ctx context.Context) ([]Entry, error) {
	record, err := c.fallback.Retrieve(ctx, blobstore.RefPrefix+c.blobID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEntries(record.Data)
}

func (c *Controller) writeFallback(ctx context.Context, entries []Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	_, err = c.fallback.Store(ctx, data, blobstore.Options{
		ID:       c.blobID,
		Name:     "catalog.json",
		MimeType: "application/json",
	})
	return err
}

func (c *Controller) preferenceFlagged() bool {
	_, err := os.Stat(c.prefPath)
	return err == nil
}
