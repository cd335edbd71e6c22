package tier_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/config"
	"mediaspool/internal/storage"
	"mediaspool/internal/testsupport"
	"mediaspool/internal/tier"
)

func newController(t *testing.T, opts ...testsupport.ConfigOption) (*tier.Controller, *config.Config, *blobstore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)
	controller, err := tier.NewController(cfg, blobs, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return controller, cfg, blobs
}

func entry(id, payload string) tier.Entry {
	return tier.Entry{ID: id, Payload: json.RawMessage(payload)}
}

func TestSaveAndLoadPrimary(t *testing.T) {
	controller, cfg, _ := newController(t)
	ctx := context.Background()

	if err := controller.Save(ctx, entry("a", `{"name":"one"}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if controller.UsingFallback() {
		t.Fatal("small write should stay on primary tier")
	}
	if _, err := os.Stat(cfg.CatalogPrimaryPath()); err != nil {
		t.Fatalf("expected primary file on disk: %v", err)
	}

	entries, err := controller.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Fatalf("unexpected catalog: %#v", entries)
	}
}

func TestSaveMergesByID(t *testing.T) {
	controller, _, _ := newController(t)
	ctx := context.Background()

	if err := controller.Save(ctx, entry("a", `{"v":1}`), entry("b", `{"v":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := controller.Save(ctx, entry("a", `{"v":2}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := controller.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || string(got.Payload) != `{"v":2}` {
		t.Fatalf("expected incoming entry to win, got %#v", got)
	}

	entries, err := controller.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after merge, got %d", len(entries))
	}
}

func TestQuotaFailoverMigratesCatalog(t *testing.T) {
	controller, cfg, blobs := newController(t, testsupport.WithPrimaryBudget(64))
	ctx := context.Background()

	if err := controller.Save(ctx, entry("small", `{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if controller.UsingFallback() {
		t.Fatal("expected primary tier before overflow")
	}

	big := make([]byte, 256)
	for i := range big {
		big[i] = 'x'
	}
	payload, _ := json.Marshal(string(big))
	if err := controller.Save(ctx, tier.Entry{ID: "large", Payload: payload}); err != nil {
		t.Fatalf("Save past budget should fail over, got %v", err)
	}
	if !controller.UsingFallback() {
		t.Fatal("expected fallback tier after overflow")
	}

	// Preference is persisted; data must be readable and merged.
	if _, err := os.Stat(cfg.TierPreferencePath()); err != nil {
		t.Fatalf("expected preference flag: %v", err)
	}
	entries, err := controller.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected both entries after migration, got %d", len(entries))
	}

	// The fallback blob holds the catalog under the configured id.
	rec, err := blobs.Retrieve(ctx, blobstore.RefPrefix+cfg.Storage.CatalogBlobID)
	if err != nil {
		t.Fatalf("Retrieve fallback blob: %v", err)
	}
	if len(rec.Data) == 0 {
		t.Fatal("expected fallback blob populated")
	}
}

func TestFailoverIsOneWay(t *testing.T) {
	controller, cfg, _ := newController(t, testsupport.WithPrimaryBudget(32))
	ctx := context.Background()

	payload, _ := json.Marshal(string(make([]byte, 128)))
	if err := controller.Save(ctx, tier.Entry{ID: "big", Payload: payload}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !controller.UsingFallback() {
		t.Fatal("expected fallback after overflow")
	}

	// A tiny write after failover still goes to the fallback tier.
	if err := controller.Save(ctx, entry("tiny", `{}`)); err != nil {
		t.Fatalf("Save after failover: %v", err)
	}
	primary, err := os.ReadFile(cfg.CatalogPrimaryPath())
	if err == nil {
		var entries []tier.Entry
		if json.Unmarshal(primary, &entries) == nil {
			for _, e := range entries {
				if e.ID == "tiny" {
					t.Fatal("post-failover write landed on primary tier")
				}
			}
		}
	}
}

func TestPreferenceSurvivesRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrimaryBudget(32))
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)
	ctx := context.Background()

	controller, err := tier.NewController(cfg, blobs, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	payload, _ := json.Marshal(string(make([]byte, 128)))
	if err := controller.Save(ctx, tier.Entry{ID: "big", Payload: payload}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := tier.NewController(cfg, blobs, nil)
	if err != nil {
		t.Fatalf("NewController after restart: %v", err)
	}
	if !reopened.UsingFallback() {
		t.Fatal("expected persisted fallback preference after restart")
	}
	entries, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "big" {
		t.Fatalf("expected catalog served from fallback, got %#v", entries)
	}
}

func TestRepairRevertsDanglingPreference(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	// A preference flag with no fallback blob simulates a crash before the
	// fallback write landed, or a recreated container.
	if err := os.WriteFile(cfg.TierPreferencePath(), []byte("fallback\n"), 0o644); err != nil {
		t.Fatalf("write flag: %v", err)
	}

	controller, err := tier.NewController(cfg, blobs, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if controller.UsingFallback() {
		t.Fatal("expected repair to revert to primary tier")
	}
	if _, err := os.Stat(cfg.TierPreferencePath()); !os.IsNotExist(err) {
		t.Fatalf("expected preference flag removed, got %v", err)
	}
}

func TestRemoveEntry(t *testing.T) {
	controller, _, _ := newController(t)
	ctx := context.Background()

	if err := controller.Save(ctx, entry("a", `{}`), entry("b", `{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := controller.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := controller.Remove(ctx, "never-there"); err != nil {
		t.Fatalf("Remove unknown should be a no-op: %v", err)
	}

	entries, err := controller.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "b" {
		t.Fatalf("unexpected catalog after removal: %#v", entries)
	}
}

func TestFailoverWithClosedFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPrimaryBudget(32))
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)
	controller, err := tier.NewController(cfg, blobs, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	db.Close()

	payload, _ := json.Marshal(string(make([]byte, 128)))
	err = controller.Save(context.Background(), tier.Entry{ID: "big", Payload: payload})
	if !errors.Is(err, storage.ErrStorageExhausted) {
		t.Fatalf("expected storage-exhausted with dead fallback, got %v", err)
	}
}
