package blobstore_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"mediaspool/internal/blobstore"
	"mediaspool/internal/storage"
	"mediaspool/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	ctx := context.Background()
	payload := []byte("\x00\x01binary payload\xff")
	ref, err := blobs.Store(ctx, payload, blobstore.Options{Name: "clip.mp4", MimeType: "video/mp4"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasPrefix(ref, blobstore.RefPrefix) {
		t.Fatalf("expected blob:// reference, got %q", ref)
	}

	rec, err := blobs.Retrieve(ctx, ref)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(rec.Data, payload) {
		t.Fatal("expected payload bytes to round-trip unchanged")
	}
	if rec.MimeType != "video/mp4" {
		t.Fatalf("expected original mime type, got %q", rec.MimeType)
	}
	if rec.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), rec.Size)
	}
}

func TestStoreExplicitID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	ctx := context.Background()
	ref, err := blobs.Store(ctx, []byte("v1"), blobstore.Options{ID: "catalog"})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref != blobstore.RefPrefix+"catalog" {
		t.Fatalf("expected pinned reference, got %q", ref)
	}

	// Storing under the same id replaces the payload.
	if _, err := blobs.Store(ctx, []byte("v2"), blobstore.Options{ID: "catalog"}); err != nil {
		t.Fatalf("Store replace: %v", err)
	}
	rec, err := blobs.Retrieve(ctx, ref)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if string(rec.Data) != "v2" {
		t.Fatalf("expected replaced payload, got %q", rec.Data)
	}
}

func TestRetrieveMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	_, err := blobs.Retrieve(context.Background(), "blob://missing")
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	ctx := context.Background()
	ref, err := blobs.Store(ctx, []byte("data"), blobstore.Options{})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := blobs.Remove(ctx, ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := blobs.Remove(ctx, ref); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if err := blobs.Remove(ctx, "blob://never-existed"); err != nil {
		t.Fatalf("removing unknown blob should be a no-op: %v", err)
	}
}

func TestListDescriptors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	ctx := context.Background()
	if _, err := blobs.Store(ctx, []byte("one"), blobstore.Options{Name: "a.jpg", MimeType: "image/jpeg"}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := blobs.Store(ctx, []byte("two"), blobstore.Options{Name: "b.jpg"}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	descriptors, err := blobs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descriptors))
	}
	for _, desc := range descriptors {
		if desc.Ref != blobstore.RefPrefix+desc.ID {
			t.Fatalf("descriptor ref mismatch: %#v", desc)
		}
		if desc.Size == 0 {
			t.Fatalf("expected size recorded: %#v", desc)
		}
	}
}

func TestExportFileURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	blobs := blobstore.New(db)

	ctx := context.Background()
	payload := []byte("exported bytes")
	ref, err := blobs.Store(ctx, payload, blobstore.Options{})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	fileURL, path, err := blobs.ExportFileURL(ctx, ref, t.TempDir())
	if err != nil {
		t.Fatalf("ExportFileURL: %v", err)
	}
	if !strings.HasPrefix(fileURL, "file://") {
		t.Fatalf("expected file URL, got %q", fileURL)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("expected exported bytes to match payload")
	}
}

func TestParseRef(t *testing.T) {
	id, err := blobstore.ParseRef("blob://abc-123")
	if err != nil || id != "abc-123" {
		t.Fatalf("ParseRef: id=%q err=%v", id, err)
	}
	if id, err := blobstore.ParseRef("bare-id"); err != nil || id != "bare-id" {
		t.Fatalf("bare ids should be accepted: id=%q err=%v", id, err)
	}
	if _, err := blobstore.ParseRef("blob://"); err == nil {
		t.Fatal("expected error for empty reference")
	}
}
