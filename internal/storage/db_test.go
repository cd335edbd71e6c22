package storage_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mediaspool/internal/storage"
	"mediaspool/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)

	ctx := context.Background()
	for _, table := range []string{"blobs", "upload_items", "upload_history", "schema_version"} {
		var name string
		row := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := reopened.PingContext(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestWriteErrorKeepsCause(t *testing.T) {
	cause := errors.New("database or disk is full")
	err := storage.WriteError("insert blob", cause)

	if !errors.Is(err, storage.ErrWriteFailure) {
		t.Fatal("expected write failure classification")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected verbatim cause to survive wrapping")
	}
}

func TestNotFoundError(t *testing.T) {
	err := storage.NotFoundError("upload item", "abc")
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Fatal("expected record-not-found classification")
	}
}

func TestExhaustedErrorMentionsRemedy(t *testing.T) {
	err := storage.ExhaustedError("write catalog", nil)
	if !errors.Is(err, storage.ErrStorageExhausted) {
		t.Fatal("expected exhausted classification")
	}
	if got := err.Error(); !strings.Contains(got, "free up disk space") {
		t.Fatalf("expected actionable message, got %q", got)
	}
}
