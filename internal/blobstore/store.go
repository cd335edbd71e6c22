package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaspool/internal/storage"
)

// RefPrefix is the scheme carried by every blob reference.
const RefPrefix = "blob://"

// Store manages durable binary payloads in the blobs partition.
type Store struct {
	db *storage.DB
}

// Record is a fully loaded blob including its payload.
type Record struct {
	ID        string
	Name      string
	MimeType  string
	Size      int64
	Data      []byte
	CreatedAt time.Time
}

// Descriptor is a lightweight blob listing entry without the payload.
type Descriptor struct {
	ID        string
	Name      string
	MimeType  string
	Size      int64
	CreatedAt time.Time
	Ref       string
}

// Options controls how a payload is stored.
type Options struct {
	Name     string
	MimeType string
	// ID pins the blob to an explicit identifier instead of a generated one.
	// Storing under an existing ID replaces that blob.
	ID string
}

// New wraps the shared container's blobs partition.
func New(db *storage.DB) *Store {
	return &Store{db: db}
}

// Available reports whether the durable container can be used.
func (s *Store) Available(ctx context.Context) bool {
	if s == nil || s.db == nil {
		return false
	}
	return s.db.PingContext(ctx) == nil
}

// Store persists a payload and returns its reference.
func (s *Store) Store(ctx context.Context, payload []byte, opts Options) (string, error) {
	if s == nil || s.db == nil {
		return "", storage.ErrStorageUnavailable
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := storage.FormatTime(time.Now())

	err := s.db.ExecNoResult(
		ctx,
		`INSERT INTO blobs (id, name, mime_type, size, data, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name, mime_type = excluded.mime_type,
             size = excluded.size, data = excluded.data`,
		id,
		storage.NullableString(opts.Name),
		storage.NullableString(opts.MimeType),
		int64(len(payload)),
		payload,
		now,
	)
	if err != nil {
		return "", storage.WriteError("insert blob", err)
	}

	return RefPrefix + id, nil
}

// ParseRef resolves a reference string to a blob identifier. Bare identifiers
// are accepted for callers that stored the id directly.
func ParseRef(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	id := strings.TrimPrefix(trimmed, RefPrefix)
	if id == "" {
		return "", fmt.Errorf("empty blob reference %q", ref)
	}
	return id, nil
}

// Retrieve loads a blob with its payload.
func (s *Store) Retrieve(ctx context.Context, ref string) (*Record, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, mime_type, size, data, created_at FROM blobs WHERE id = ?`,
		id,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError("blob", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return rec, nil
}

// ExportFileURL materializes a blob to a file and returns a file:// URL for
// display. The caller owns removal of the returned path.
func (s *Store) ExportFileURL(ctx context.Context, ref, dir string) (string, string, error) {
	rec, err := s.Retrieve(ctx, ref)
	if err != nil {
		return "", "", err
	}

	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "mediaspool-blob-"+rec.ID)
	if err := os.WriteFile(path, rec.Data, 0o644); err != nil {
		return "", "", fmt.Errorf("export blob: %w", err)
	}

	fileURL := url.URL{Scheme: "file", Path: path}
	return fileURL.String(), path, nil
}

// Remove deletes a blob. Removing a nonexistent blob is not an error.
func (s *Store) Remove(ctx context.Context, ref string) error {
	id, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if err := s.db.ExecNoResult(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return storage.WriteError("delete blob", err)
	}
	return nil
}

// List returns descriptors for every stored blob, oldest first. Diagnostics
// only; the payload column is never read.
func (s *Store) List(ctx context.Context) ([]Descriptor, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, mime_type, size, created_at FROM blobs ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	defer rows.Close()

	var descriptors []Descriptor
	for rows.Next() {
		var (
			id         string
			name       sql.NullString
			mimeType   sql.NullString
			size       int64
			createdRaw sql.NullString
		)
		if err := rows.Scan(&id, &name, &mimeType, &size, &createdRaw); err != nil {
			return nil, err
		}
		desc := Descriptor{
			ID:       id,
			Name:     name.String,
			MimeType: mimeType.String,
			Size:     size,
			Ref:      RefPrefix + id,
		}
		if created, err := storage.ParseTime(createdRaw.String); err == nil {
			desc.CreatedAt = created
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id         string
		name       sql.NullString
		mimeType   sql.NullString
		size       int64
		data       []byte
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &name, &mimeType, &size, &data, &createdRaw); err != nil {
		return nil, err
	}

	rec := &Record{
		ID:       id,
		Name:     name.String,
		MimeType: mimeType.String,
		Size:     size,
		Data:     data,
	}
	if created, err := storage.ParseTime(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	return rec, nil
}
