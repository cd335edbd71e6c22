package tier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// QuotaError reports a write rejected by the primary tier's byte budget.
type QuotaError struct {
	Path      string
	Limit     int64
	Attempted int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded writing %s: %d bytes over %d byte budget", e.Path, e.Attempted, e.Limit)
}

// FileStore is the primary catalog tier: a single JSON file constrained by a
// configurable byte budget. Writes that would exceed the budget fail with a
// QuotaError before touching the file.
type FileStore struct {
	path     string
	maxBytes int64
}

// NewFileStore builds a primary tier at path. A maxBytes of zero disables
// the budget.
func NewFileStore(path string, maxBytes int64) *FileStore {
	return &FileStore{path: path, maxBytes: maxBytes}
}

// Path returns the backing file location.
func (f *FileStore) Path() string {
	return f.path
}

// Read loads the current catalog. A missing file yields an empty catalog.
func (f *FileStore) Read() ([]Entry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return decodeEntries(data)
}

// Write replaces the catalog atomically via a temp file rename. The encoded
// size is checked against the budget before any bytes land on disk.
func (f *FileStore) Write(entries []Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return &QuotaError{Path: f.path, Limit: f.maxBytes, Attempted: int64(len(data))}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write catalog file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace catalog file: %w", err)
	}
	return nil
}

// Exists reports whether the backing file is present on disk.
func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Remove deletes the backing file. Missing files are not an error.
func (f *FileStore) Remove() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove catalog file: %w", err)
	}
	return nil
}

// Available reports whether the directory holding the catalog file is
// writable for this process.
func (f *FileStore) Available() bool {
	dir := filepath.Dir(f.path)
	probe, err := os.CreateTemp(dir, ".catalog-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}
