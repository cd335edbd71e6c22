package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mediaspool/internal/queue"
	"mediaspool/internal/storage"
)

// Entry is an archived upload record. Entries are immutable once written.
type Entry struct {
	queue.Item
	ArchivedAt time.Time
}

// Store manages the upload_history partition of the shared container.
type Store struct {
	db *storage.DB
}

// NewStore wraps the shared container's history partition.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// Archive copies a finished item into history and returns its id. Completion
// time is stamped if the item never received one. Archiving an id already in
// history leaves the existing record untouched.
func (s *Store) Archive(ctx context.Context, item *queue.Item) (string, error) {
	if item == nil {
		return "", fmt.Errorf("archive: nil item")
	}
	if !queue.IsArchivable(item.Status) {
		return "", fmt.Errorf("archive: item %s has non-archivable status %q", item.ID, item.Status)
	}

	now := time.Now().UTC()
	completedAt := item.CompletedAt
	if completedAt == nil {
		completedAt = &now
	}

	err := s.db.ExecNoResult(
		ctx,
		`INSERT OR IGNORE INTO upload_history (
            id, file_id, file_hash, filename, size, mime_type,
            context_id, set_id, context_type, status, priority, ord,
            progress_loaded, progress_total, progress_percentage, progress_speed, progress_eta,
            error_message, retry_count, created_at, updated_at, completed_at, archived_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		storage.NullableString(item.FileID),
		storage.NullableString(item.FileHash),
		storage.NullableString(item.Filename),
		item.Size,
		storage.NullableString(item.MimeType),
		storage.NullableString(item.ContextID),
		storage.NullableString(item.SetID),
		storage.NullableString(item.ContextType),
		item.Status,
		item.Priority,
		item.Order,
		item.Progress.Loaded,
		item.Progress.Total,
		item.Progress.Percentage,
		item.Progress.Speed,
		storage.NullableFloat(item.Progress.ETA),
		storage.NullableString(item.Error),
		item.RetryCount,
		storage.FormatTime(item.CreatedAt),
		storage.FormatTime(item.UpdatedAt),
		storage.FormatTime(*completedAt),
		storage.FormatTime(now),
	)
	if err != nil {
		return "", storage.WriteError("archive item", err)
	}
	return item.ID, nil
}

// GetByID fetches a history entry, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+queue.ItemColumns+`, archived_at FROM upload_history WHERE id = ?`,
		id,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return entry, nil
}

// List returns archived entries newest-first by completion time, optionally
// filtered to the given statuses. A limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int, statuses ...queue.Status) ([]*Entry, error) {
	query := `SELECT ` + queue.ItemColumns + `, archived_at FROM upload_history`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + storage.Placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY completed_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes entries completed before the cutoff and reports how
// many were removed.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecWithRetry(
		ctx,
		`DELETE FROM upload_history WHERE completed_at < ?`,
		storage.FormatTime(cutoff.UTC()),
	)
	if err != nil {
		return 0, storage.WriteError("purge history", err)
	}
	return result.RowsAffected()
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM upload_history`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	// queue.ScanItem cannot be reused directly because of the trailing
	// archived_at column, so the wrapper intercepts the scan destinations.
	wrapper := &archivedScanner{inner: scanner}
	item, err := queue.ScanItem(wrapper)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Item: *item}
	if archived, err := storage.ParseTime(wrapper.archivedRaw.String); err == nil {
		entry.ArchivedAt = archived
	}
	return entry, nil
}

type archivedScanner struct {
	inner       interface{ Scan(dest ...any) error }
	archivedRaw sql.NullString
}

func (w *archivedScanner) Scan(dest ...any) error {
	dest = append(dest, &w.archivedRaw)
	return w.inner.Scan(dest...)
}
