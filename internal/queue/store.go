package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaspool/internal/storage"
)

// Store manages upload queue persistence in the shared container.
//
// The read-modify-write update operations (progress, status, priority)
// serialize on a per-item mutex so concurrent callbacks for the same
// transfer cannot lose fields to interleaving. Cross-process updates remain
// last-writer-wins.
type Store struct {
	db *storage.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore wraps the shared container's upload_items partition.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Store) releaseLock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// SaveItem sanitizes and upserts an item, assigning an id and creation time
// when absent. Returns the stored item.
func (s *Store) SaveItem(ctx context.Context, d Draft) (*Item, error) {
	if s == nil || s.db == nil {
		return nil, storage.ErrStorageUnavailable
	}

	item := Sanitize(d)
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	if err := s.writeItem(ctx, &item); err != nil {
		return nil, storage.WriteError("save upload item", err)
	}
	return &item, nil
}

// GetByID fetches an item by identifier, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ItemColumns+` FROM upload_items WHERE id = ?`, id)
	item, err := ScanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload item: %w", err)
	}
	return item, nil
}

// List returns every item ordered by priority descending, then order
// ascending, then creation time. The ordering is recomputed on each call.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+ItemColumns+` FROM upload_items ORDER BY priority DESC, ord ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list upload items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := ScanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextQueued returns the highest-priority queued item, or nil when the queue
// holds no pending work.
func (s *Store) NextQueued(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+ItemColumns+` FROM upload_items WHERE status = ?
         ORDER BY priority DESC, ord ASC, created_at ASC LIMIT 1`,
		StatusQueued,
	)
	item, err := ScanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued item: %w", err)
	}
	return item, nil
}

// UpdateProgress merges a partial progress update into an existing item.
func (s *Store) UpdateProgress(ctx context.Context, id string, delta ProgressDelta) (*Item, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, storage.NotFoundError("upload item", id)
	}

	progress := item.Progress
	if delta.Loaded != nil {
		progress.Loaded = *delta.Loaded
	}
	if delta.Total != nil {
		progress.Total = *delta.Total
	}
	if delta.Speed != nil {
		progress.Speed = *delta.Speed
	}
	if delta.ETA != nil {
		progress.ETA = delta.ETA
	}
	item.Progress = sanitizeProgress(progress)
	item.UpdatedAt = time.Now().UTC()

	if err := s.writeItem(ctx, item); err != nil {
		return nil, storage.WriteError("update progress", err)
	}
	return item, nil
}

// UpdateStatus transitions an item, stamping completion time on completed and
// recording an optional error value coerced to text.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errValue any) (*Item, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, storage.NotFoundError("upload item", id)
	}

	now := time.Now().UTC()
	item.Status = status
	item.UpdatedAt = now
	if status == StatusCompleted && item.CompletedAt == nil {
		completed := now
		item.CompletedAt = &completed
	}
	if errValue != nil {
		item.Error = CoerceError(errValue)
	}

	if err := s.writeItem(ctx, item); err != nil {
		return nil, storage.WriteError("update status", err)
	}
	return item, nil
}

// UpdatePriority adjusts the ordering fields only. Nil arguments leave the
// corresponding field unchanged.
func (s *Store) UpdatePriority(ctx context.Context, id string, priority, order *int) (*Item, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, storage.NotFoundError("upload item", id)
	}

	if priority != nil {
		item.Priority = *priority
	}
	if order != nil {
		item.Order = *order
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.writeItem(ctx, item); err != nil {
		return nil, storage.WriteError("update priority", err)
	}
	return item, nil
}

// Requeue resets an item to queued for another attempt and increments its
// retry count. The recorded error is cleared.
func (s *Store) Requeue(ctx context.Context, id string) (*Item, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, storage.NotFoundError("upload item", id)
	}

	item.Status = StatusQueued
	item.RetryCount++
	item.Error = ""
	item.Progress = Progress{}
	item.UpdatedAt = time.Now().UTC()

	if err := s.writeItem(ctx, item); err != nil {
		return nil, storage.WriteError("requeue item", err)
	}
	return item, nil
}

// Remove hard-deletes an item from the active queue. Removing a nonexistent
// id is not an error. History and the referenced blob are untouched.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.db.ExecNoResult(ctx, `DELETE FROM upload_items WHERE id = ?`, id); err != nil {
		return storage.WriteError("delete upload item", err)
	}
	s.releaseLock(id)
	return nil
}

// CheckDuplicate returns the first non-terminal item carrying the given
// content hash, or nil. This is the sole deduplication gate; callers consult
// it before enqueuing new content.
func (s *Store) CheckDuplicate(ctx context.Context, fileHash string) (*Item, error) {
	if fileHash == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+ItemColumns+` FROM upload_items
         WHERE file_hash = ? AND status NOT IN (?, ?)
         ORDER BY created_at ASC LIMIT 1`,
		fileHash,
		StatusCompleted,
		StatusCancelled,
	)
	item, err := ScanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	return item, nil
}

func (s *Store) writeItem(ctx context.Context, item *Item) error {
	return s.db.ExecNoResult(
		ctx,
		`INSERT INTO upload_items (
            id, file_id, file_hash, filename, size, mime_type,
            context_id, set_id, context_type, status, priority, ord,
            progress_loaded, progress_total, progress_percentage, progress_speed, progress_eta,
            error_message, retry_count, created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            file_id = excluded.file_id, file_hash = excluded.file_hash,
            filename = excluded.filename, size = excluded.size, mime_type = excluded.mime_type,
            context_id = excluded.context_id, set_id = excluded.set_id,
            context_type = excluded.context_type, status = excluded.status,
            priority = excluded.priority, ord = excluded.ord,
            progress_loaded = excluded.progress_loaded, progress_total = excluded.progress_total,
            progress_percentage = excluded.progress_percentage, progress_speed = excluded.progress_speed,
            progress_eta = excluded.progress_eta, error_message = excluded.error_message,
            retry_count = excluded.retry_count, updated_at = excluded.updated_at,
            completed_at = excluded.completed_at`,
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
		storage.NullableTime(item.CompletedAt),
	)
}

// ItemColumns is the canonical column list shared with the history partition.
const ItemColumns = "id, file_id, file_hash, filename, size, mime_type, context_id, set_id, context_type, status, priority, ord, progress_loaded, progress_total, progress_percentage, progress_speed, progress_eta, error_message, retry_count, created_at, updated_at, completed_at"

// ScanItem reads one row in ItemColumns order.
func ScanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           string
		fileID       sql.NullString
		fileHash     sql.NullString
		filename     sql.NullString
		size         int64
		mimeType     sql.NullString
		contextID    sql.NullString
		setID        sql.NullString
		contextType  sql.NullString
		statusStr    string
		priority     int
		order        int
		loaded       int64
		total        int64
		percent      int
		speed        float64
		eta          sql.NullFloat64
		errorMessage sql.NullString
		retryCount   int
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&fileID,
		&fileHash,
		&filename,
		&size,
		&mimeType,
		&contextID,
		&setID,
		&contextType,
		&statusStr,
		&priority,
		&order,
		&loaded,
		&total,
		&percent,
		&speed,
		&eta,
		&errorMessage,
		&retryCount,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:          id,
		FileID:      fileID.String,
		FileHash:    fileHash.String,
		Filename:    filename.String,
		Size:        size,
		MimeType:    mimeType.String,
		ContextID:   contextID.String,
		SetID:       setID.String,
		ContextType: contextType.String,
		Status:      Status(statusStr),
		Priority:    priority,
		Order:       order,
		Progress: Progress{
			Loaded:     loaded,
			Total:      total,
			Percentage: percent,
			Speed:      speed,
		},
		Error:      errorMessage.String,
		RetryCount: retryCount,
	}
	if eta.Valid {
		value := eta.Float64
		item.Progress.ETA = &value
	}
	if created, err := storage.ParseTime(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := storage.ParseTime(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := storage.ParseTime(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}
	return item, nil
}
