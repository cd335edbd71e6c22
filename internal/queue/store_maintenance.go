package queue

import (
	"context"
	"fmt"
	"time"

	"mediaspool/internal/storage"
)

// completedSweepPredicate matches completed items whose completion time is
// unknown or older than the cutoff. A completed item with no timestamp is
// treated as immediately eligible rather than held forever.
const completedSweepPredicate = `status = ? AND (completed_at IS NULL OR completed_at < ?)`

// CompletedOlderThan lists completed items eligible for sweeping at cutoff.
func (s *Store) CompletedOlderThan(ctx context.Context, cutoff time.Time) ([]*Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+ItemColumns+` FROM upload_items WHERE `+completedSweepPredicate+` ORDER BY completed_at ASC`,
		StatusCompleted,
		storage.FormatTime(cutoff.UTC()),
	)
	if err != nil {
		return nil, fmt.Errorf("list completed items: %w", err)
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

// ClearCompletedOlderThan deletes completed items past the cutoff and reports
// how many were removed. Items are not archived here; callers wanting history
// retention archive before clearing.
func (s *Store) ClearCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecWithRetry(
		ctx,
		`DELETE FROM upload_items WHERE `+completedSweepPredicate,
		StatusCompleted,
		storage.FormatTime(cutoff.UTC()),
	)
	if err != nil {
		return 0, storage.WriteError("clear completed items", err)
	}
	return result.RowsAffected()
}

// Stats returns per-status item counts. Statuses with no items are present
// with a zero count.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	stats := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		stats[status] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM upload_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return nil, err
		}
		if status, ok := ParseStatus(statusStr); ok {
			stats[status] = count
		}
	}
	return stats, rows.Err()
}

// Health aggregates queue counts into a summary for status reporting.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}

	summary := HealthSummary{
		Queued:    stats[StatusQueued],
		Uploading: stats[StatusUploading],
		Paused:    stats[StatusPaused],
		Completed: stats[StatusCompleted],
		Errored:   stats[StatusError],
		Cancelled: stats[StatusCancelled],
	}
	for _, count := range stats {
		summary.Total += count
	}
	return summary, nil
}
