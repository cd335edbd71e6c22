package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an upload item.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusUploading,
	StatusPaused,
	StatusCompleted,
	StatusError,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// terminalStatuses are invisible to the duplicate gate. StatusError is
// deliberately absent: an errored item still owns its content hash until it
// is requeued or removed.
var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusCancelled: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends an item's active life in the queue.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsArchivable reports whether an item in this status may move to history.
func IsArchivable(status Status) bool {
	return status == StatusCompleted || status == StatusCancelled || status == StatusError
}

// Progress captures transfer advancement for an item.
type Progress struct {
	Loaded     int64
	Total      int64
	Percentage int
	Speed      float64
	// ETA is seconds remaining; nil when unknown.
	ETA *float64
}

// Item represents an upload queue record persisted in the shared container.
type Item struct {
	ID          string
	FileID      string
	FileHash    string
	Filename    string
	Size        int64
	MimeType    string
	ContextID   string
	SetID       string
	ContextType string
	Status      Status
	Priority    int
	Order       int
	Progress    Progress
	// Error is plain text. Rich error values never cross the durability
	// boundary; the sanitizer coerces them before a write.
	Error       string
	RetryCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// ProgressDelta is a partial progress update. Nil fields are left unchanged.
type ProgressDelta struct {
	Loaded *int64
	Total  *int64
	Speed  *float64
	ETA    *float64
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Queued    int
	Uploading int
	Paused    int
	Completed int
	Errored   int
	Cancelled int
}
