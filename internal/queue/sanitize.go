package queue

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Draft is a loosely populated upload item as handed in by callers. Fields
// may be missing, partially filled, or carry values the store cannot
// serialize; Sanitize normalizes all of them.
type Draft struct {
	ID          string
	FileID      string
	FileHash    string
	Filename    string
	Size        int64
	MimeType    string
	ContextID   string
	SetID       string
	ContextType string
	Status      string
	Priority    *int
	Order       *int
	Progress    *Progress
	// Error accepts an error, a string, a fmt.Stringer, or nil.
	Error      any
	RetryCount int
	CreatedAt  time.Time
}

// Sanitize produces a canonical Item with explicit defaults for every field.
// It is pure and never fails; values that cannot be represented are coerced.
func Sanitize(d Draft) Item {
	item := Item{
		ID:          strings.TrimSpace(d.ID),
		FileID:      strings.TrimSpace(d.FileID),
		FileHash:    strings.TrimSpace(d.FileHash),
		Filename:    d.Filename,
		Size:        d.Size,
		MimeType:    strings.TrimSpace(d.MimeType),
		ContextID:   strings.TrimSpace(d.ContextID),
		SetID:       strings.TrimSpace(d.SetID),
		ContextType: strings.TrimSpace(d.ContextType),
		Error:       CoerceError(d.Error),
		RetryCount:  d.RetryCount,
		CreatedAt:   d.CreatedAt,
	}

	if item.Size < 0 {
		item.Size = 0
	}
	if item.RetryCount < 0 {
		item.RetryCount = 0
	}

	if status, ok := ParseStatus(d.Status); ok {
		item.Status = status
	} else {
		item.Status = StatusQueued
	}

	if d.Priority != nil {
		item.Priority = *d.Priority
	}
	if d.Order != nil {
		item.Order = *d.Order
	}

	if d.Progress != nil {
		item.Progress = sanitizeProgress(*d.Progress)
	} else {
		item.Progress = Progress{}
	}

	return item
}

func sanitizeProgress(p Progress) Progress {
	out := Progress{
		Loaded: p.Loaded,
		Total:  p.Total,
		Speed:  p.Speed,
	}
	if out.Loaded < 0 {
		out.Loaded = 0
	}
	if out.Total < 0 {
		out.Total = 0
	}
	if out.Speed < 0 {
		out.Speed = 0
	}
	if out.Total > 0 && out.Loaded > out.Total {
		out.Loaded = out.Total
	}
	out.Percentage = percentage(out.Loaded, out.Total)
	if p.ETA != nil {
		eta := *p.ETA
		if eta >= 0 && !math.IsNaN(eta) && !math.IsInf(eta, 0) {
			out.ETA = &eta
		}
	}
	return out
}

func percentage(loaded, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(loaded) / float64(total) * 100))
}

// CoerceError flattens an arbitrary error-ish value to plain text so it can
// cross the durability boundary.
func CoerceError(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case error:
		return v.Error()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
