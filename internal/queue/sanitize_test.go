package queue

import (
	"errors"
	"math"
	"testing"
)

func TestSanitizeDefaults(t *testing.T) {
	item := Sanitize(Draft{})
	if item.Status != StatusQueued {
		t.Fatalf("expected queued default, got %q", item.Status)
	}
	if item.Priority != 0 || item.Order != 0 {
		t.Fatalf("expected zero ordering defaults, got %d/%d", item.Priority, item.Order)
	}
	if item.Progress != (Progress{}) {
		t.Fatalf("expected zero progress, got %#v", item.Progress)
	}
}

func TestSanitizeClampsValues(t *testing.T) {
	negativeETA := -5.0
	item := Sanitize(Draft{
		ID:     "  padded  ",
		Size:   -10,
		Status: "EXPLODED",
		Progress: &Progress{
			Loaded: 200,
			Total:  100,
			Speed:  -1,
			ETA:    &negativeETA,
		},
		RetryCount: -3,
	})
	if item.ID != "padded" {
		t.Fatalf("expected trimmed id, got %q", item.ID)
	}
	if item.Size != 0 || item.RetryCount != 0 {
		t.Fatalf("expected negatives clamped: size=%d retries=%d", item.Size, item.RetryCount)
	}
	if item.Status != StatusQueued {
		t.Fatalf("unknown status should coerce to queued, got %q", item.Status)
	}
	if item.Progress.Loaded != 100 {
		t.Fatalf("loaded should clamp to total, got %d", item.Progress.Loaded)
	}
	if item.Progress.Percentage != 100 {
		t.Fatalf("expected 100%%, got %d", item.Progress.Percentage)
	}
	if item.Progress.ETA != nil {
		t.Fatal("negative ETA should drop")
	}
}

func TestSanitizeProgressRejectsNonFinite(t *testing.T) {
	nan := math.NaN()
	out := sanitizeProgress(Progress{Loaded: 10, Total: 40, ETA: &nan})
	if out.ETA != nil {
		t.Fatal("NaN ETA should drop")
	}
	if out.Percentage != 25 {
		t.Fatalf("expected 25%%, got %d", out.Percentage)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Uploading "); !ok || status != StatusUploading {
		t.Fatalf("expected normalized match, got %q/%v", status, ok)
	}
	if _, ok := ParseStatus("nonsense"); ok {
		t.Fatal("expected unknown status rejection")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("expected empty rejection")
	}
}

func TestCoerceError(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{errors.New("wrapped"), "wrapped"},
		{"plain", "plain"},
		{42, "42"},
	}
	for _, tc := range cases {
		if got := CoerceError(tc.in); got != tc.want {
			t.Fatalf("CoerceError(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
