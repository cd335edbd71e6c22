package tier

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

type codedError struct{ code int }

func (e codedError) Error() string { return "constraint failed" }
func (e codedError) Code() int     { return e.code }

func TestIsQuotaExhaustion(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed budget error", &QuotaError{Path: "catalog.json", Limit: 10, Attempted: 20}, true},
		{"wrapped budget error", fmt.Errorf("save: %w", &QuotaError{}), true},
		{"enospc", syscall.ENOSPC, true},
		{"wrapped enospc", fmt.Errorf("write: %w", syscall.ENOSPC), true},
		{"edquot", syscall.EDQUOT, true},
		{"driver full code", codedError{code: 13}, true},
		{"driver extended full code", codedError{code: 13 + 256}, true},
		{"driver busy code", codedError{code: 5}, false},
		{"message quota", errors.New("DOMException: exceeded the quota"), true},
		{"message disk full", errors.New("database or disk is full"), true},
		{"message no space", errors.New("no space left on device"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaExhaustion(tc.err); got != tc.want {
			t.Fatalf("%s: IsQuotaExhaustion(%v) = %v, want %v", tc.name, tc.err, got, tc.want)
		}
	}
}

func TestFileStoreBudget(t *testing.T) {
	store := NewFileStore(t.TempDir()+"/catalog.json", 16)
	err := store.Write([]Entry{{ID: "a", Payload: []byte(`"0123456789abcdef"`)}})
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if quotaErr.Limit != 16 || quotaErr.Attempted <= 16 {
		t.Fatalf("unexpected budget accounting: %#v", quotaErr)
	}

	// A failed write must not leave partial data behind.
	if store.Exists() {
		t.Fatal("rejected write should not create the file")
	}
}
