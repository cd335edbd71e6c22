package storage

import (
	"errors"
	"time"
)

// NullableString maps empty strings to SQL NULL.
func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// NullableTime maps nil times to SQL NULL, otherwise RFC3339Nano text.
func NullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

// NullableFloat maps nil to SQL NULL.
func NullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

// FormatTime renders a timestamp the way every partition stores them.
func FormatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a stored timestamp.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// Placeholders builds a "?,?,?" fragment for IN clauses.
func Placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
