package tier

import (
	"errors"
	"strings"
	"syscall"
)

// sqliteFullCode is the SQLITE_FULL primary result code.
const sqliteFullCode = 13

type coder interface {
	Code() int
}

// quotaMessageFragments are substrings seen in capacity failures across the
// storage backends this process touches.
var quotaMessageFragments = []string{
	"quota",
	"disk is full",
	"no space left",
	"file too large",
	"database or disk is full",
}

// IsQuotaExhaustion classifies an error as a storage capacity failure.
// Detection runs multiple strategies because the failure can surface as a
// typed budget error, a driver result code, an OS errno, or only as message
// text from a wrapped cause.
func IsQuotaExhaustion(err error) bool {
	if err == nil {
		return false
	}

	var quotaErr *QuotaError
	if errors.As(err, &quotaErr) {
		return true
	}

	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return true
	}

	var coded coder
	if errors.As(err, &coded) && coded.Code()%256 == sqliteFullCode {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, fragment := range quotaMessageFragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}
