package queue

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPayload computes the content hash used for duplicate detection.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
