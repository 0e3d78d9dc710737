// Package idhash derives deterministic identifiers from event content.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event id using SHA256.
// Formula: SHA256(type|pool_id|timestamp_ms|payload)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(eventType, poolID string, timestampMs int64, payload []byte) string {
	header := fmt.Sprintf("%s|%s|%d|", eventType, poolID, timestampMs)

	h := sha256.New()
	h.Write([]byte(header))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
