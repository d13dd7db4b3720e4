package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePendingID computes a deterministic pending copy-trade ID using
// SHA256.
// Formula: SHA256(wallet|mint|observed_at)
// Returns hex-encoded hash (64 characters).
func ComputePendingID(wallet string, mint string, observedAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", wallet, mint, observedAt)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
