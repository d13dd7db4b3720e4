package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateWalletAddress checks that addr is a base58-encoded 32-byte ed25519
// public key on the curve. Copy-trade sources must be real signing keys, so
// program-derived (off-curve) addresses are rejected.
func ValidateWalletAddress(addr string) error {
	raw, err := decodeAddress(addr)
	if err != nil {
		return err
	}
	if !isOnCurve(raw) {
		return fmt.Errorf("address %s is not an ed25519 public key", addr)
	}
	return nil
}

// ValidateMintAddress checks that addr is a base58-encoded 32-byte account
// address. Mints are often program-derived, so no curve check applies.
func ValidateMintAddress(addr string) error {
	_, err := decodeAddress(addr)
	return err
}

func decodeAddress(addr string) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %s: %w", addr, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("address %s: %d bytes, want 32", addr, len(raw))
	}
	return raw, nil
}

// isOnCurve checks if a 32-byte value decodes to a point on the ed25519
// curve.
func isOnCurve(data []byte) bool {
	if len(data) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(data)
	return err == nil
}
