package idhash

import "testing"

func TestComputePositionID(t *testing.T) {
	got := ComputePositionID("TokenMint123ABC", "Wallet456DEF", 1700000000000)

	if len(got) != 64 {
		t.Errorf("ComputePositionID() length = %d, want 64", len(got))
	}

	// Verify determinism: same inputs should produce same output
	got2 := ComputePositionID("TokenMint123ABC", "Wallet456DEF", 1700000000000)
	if got != got2 {
		t.Errorf("ComputePositionID() not deterministic: %s != %s", got, got2)
	}
}

func TestComputePositionID_DifferentInputs(t *testing.T) {
	base := ComputePositionID("Mint", "Wallet", 1000)

	// Different mint should produce different hash
	diffMint := ComputePositionID("DifferentMint", "Wallet", 1000)
	if base == diffMint {
		t.Error("Different mint should produce different hash")
	}

	// Different wallet should produce different hash
	diffWallet := ComputePositionID("Mint", "OtherWallet", 1000)
	if base == diffWallet {
		t.Error("Different wallet should produce different hash")
	}

	// Different timestamp should produce different hash
	diffTime := ComputePositionID("Mint", "Wallet", 2000)
	if base == diffTime {
		t.Error("Different created_at should produce different hash")
	}
}

func TestComputePendingID(t *testing.T) {
	got := ComputePendingID("Wallet456DEF", "TokenMint123ABC", 1700000000000)

	if len(got) != 64 {
		t.Errorf("ComputePendingID() length = %d, want 64", len(got))
	}

	got2 := ComputePendingID("Wallet456DEF", "TokenMint123ABC", 1700000000000)
	if got != got2 {
		t.Errorf("ComputePendingID() not deterministic: %s != %s", got, got2)
	}

	// Pending and position IDs for the same tuple must not collide
	pos := ComputePositionID("TokenMint123ABC", "Wallet456DEF", 1700000000000)
	if got == pos {
		t.Error("Pending ID should differ from position ID for the same tuple")
	}
}
