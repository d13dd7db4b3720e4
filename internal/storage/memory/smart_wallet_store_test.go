package memory

import (
	"context"
	"errors"
	"testing"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

func TestSmartWalletStore_InsertAndGet(t *testing.T) {
	store := NewSmartWalletStore()
	ctx := context.Background()

	w := &domain.SmartWallet{
		Address:    "WalletABC",
		Label:      "whale-1",
		WinRate:    0.62,
		TradeCount: 48,
		EnrolledAt: 1000,
	}

	if err := store.Insert(ctx, w); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "WalletABC")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.WinRate != 0.62 {
		t.Errorf("WinRate mismatch: got %f", got.WinRate)
	}
}

func TestSmartWalletStore_Duplicate(t *testing.T) {
	store := NewSmartWalletStore()
	ctx := context.Background()

	w := &domain.SmartWallet{Address: "WalletABC", Label: "whale-1"}
	if err := store.Insert(ctx, w); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, w)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSmartWalletStore_Delete(t *testing.T) {
	store := NewSmartWalletStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.SmartWallet{Address: "WalletABC"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.Delete(ctx, "WalletABC"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := store.GetByAddress(ctx, "WalletABC")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, "WalletABC"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for second delete, got %v", err)
	}
}

func TestSmartWalletStore_ListAllOrdered(t *testing.T) {
	store := NewSmartWalletStore()
	ctx := context.Background()

	wallets := []*domain.SmartWallet{
		{Address: "W2", EnrolledAt: 2000},
		{Address: "W1", EnrolledAt: 1000},
	}
	for _, w := range wallets {
		if err := store.Insert(ctx, w); err != nil {
			t.Fatalf("Insert %s failed: %v", w.Address, err)
		}
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 || all[0].Address != "W1" {
		t.Errorf("Expected W1 first, got %v", all)
	}
}
