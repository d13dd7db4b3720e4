package badger

import (
	"context"
	"errors"
	"testing"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

func TestSignalRecordStore_UpsertAndGet(t *testing.T) {
	store := NewSignalRecordStore(setupTestDB(t))
	ctx := context.Background()

	r := &domain.SignalRecord{
		Signal:  domain.SignalBuyPressure,
		Trades:  4,
		Wins:    3,
		Losses:  1,
		WinRate: 0.75,
	}

	if err := store.Upsert(ctx, r); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetBySignal(ctx, domain.SignalBuyPressure)
	if err != nil {
		t.Fatalf("GetBySignal failed: %v", err)
	}
	if got.Trades != 4 || got.WinRate != 0.75 {
		t.Errorf("Record mismatch: got %+v", got)
	}

	// Upsert replaces
	r.Trades = 5
	r.Wins = 4
	r.WinRate = 0.8
	if err := store.Upsert(ctx, r); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err = store.GetBySignal(ctx, domain.SignalBuyPressure)
	if err != nil {
		t.Fatalf("GetBySignal failed: %v", err)
	}
	if got.Trades != 5 {
		t.Errorf("Expected 5 trades after replace, got %d", got.Trades)
	}
}

func TestSignalRecordStore_GetNotFound(t *testing.T) {
	store := NewSignalRecordStore(setupTestDB(t))
	ctx := context.Background()

	_, err := store.GetBySignal(ctx, "unknown_signal")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSignalRecordStore_ListAllSorted(t *testing.T) {
	store := NewSignalRecordStore(setupTestDB(t))
	ctx := context.Background()

	for _, sig := range []string{domain.SignalVolumeSurge, domain.SignalBuyPressure, domain.SignalEarlyWindow} {
		if err := store.Upsert(ctx, &domain.SignalRecord{Signal: sig, Trades: 1}); err != nil {
			t.Fatalf("Upsert %s failed: %v", sig, err)
		}
	}

	got, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}

	// Ordered by signal ASC
	want := []string{domain.SignalBuyPressure, domain.SignalEarlyWindow, domain.SignalVolumeSurge}
	for i, w := range want {
		if got[i].Signal != w {
			t.Errorf("Position %d: got %s, want %s", i, got[i].Signal, w)
		}
	}
}

func TestSignalRecordStore_DeleteAll(t *testing.T) {
	db := setupTestDB(t)
	store := NewSignalRecordStore(db)
	ctx := context.Background()

	for _, sig := range []string{domain.SignalHighLiquidity, domain.SignalFeeTraction} {
		if err := store.Upsert(ctx, &domain.SignalRecord{Signal: sig, Trades: 2}); err != nil {
			t.Fatalf("Upsert %s failed: %v", sig, err)
		}
	}

	if err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	got, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty store after DeleteAll, got %d records", len(got))
	}

	// DeleteAll leaves other namespaces intact
	positions := NewPositionStore(db)
	p := &domain.Position{PositionID: "pos1", Mint: "MintA", Status: domain.StatusOpen}
	if err := positions.Insert(ctx, p); err != nil {
		t.Fatalf("Insert position failed: %v", err)
	}
	if err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("Second DeleteAll failed: %v", err)
	}
	if _, err := positions.GetByID(ctx, "pos1"); err != nil {
		t.Errorf("Position deleted by signal DeleteAll: %v", err)
	}
}
