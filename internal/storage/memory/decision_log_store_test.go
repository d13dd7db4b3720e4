package memory

import (
	"context"
	"errors"
	"testing"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

func TestDecisionLogStore_InsertAndListRecent(t *testing.T) {
	store := NewDecisionLogStore()
	ctx := context.Background()

	decisions := []*domain.LaunchDecision{
		{Mint: "M1", Score: 40, ShouldBuy: false, EvaluatedAt: 1000},
		{Mint: "M2", Score: 65, ShouldBuy: true, EvaluatedAt: 2000},
		{Mint: "M3", Score: 72, ShouldBuy: true, EvaluatedAt: 3000},
	}
	for _, d := range decisions {
		if err := store.Insert(ctx, d); err != nil {
			t.Fatalf("Insert %s failed: %v", d.Mint, err)
		}
	}

	recent, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Expected 2 decisions, got %d", len(recent))
	}

	// Newest first
	if recent[0].Mint != "M3" || recent[1].Mint != "M2" {
		t.Errorf("Wrong order: got %s, %s", recent[0].Mint, recent[1].Mint)
	}
}

func TestDecisionLogStore_ListRecentBeyondSize(t *testing.T) {
	store := NewDecisionLogStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.LaunchDecision{Mint: "M1"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	recent, err := store.ListRecent(ctx, 100)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("Expected 1 decision, got %d", len(recent))
	}
}

func TestDecisionLogStore_RedFlagsCopied(t *testing.T) {
	store := NewDecisionLogStore()
	ctx := context.Background()

	d := &domain.LaunchDecision{Mint: "M1", RedFlags: []string{"low_mcap"}}
	if err := store.Insert(ctx, d); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	d.RedFlags[0] = "mutated"

	recent, _ := store.ListRecent(ctx, 1)
	if recent[0].RedFlags[0] != "low_mcap" {
		t.Error("Store shares RedFlags backing array with caller")
	}
}

func TestDecisionLogStore_InvalidInput(t *testing.T) {
	store := NewDecisionLogStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if _, err := store.ListRecent(ctx, 0); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for limit 0, got %v", err)
	}
}
