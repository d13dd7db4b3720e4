package memory

import (
	"context"
	"testing"

	"solana-launch-trader/internal/domain"
)

func TestExitEventStore_InsertAndListByPosition(t *testing.T) {
	store := NewExitEventStore()
	ctx := context.Background()

	events := []*domain.ExitEvent{
		{PositionID: "p1", Action: domain.ExitActionDecayBump, DecidedAt: 1000},
		{PositionID: "p2", Action: domain.ExitActionFullSell, Reason: domain.ExitReasonStopLoss, DecidedAt: 2000},
		{PositionID: "p1", Action: domain.ExitActionPartialSell, Reason: domain.TakeProfitReason(1), DecidedAt: 3000},
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	p1Events, err := store.ListByPosition(ctx, "p1")
	if err != nil {
		t.Fatalf("ListByPosition failed: %v", err)
	}
	if len(p1Events) != 2 {
		t.Fatalf("Expected 2 events for p1, got %d", len(p1Events))
	}
	if p1Events[1].Reason != "take_profit_tier_1" {
		t.Errorf("Wrong reason: got %s", p1Events[1].Reason)
	}
}

func TestExitEventStore_ListRecent(t *testing.T) {
	store := NewExitEventStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.ExitEvent{
		{PositionID: "p1", DecidedAt: 1000},
		{PositionID: "p2", DecidedAt: 2000},
	}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	recent, err := store.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 1 || recent[0].PositionID != "p2" {
		t.Errorf("Expected newest event p2, got %v", recent)
	}
}
