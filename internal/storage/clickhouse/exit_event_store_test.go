package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-launch-trader/internal/domain"
)

func TestExitEventStore_Insert(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExitEventStore(conn)
	ctx := context.Background()

	e := &domain.ExitEvent{
		PositionID:  "pos-001",
		Mint:        "MintAAA",
		Reason:      domain.ExitReasonStopLoss,
		Action:      domain.ExitActionFullSell,
		Price:       0.00008,
		TokensSold:  2500,
		ProceedsSOL: 0.2,
		Success:     true,
		DecidedAt:   1700000000000,
	}

	err := store.Insert(ctx, e)
	require.NoError(t, err)

	got, err := store.ListByPosition(ctx, "pos-001")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "pos-001", got[0].PositionID)
	assert.Equal(t, "MintAAA", got[0].Mint)
	assert.Equal(t, domain.ExitReasonStopLoss, got[0].Reason)
	assert.Equal(t, domain.ExitActionFullSell, got[0].Action)
	assert.InDelta(t, 0.00008, got[0].Price, 1e-12)
	assert.InDelta(t, 2500.0, got[0].TokensSold, 1e-9)
	assert.InDelta(t, 0.2, got[0].ProceedsSOL, 1e-9)
	assert.True(t, got[0].Success)
	assert.Empty(t, got[0].Detail)
	assert.Equal(t, int64(1700000000000), got[0].DecidedAt)
}

func TestExitEventStore_Insert_FailedAttempt(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExitEventStore(conn)
	ctx := context.Background()

	e := &domain.ExitEvent{
		PositionID: "pos-002",
		Mint:       "MintBBB",
		Reason:     domain.ExitReasonTrailingStop,
		Action:     domain.ExitActionFullSell,
		Price:      0.00015,
		Success:    false,
		Detail:     "swap failed: slippage exceeded",
		DecidedAt:  1700000000000,
	}

	err := store.Insert(ctx, e)
	require.NoError(t, err)

	got, err := store.ListByPosition(ctx, "pos-002")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.False(t, got[0].Success)
	assert.Equal(t, "swap failed: slippage exceeded", got[0].Detail)
	assert.Zero(t, got[0].TokensSold)
}

func TestExitEventStore_InsertBulk(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExitEventStore(conn)
	ctx := context.Background()

	// Empty batch is a no-op
	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	events := []*domain.ExitEvent{
		{PositionID: "pos-001", Mint: "MintAAA", Action: domain.ExitActionDecayBump, DecidedAt: 1700000001000},
		{PositionID: "pos-001", Mint: "MintAAA", Reason: domain.TakeProfitReason(1), Action: domain.ExitActionPartialSell, TokensSold: 1250, Success: true, DecidedAt: 1700000002000},
		{PositionID: "pos-002", Mint: "MintBBB", Reason: domain.ExitReasonMaxHoldTime, Action: domain.ExitActionFullSell, TokensSold: 900, Success: true, DecidedAt: 1700000003000},
	}

	err = store.InsertBulk(ctx, events)
	require.NoError(t, err)

	// ListByPosition filters to one position
	got, err := store.ListByPosition(ctx, "pos-001")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.ListByPosition(ctx, "pos-002")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExitEventStore_ListByPosition_Ordering(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExitEventStore(conn)
	ctx := context.Background()

	events := []*domain.ExitEvent{
		{PositionID: "pos-001", Mint: "MintAAA", Reason: domain.TakeProfitReason(2), Action: domain.ExitActionPartialSell, DecidedAt: 1700000002000},
		{PositionID: "pos-001", Mint: "MintAAA", Reason: domain.TakeProfitReason(1), Action: domain.ExitActionPartialSell, DecidedAt: 1700000001000},
		{PositionID: "pos-001", Mint: "MintAAA", Reason: domain.ExitReasonTrailingStop, Action: domain.ExitActionFullSell, DecidedAt: 1700000003000},
	}

	err := store.InsertBulk(ctx, events)
	require.NoError(t, err)

	// Oldest first
	got, err := store.ListByPosition(ctx, "pos-001")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.TakeProfitReason(1), got[0].Reason)
	assert.Equal(t, domain.TakeProfitReason(2), got[1].Reason)
	assert.Equal(t, domain.ExitReasonTrailingStop, got[2].Reason)
}

func TestExitEventStore_ListRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewExitEventStore(conn)
	ctx := context.Background()

	events := []*domain.ExitEvent{
		{PositionID: "pos-001", Mint: "MintAAA", Action: domain.ExitActionDecayBump, DecidedAt: 1700000001000},
		{PositionID: "pos-002", Mint: "MintBBB", Action: domain.ExitActionDecayBump, DecidedAt: 1700000002000},
		{PositionID: "pos-003", Mint: "MintCCC", Action: domain.ExitActionDecayBump, DecidedAt: 1700000003000},
	}

	err := store.InsertBulk(ctx, events)
	require.NoError(t, err)

	// Newest first, limit honored
	got, err := store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pos-003", got[0].PositionID)
	assert.Equal(t, "pos-002", got[1].PositionID)
}
