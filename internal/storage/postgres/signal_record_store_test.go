package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/storage"
)

func TestSignalRecordStore_UpsertInsertsAndUpdates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalRecordStore(pool)

	r := &domain.SignalRecord{
		Signal:          domain.SignalBuyPressure,
		Trades:          1,
		Wins:            1,
		TotalPnL:        0.12,
		AvgPnL:          0.12,
		WinRate:         1.0,
		ScoreAdjustment: 1.76,
		UpdatedAt:       1700000000000,
	}

	err := store.Upsert(ctx, r)
	require.NoError(t, err)

	// Upsert again with updated counters
	r.Trades = 2
	r.Losses = 1
	r.TotalPnL = 0.02
	r.AvgPnL = 0.01
	r.WinRate = 0.5
	r.ScoreAdjustment = 0.016
	r.UpdatedAt = 1700000100000

	err = store.Upsert(ctx, r)
	require.NoError(t, err)

	retrieved, err := store.GetBySignal(ctx, domain.SignalBuyPressure)
	require.NoError(t, err)

	assert.Equal(t, 2, retrieved.Trades)
	assert.Equal(t, 1, retrieved.Wins)
	assert.Equal(t, 1, retrieved.Losses)
	assert.InDelta(t, 0.02, retrieved.TotalPnL, 1e-9)
	assert.InDelta(t, 0.5, retrieved.WinRate, 1e-9)
	assert.Equal(t, int64(1700000100000), retrieved.UpdatedAt)
}

func TestSignalRecordStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalRecordStore(pool)

	_, err := store.GetBySignal(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignalRecordStore_ListAllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalRecordStore(pool)

	for _, sig := range []string{domain.SignalVolumeSurge, domain.SignalEarlyWindow, domain.SignalBuyPressure} {
		err := store.Upsert(ctx, &domain.SignalRecord{Signal: sig, Trades: 1})
		require.NoError(t, err)
	}

	records, err := store.ListAll(ctx)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, domain.SignalBuyPressure, records[0].Signal)
	assert.Equal(t, domain.SignalEarlyWindow, records[1].Signal)
	assert.Equal(t, domain.SignalVolumeSurge, records[2].Signal)
}

func TestSignalRecordStore_DeleteAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSignalRecordStore(pool)

	err := store.Upsert(ctx, &domain.SignalRecord{Signal: domain.SignalFeeTraction, Trades: 4})
	require.NoError(t, err)

	err = store.DeleteAll(ctx)
	require.NoError(t, err)

	records, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}
