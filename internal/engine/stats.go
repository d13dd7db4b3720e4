package engine

import (
	"context"
	"fmt"
	"math"

	"solana-launch-trader/internal/domain"
)

// Stats computes the performance aggregate from the position store and the
// live exposure counters. Derived on demand, never persisted.
func (e *Engine) Stats(ctx context.Context) (*domain.TradingStats, error) {
	all, err := e.positions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	exp, err := e.ledger.Exposure(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.TradingStats{
		OpenPositions:   exp.OpenPositions,
		CurrentExposure: exp.TotalSOL,
		CopyExposure:    exp.CopySOL,
	}
	for _, p := range all {
		if !p.Terminal() || p.PnL == nil {
			continue
		}
		pnl := *p.PnL
		if stats.ClosedPositions == 0 {
			stats.BestTrade, stats.WorstTrade = pnl, pnl
		} else {
			stats.BestTrade = math.Max(stats.BestTrade, pnl)
			stats.WorstTrade = math.Min(stats.WorstTrade, pnl)
		}
		stats.ClosedPositions++
		stats.TotalPnL += pnl
		if pnl > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	if stats.ClosedPositions > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.ClosedPositions)
		stats.AvgPnL = stats.TotalPnL / float64(stats.ClosedPositions)
	}
	return stats, nil
}

// OpenPositions lists non-terminal positions, oldest first.
func (e *Engine) OpenPositions(ctx context.Context) ([]*domain.Position, error) {
	return e.ledger.ListOpen(ctx)
}

// AllPositions lists every position ever recorded, oldest first.
func (e *Engine) AllPositions(ctx context.Context) ([]*domain.Position, error) {
	return e.positions.ListAll(ctx)
}
