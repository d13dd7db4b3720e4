// Package market supplies point-in-time market data for tracked mints.
// The agent consumes it behind two small interfaces so the DexScreener
// adapter, the scripted stub, and any future source are interchangeable.
package market

import (
	"context"
	"errors"

	"solana-launch-trader/internal/domain"
)

// ErrNoPairs means the source knows no tradable pool for the mint.
var ErrNoPairs = errors.New("no pairs for mint")

// Provider returns the current market view of one mint. Exit ticks call it
// per open position; errors skip the position, never the tick.
type Provider interface {
	Snapshot(ctx context.Context, mint string) (*domain.MarketSnapshot, error)
}

// LaunchSource yields recently launched tokens for evaluation. One call is
// one polling sweep; the same mint may reappear across sweeps.
type LaunchSource interface {
	Launches(ctx context.Context) ([]*domain.LaunchSnapshot, error)
}
