// Package execution is the agent's only chain write path. Everything above
// it talks to the Executor interface; whether fills are real or simulated
// is a wiring decision, not a code path.
package execution

import (
	"context"

	"solana-launch-trader/internal/domain"
)

// Executor performs swaps and balance checks against a venue.
type Executor interface {
	// ExecuteSwap fills one swap or fails it. Never ambiguous: an error
	// means no fill happened.
	ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error)

	// WalletBalance returns the spendable SOL balance.
	WalletBalance(ctx context.Context) (float64, error)
}
