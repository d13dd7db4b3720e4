package execution

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/market"
)

// ErrInjectedFailure marks a fill rejected by the simulator's failure rate.
var ErrInjectedFailure = errors.New("injected swap failure")

// Simulated fills swaps against live market snapshots, charging random
// adverse slippage within the request's budget. Paper trading and dry runs
// use it behind the Executor interface.
type Simulated struct {
	provider market.Provider
	logger   *zap.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	balance     float64
	failureRate float64
	seq         uint64
}

// SimulatedOptions contains configuration for creating a Simulated executor.
type SimulatedOptions struct {
	Provider           market.Provider
	StartingBalanceSOL float64
	FailureRate        float64 // probability in [0, 1) that one swap fails
	Seed               int64   // rng seed, fixed seeds reproduce runs
	Logger             *zap.Logger
}

// NewSimulated creates a simulated executor.
func NewSimulated(opts SimulatedOptions) *Simulated {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		provider:    opts.Provider,
		logger:      logger,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		balance:     opts.StartingBalanceSOL,
		failureRate: opts.FailureRate,
	}
}

// ExecuteSwap fills the swap at the provider's current price plus adverse
// slippage drawn uniformly within the budget. Swaps failing the price
// impact check, the balance check, or the injected failure roll return an
// ExecutionError and change nothing.
func (s *Simulated) ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.SwapResult, error) {
	if req.AmountIn <= 0 {
		return domain.SwapResult{}, swapErr(fmt.Errorf("amount in must be positive, got %v", req.AmountIn))
	}

	buy := req.InputMint == domain.WrappedSOLMint
	sell := req.OutputMint == domain.WrappedSOLMint
	if buy == sell {
		return domain.SwapResult{}, swapErr(fmt.Errorf("exactly one swap leg must be SOL (in %s, out %s)", req.InputMint, req.OutputMint))
	}

	tokenMint := req.OutputMint
	if sell {
		tokenMint = req.InputMint
	}

	snap, err := s.provider.Snapshot(ctx, tokenMint)
	if err != nil {
		return domain.SwapResult{}, swapErr(fmt.Errorf("price lookup for %s: %w", tokenMint, err))
	}
	if snap.Price <= 0 {
		return domain.SwapResult{}, swapErr(fmt.Errorf("no usable price for %s", tokenMint))
	}

	amountSOL := req.AmountIn
	if sell {
		amountSOL = req.AmountIn * snap.Price
	}

	if req.MaxPriceImpactPct > 0 {
		if snap.Liquidity <= 0 {
			return domain.SwapResult{}, swapErr(fmt.Errorf("unknown pool depth for %s", tokenMint))
		}
		impact := amountSOL / snap.Liquidity * 100
		if impact > req.MaxPriceImpactPct {
			return domain.SwapResult{}, swapErr(fmt.Errorf("price impact %.2f%% exceeds budget %.2f%%", impact, req.MaxPriceImpactPct))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failureRate > 0 && s.rng.Float64() < s.failureRate {
		return domain.SwapResult{}, swapErr(ErrInjectedFailure)
	}

	// Adverse fill within the slippage budget: buys fill high, sells low.
	slip := s.rng.Float64() * float64(req.SlippageBps) / 10000
	execPrice := snap.Price * (1 + slip)
	if sell {
		execPrice = snap.Price * (1 - slip)
	}

	var filled float64
	if buy {
		if req.AmountIn > s.balance {
			return domain.SwapResult{}, swapErr(fmt.Errorf("insufficient balance: need %v SOL, have %v", req.AmountIn, s.balance))
		}
		s.balance -= req.AmountIn
		filled = req.AmountIn / execPrice
	} else {
		filled = req.AmountIn * execPrice
		s.balance += filled
	}

	s.seq++
	res := domain.SwapResult{
		TxRef:        fmt.Sprintf("sim-%d", s.seq),
		FilledAmount: filled,
		ExecPrice:    execPrice,
	}

	s.logger.Debug("simulated swap filled",
		zap.String("mint", tokenMint),
		zap.Bool("buy", buy),
		zap.Float64("amount_in", req.AmountIn),
		zap.Float64("exec_price", execPrice),
		zap.Float64("filled", filled),
		zap.String("tx_ref", res.TxRef))
	return res, nil
}

// WalletBalance returns the paper wallet's SOL balance.
func (s *Simulated) WalletBalance(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func swapErr(err error) error {
	return &domain.ExecutionError{Stage: "swap", Err: err}
}

var _ Executor = (*Simulated)(nil)
