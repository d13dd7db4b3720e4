package domain

import "time"

// WrappedSOLMint is the mint address of wrapped SOL, the input side of
// every buy and the output side of every sell.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// MarketSnapshot is the point-in-time market view of a tracked mint,
// consumed by exit ticks. Missing fields are zero.
type MarketSnapshot struct {
	Mint       string
	Price      float64 // SOL per token
	Liquidity  float64 // SOL
	Volume24h  float64 // USD
	MarketCap  float64 // USD
	BuyCount   int
	SellCount  int
	Holders    int
	ObservedAt int64 // Unix timestamp in milliseconds
}

// Age returns the snapshot staleness relative to nowMs.
func (s *MarketSnapshot) Age(nowMs int64) time.Duration {
	return time.Duration(nowMs-s.ObservedAt) * time.Millisecond
}

// SwapRequest describes one chain swap the engine wants executed.
type SwapRequest struct {
	InputMint         string
	OutputMint        string
	AmountIn          float64 // input-mint units: SOL for buys, tokens for sells
	SlippageBps       int
	MaxPriceImpactPct float64
}

// SwapResult reports a completed swap.
type SwapResult struct {
	TxRef        string
	FilledAmount float64 // output-mint units received
	ExecPrice    float64 // SOL per token
}
