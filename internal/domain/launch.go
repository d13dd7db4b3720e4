package domain

// LaunchSnapshot captures the market state of a newly launched token at
// evaluation time. Produced by a launch source; consumed by the evaluator.
type LaunchSnapshot struct {
	Mint   string
	Symbol string
	Name   string

	AgeSeconds    int64   // since pool creation
	MarketCap     float64 // USD
	Liquidity     float64 // SOL
	Volume24h     float64 // USD
	BuyCount      int     // 24h buy transactions
	SellCount     int     // 24h sell transactions
	Holders       int
	FeeRevenueSOL float64 // lifetime creator fee revenue
	ObservedAt    int64   // Unix timestamp in milliseconds
}

// BuySellRatio returns buys/(buys+sells), or 0.5 when there are no
// transactions to judge by.
func (l *LaunchSnapshot) BuySellRatio() float64 {
	total := l.BuyCount + l.SellCount
	if total == 0 {
		return 0.5
	}
	return float64(l.BuyCount) / float64(total)
}

// Entry signal tags. The bounded vocabulary: every position's EntryReason
// is a "+"-joined subset of these.
const (
	SignalHighLiquidity = "high_liquidity"
	SignalVolumeSurge   = "volume_surge"
	SignalBuyPressure   = "buy_pressure"
	SignalHolderGrowth  = "holder_growth"
	SignalFeeTraction   = "fee_traction"
	SignalEarlyWindow   = "early_window"
	SignalSmartMoney    = "smart_money_copy"
)

// Red flag codes set by the evaluator's hard filters.
const (
	RedFlagTooNew       = "too_new"
	RedFlagTooOld       = "too_old"
	RedFlagLowLiquidity = "low_liquidity"
	RedFlagLowMarketCap = "low_mcap"
)

// LaunchDecision records one evaluator verdict.
// Corresponds to the decision_log table in ClickHouse (append-only).
type LaunchDecision struct {
	Mint         string
	Symbol       string
	Source       EntrySource
	Score        float64  // final clamped score [0, 100]
	RedFlags     []string // empty when all hard filters passed
	EntryReason  string   // "+"-joined signal tags
	ShouldBuy    bool
	SuggestedSOL float64
	EvaluatedAt  int64 // Unix timestamp in milliseconds
}
