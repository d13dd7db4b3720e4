package domain

import "time"

// SmartWallet is an enrolled copy-trade source.
// Corresponds to the smart_wallets table in PostgreSQL.
type SmartWallet struct {
	Address    string  // base58, must be an on-curve ed25519 key
	Label      string  // operator-facing name
	WinRate    float64 // historical, supplied at enrollment
	TradeCount int
	EnrolledAt int64 // Unix timestamp in milliseconds
}

// ObservedTrade is one normalized trade event from the smart-money feed.
type ObservedTrade struct {
	Wallet     string
	Action     string // "buy" | "sell"
	Mint       string
	Symbol     string
	AmountSOL  float64 // observed trade size
	Price      float64 // SOL per token, 0 when the feed omits it
	ObservedAt int64   // Unix timestamp in milliseconds
}

// Trade action constants
const (
	TradeActionBuy  = "buy"
	TradeActionSell = "sell"
)

// PendingCopyTrade is a copy entry awaiting operator approval. Ephemeral:
// held in the in-memory store only and resolved by approval, rejection, or
// the expiry sweep.
type PendingCopyTrade struct {
	PendingID    string  `json:"pendingId"`
	Wallet       string  `json:"wallet"`
	WalletLabel  string  `json:"walletLabel"`
	Action       string  `json:"action"`
	Mint         string  `json:"mint"`
	Symbol       string  `json:"symbol"`
	ObservedSOL  float64 `json:"observedSol"`
	SuggestedSOL float64 `json:"suggestedSol"`
	Status       string  `json:"status"`    // pending | approved | rejected | expired
	CreatedAt    int64   `json:"createdAt"` // Unix timestamp in milliseconds
	ExpiresAt    int64   `json:"expiresAt"`
}

// Pending copy trade status constants
const (
	PendingStatusPending  = "pending"
	PendingStatusApproved = "approved"
	PendingStatusRejected = "rejected"
	PendingStatusExpired  = "expired"
)

// CopyTradeConfig governs the copy-trade path. Static per process, unlike
// TradingConfig.
type CopyTradeConfig struct {
	MinWalletWinRate   float64       // reject wallets below this historical win rate
	MaxCopiesPerHour   int           // global sliding-window rate limit
	MinTradeInterval   time.Duration // per-wallet spacing between copies
	LossCooldown       time.Duration // per-wallet pause after a losing copy
	SizeMultiplier     float64       // our size = observed * multiplier
	MaxCopyAmountSOL   float64       // hard cap per copy
	MaxCopyExposureSOL float64       // cap on summed copy-sourced exposure
	CopyBuysOnly       bool
	RequireApproval    bool          // queue copies for operator approval
	PendingTTL         time.Duration // approval window before auto-reject
}

// DefaultCopyTradeConfig returns the baseline copy-trade settings.
func DefaultCopyTradeConfig() CopyTradeConfig {
	return CopyTradeConfig{
		MinWalletWinRate:   0.55,
		MaxCopiesPerHour:   6,
		MinTradeInterval:   60 * time.Second,
		LossCooldown:       5 * time.Minute,
		SizeMultiplier:     0.5,
		MaxCopyAmountSOL:   0.5,
		MaxCopyExposureSOL: 1.5,
		CopyBuysOnly:       true,
		RequireApproval:    false,
		PendingTTL:         5 * time.Minute,
	}
}

// Validate checks the copy-trade settings.
func (c *CopyTradeConfig) Validate() error {
	if c.MinWalletWinRate < 0 || c.MinWalletWinRate > 1 {
		return &ValidationError{Field: "minWalletWinRate", Reason: "must be within [0, 1]"}
	}
	if c.MaxCopiesPerHour <= 0 {
		return &ValidationError{Field: "maxCopiesPerHour", Reason: "must be positive"}
	}
	if c.MinTradeInterval < 0 {
		return &ValidationError{Field: "minTradeInterval", Reason: "must be non-negative"}
	}
	if c.LossCooldown < 0 {
		return &ValidationError{Field: "lossCooldown", Reason: "must be non-negative"}
	}
	if c.SizeMultiplier <= 0 {
		return &ValidationError{Field: "sizeMultiplier", Reason: "must be positive"}
	}
	if c.MaxCopyAmountSOL <= 0 {
		return &ValidationError{Field: "maxCopyAmountSOL", Reason: "must be positive"}
	}
	if c.MaxCopyExposureSOL <= 0 {
		return &ValidationError{Field: "maxCopyExposureSOL", Reason: "must be positive"}
	}
	if c.PendingTTL <= 0 {
		return &ValidationError{Field: "pendingTTL", Reason: "must be positive"}
	}
	return nil
}
