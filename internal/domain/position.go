package domain

import "fmt"

// PositionStatus represents the lifecycle state of a position.
// Transitions: OPEN -> PARTIALLY_EXITED -> CLOSED, OPEN -> CLOSED, and
// PARTIALLY_EXITED -> PARTIALLY_EXITED for further tiers. Nothing leaves
// CLOSED.
type PositionStatus string

const (
	StatusOpen            PositionStatus = "OPEN"
	StatusPartiallyExited PositionStatus = "PARTIALLY_EXITED"
	StatusClosed          PositionStatus = "CLOSED"
)

// String returns the string representation of PositionStatus.
func (s PositionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s PositionStatus) IsValid() bool {
	return s == StatusOpen || s == StatusPartiallyExited || s == StatusClosed
}

// EntrySource represents how a position was opened.
type EntrySource string

const (
	EntrySourceLaunch EntrySource = "launch"
	EntrySourceCopy   EntrySource = "copy"
)

// String returns the string representation of EntrySource.
func (s EntrySource) String() string {
	return string(s)
}

// Exit reason codes. TierHit take-profit exits use TakeProfitReason.
const (
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonTrailingStop = "trailing_stop"
	ExitReasonMaxHoldTime  = "max_hold_time"
	ExitReasonDecay        = "dead_position_decay"
	ExitReasonManual       = "manual_external"
)

// TakeProfitReason returns the exit reason code for a 1-based tier number,
// e.g. "take_profit_tier_1".
func TakeProfitReason(tier int) string {
	return fmt.Sprintf("take_profit_tier_%d", tier)
}

// Position represents one tracked holding of a launched token.
// Corresponds to the positions table in PostgreSQL.
type Position struct {
	PositionID string `json:"positionId"` // PRIMARY KEY, deterministic hash
	Mint       string `json:"mint"`       // token mint address
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`

	Status PositionStatus `json:"status"`

	// Entry
	EntryPrice   float64     `json:"entryPrice"` // SOL per token
	EntrySOL     float64     `json:"entrySol"`   // position size in SOL
	TokensBought float64     `json:"tokensBought"`
	EntryReason  string      `json:"entryReason"` // "+"-joined signal tags
	EntryTxRef   string      `json:"entryTxRef"`
	Source       EntrySource `json:"source"`
	SourceWallet string      `json:"sourceWallet"` // copied wallet, empty for launch entries

	// Live state
	TokensRemaining float64 `json:"tokensRemaining"`
	ProceedsSOL     float64 `json:"proceedsSol"` // cumulative sale proceeds
	PeakPrice       float64 `json:"peakPrice"`   // trailing watermark, only ratchets up
	DecayLevel      int     `json:"decayLevel"`  // stagnation counter
	TierHit         int     `json:"tierHit"`     // take-profit tiers consumed

	// Terminal
	ExitReason string   `json:"exitReason"` // empty until a closing transition sets it
	ExitTxRef  string   `json:"exitTxRef"`
	PnL        *float64 `json:"pnl"`       // realized SOL, nil until terminal
	CreatedAt  int64    `json:"createdAt"` // Unix timestamp in milliseconds
	ClosedAt   *int64   `json:"closedAt"`  // nil until terminal
}

// Terminal reports whether the position has reached CLOSED.
func (p *Position) Terminal() bool {
	return p.Status == StatusClosed
}

// CostBasisRemaining returns the entry SOL still at risk, scaled by the
// fraction of tokens not yet sold. This is the position's contribution to
// total exposure.
func (p *Position) CostBasisRemaining() float64 {
	if p.TokensBought <= 0 {
		return 0
	}
	return p.EntrySOL * (p.TokensRemaining / p.TokensBought)
}

// HoldDurationMs returns how long the position has been held, in
// milliseconds, relative to nowMs.
func (p *Position) HoldDurationMs(nowMs int64) int64 {
	return nowMs - p.CreatedAt
}

// Clone returns a deep copy safe to hand outside the ledger.
func (p *Position) Clone() *Position {
	out := *p
	if p.PnL != nil {
		v := *p.PnL
		out.PnL = &v
	}
	if p.ClosedAt != nil {
		v := *p.ClosedAt
		out.ClosedAt = &v
	}
	return &out
}
