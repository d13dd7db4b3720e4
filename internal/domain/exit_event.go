package domain

// Exit action codes recorded in the exit journal.
const (
	ExitActionFullSell    = "full_sell"
	ExitActionPartialSell = "partial_sell"
	ExitActionDecayBump   = "decay_bump"
)

// ExitEvent records one executed or failed exit action.
// Corresponds to the exit_events table in ClickHouse (append-only).
type ExitEvent struct {
	PositionID  string
	Mint        string
	Reason      string // exit reason code, or "" for decay bumps
	Action      string // full_sell | partial_sell | decay_bump
	Price       float64
	TokensSold  float64
	ProceedsSOL float64
	Success     bool
	Detail      string // failure detail, empty on success
	DecidedAt   int64  // Unix timestamp in milliseconds
}
