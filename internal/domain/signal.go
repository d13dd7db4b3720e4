package domain

// SignalRecord tracks realized performance of one entry-signal tag.
// Corresponds to the signal_records table in PostgreSQL.
type SignalRecord struct {
	Signal          string  `json:"signal"` // tag from the bounded vocabulary
	Trades          int     `json:"trades"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	TotalPnL        float64 `json:"totalPnl"` // cumulative realized SOL
	AvgPnL          float64 `json:"avgPnl"`
	WinRate         float64 `json:"winRate"`         // wins / trades
	ScoreAdjustment float64 `json:"scoreAdjustment"` // bounded [-10, +10], added by the evaluator
	UpdatedAt       int64   `json:"updatedAt"`       // Unix timestamp in milliseconds
}
