package domain

// TradingStats is the derived performance aggregate, computed on demand
// from the ledger and stores. Never persisted as a source of truth.
type TradingStats struct {
	OpenPositions   int     `json:"openPositions"`
	ClosedPositions int     `json:"closedPositions"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"winRate"`
	TotalPnL        float64 `json:"totalPnl"` // realized SOL
	AvgPnL          float64 `json:"avgPnl"`
	BestTrade       float64 `json:"bestTrade"`
	WorstTrade      float64 `json:"worstTrade"`
	CurrentExposure float64 `json:"currentExposure"` // SOL at risk across open positions
	CopyExposure    float64 `json:"copyExposure"`    // SOL at risk in copy-sourced positions
}
