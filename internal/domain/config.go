package domain

// TradingConfig holds every tunable the engine consults at runtime.
// The engine publishes the live config behind an atomic pointer; updates
// arrive as a ConfigPatch, are validated as a whole, and swap in atomically.
// A config is never partially applied.
type TradingConfig struct {
	// Position sizing (SOL)
	MinPositionSize float64 `json:"minPositionSize"`
	MaxPositionSize float64 `json:"maxPositionSize"`

	// Exposure ceilings
	MaxTotalExposure float64 `json:"maxTotalExposure"` // SOL across all open positions
	MaxOpenPositions int     `json:"maxOpenPositions"`

	// Exit policy
	StopLossPercent          float64   `json:"stopLossPercent"`          // full exit below entry by this %
	TrailingStopPercent      float64   `json:"trailingStopPercent"`      // armed once price exceeds entry by this %
	TakeProfitTiers          []float64 `json:"takeProfitTiers"`          // price multipliers, strictly increasing, each > 1
	PartialSellPercent       float64   `json:"partialSellPercent"`       // % of remaining tokens sold per tier
	DeadPositionDecayPercent float64   `json:"deadPositionDecayPercent"` // stop tightening per decay level
	MaxHoldTimeMinutes       int       `json:"maxHoldTimeMinutes"`

	// Entry filters
	MinLiquidity          float64 `json:"minLiquidity"`    // SOL
	MinVolumeToHold       float64 `json:"minVolumeToHold"` // 24h volume floor for held positions
	MinBuySellRatio       float64 `json:"minBuySellRatio"`
	SlippageBudgetBps     int     `json:"slippageBudgetBps"`
	MaxPriceImpactPercent float64 `json:"maxPriceImpactPercent"`
	MinLaunchAgeSeconds   int     `json:"minLaunchAgeSeconds"`
	MaxLaunchAgeSeconds   int     `json:"maxLaunchAgeSeconds"`
	MinMarketCap          float64 `json:"minMarketCap"` // USD
}

// DefaultTradingConfig returns the baseline config the agent boots with.
func DefaultTradingConfig() *TradingConfig {
	return &TradingConfig{
		MinPositionSize:          0.05,
		MaxPositionSize:          0.5,
		MaxTotalExposure:         2.5,
		MaxOpenPositions:         5,
		StopLossPercent:          20,
		TrailingStopPercent:      15,
		TakeProfitTiers:          []float64{1.5, 2.0, 3.0},
		PartialSellPercent:       50,
		DeadPositionDecayPercent: 5,
		MaxHoldTimeMinutes:       240,
		MinLiquidity:             1000,
		MinVolumeToHold:          500,
		MinBuySellRatio:          0.5,
		SlippageBudgetBps:        250,
		MaxPriceImpactPercent:    10,
		MinLaunchAgeSeconds:      60,
		MaxLaunchAgeSeconds:      900,
		MinMarketCap:             50000,
	}
}

// Validate checks cross-field invariants. A config that fails validation
// must never be installed.
func (c *TradingConfig) Validate() error {
	if c.MinPositionSize <= 0 {
		return &ValidationError{Field: "minPositionSize", Reason: "must be positive"}
	}
	if c.MaxPositionSize < c.MinPositionSize {
		return &ValidationError{Field: "maxPositionSize", Reason: "must be >= minPositionSize"}
	}
	if c.MaxTotalExposure <= 0 {
		return &ValidationError{Field: "maxTotalExposure", Reason: "must be positive"}
	}
	if c.MaxOpenPositions <= 0 {
		return &ValidationError{Field: "maxOpenPositions", Reason: "must be positive"}
	}
	if c.StopLossPercent < 0 || c.StopLossPercent > 100 {
		return &ValidationError{Field: "stopLossPercent", Reason: "must be within [0, 100]"}
	}
	if c.TrailingStopPercent < 0 || c.TrailingStopPercent > 100 {
		return &ValidationError{Field: "trailingStopPercent", Reason: "must be within [0, 100]"}
	}
	for i, tier := range c.TakeProfitTiers {
		if tier <= 1 {
			return &ValidationError{Field: "takeProfitTiers", Reason: "tiers must be > 1"}
		}
		if i > 0 && tier <= c.TakeProfitTiers[i-1] {
			return &ValidationError{Field: "takeProfitTiers", Reason: "tiers must be strictly increasing"}
		}
	}
	if c.PartialSellPercent <= 0 || c.PartialSellPercent > 100 {
		return &ValidationError{Field: "partialSellPercent", Reason: "must be within (0, 100]"}
	}
	if c.DeadPositionDecayPercent < 0 {
		return &ValidationError{Field: "deadPositionDecayPercent", Reason: "must be non-negative"}
	}
	if c.MaxHoldTimeMinutes <= 0 {
		return &ValidationError{Field: "maxHoldTimeMinutes", Reason: "must be positive"}
	}
	if c.MinLiquidity < 0 {
		return &ValidationError{Field: "minLiquidity", Reason: "must be non-negative"}
	}
	if c.MinVolumeToHold < 0 {
		return &ValidationError{Field: "minVolumeToHold", Reason: "must be non-negative"}
	}
	if c.MinBuySellRatio < 0 || c.MinBuySellRatio > 1 {
		return &ValidationError{Field: "minBuySellRatio", Reason: "must be within [0, 1]"}
	}
	if c.SlippageBudgetBps < 0 || c.SlippageBudgetBps > 10000 {
		return &ValidationError{Field: "slippageBudgetBps", Reason: "must be within [0, 10000]"}
	}
	if c.MaxPriceImpactPercent < 0 || c.MaxPriceImpactPercent > 100 {
		return &ValidationError{Field: "maxPriceImpactPercent", Reason: "must be within [0, 100]"}
	}
	if c.MinLaunchAgeSeconds < 0 {
		return &ValidationError{Field: "minLaunchAgeSeconds", Reason: "must be non-negative"}
	}
	if c.MaxLaunchAgeSeconds <= c.MinLaunchAgeSeconds {
		return &ValidationError{Field: "maxLaunchAgeSeconds", Reason: "must be > minLaunchAgeSeconds"}
	}
	if c.MinMarketCap < 0 {
		return &ValidationError{Field: "minMarketCap", Reason: "must be non-negative"}
	}
	return nil
}

// Clone returns a deep copy. TakeProfitTiers is the only reference field.
func (c *TradingConfig) Clone() *TradingConfig {
	out := *c
	out.TakeProfitTiers = append([]float64(nil), c.TakeProfitTiers...)
	return &out
}

// ConfigPatch carries a partial config update. Only non-nil fields are
// applied; the patched result is validated as a whole before it replaces
// the live config, so an invalid patch changes nothing.
type ConfigPatch struct {
	MinPositionSize          *float64   `json:"minPositionSize"`
	MaxPositionSize          *float64   `json:"maxPositionSize"`
	MaxTotalExposure         *float64   `json:"maxTotalExposure"`
	MaxOpenPositions         *int       `json:"maxOpenPositions"`
	StopLossPercent          *float64   `json:"stopLossPercent"`
	TrailingStopPercent      *float64   `json:"trailingStopPercent"`
	TakeProfitTiers          *[]float64 `json:"takeProfitTiers"`
	PartialSellPercent       *float64   `json:"partialSellPercent"`
	DeadPositionDecayPercent *float64   `json:"deadPositionDecayPercent"`
	MaxHoldTimeMinutes       *int       `json:"maxHoldTimeMinutes"`
	MinLiquidity             *float64   `json:"minLiquidity"`
	MinVolumeToHold          *float64   `json:"minVolumeToHold"`
	MinBuySellRatio          *float64   `json:"minBuySellRatio"`
	SlippageBudgetBps        *int       `json:"slippageBudgetBps"`
	MaxPriceImpactPercent    *float64   `json:"maxPriceImpactPercent"`
	MinLaunchAgeSeconds      *int       `json:"minLaunchAgeSeconds"`
	MaxLaunchAgeSeconds      *int       `json:"maxLaunchAgeSeconds"`
	MinMarketCap             *float64   `json:"minMarketCap"`
}

// Apply returns a copy of base with every non-nil patch field applied and
// the result validated. The base config is never mutated.
func (p *ConfigPatch) Apply(base *TradingConfig) (*TradingConfig, error) {
	next := base.Clone()
	if p.MinPositionSize != nil {
		next.MinPositionSize = *p.MinPositionSize
	}
	if p.MaxPositionSize != nil {
		next.MaxPositionSize = *p.MaxPositionSize
	}
	if p.MaxTotalExposure != nil {
		next.MaxTotalExposure = *p.MaxTotalExposure
	}
	if p.MaxOpenPositions != nil {
		next.MaxOpenPositions = *p.MaxOpenPositions
	}
	if p.StopLossPercent != nil {
		next.StopLossPercent = *p.StopLossPercent
	}
	if p.TrailingStopPercent != nil {
		next.TrailingStopPercent = *p.TrailingStopPercent
	}
	if p.TakeProfitTiers != nil {
		next.TakeProfitTiers = append([]float64(nil), (*p.TakeProfitTiers)...)
	}
	if p.PartialSellPercent != nil {
		next.PartialSellPercent = *p.PartialSellPercent
	}
	if p.DeadPositionDecayPercent != nil {
		next.DeadPositionDecayPercent = *p.DeadPositionDecayPercent
	}
	if p.MaxHoldTimeMinutes != nil {
		next.MaxHoldTimeMinutes = *p.MaxHoldTimeMinutes
	}
	if p.MinLiquidity != nil {
		next.MinLiquidity = *p.MinLiquidity
	}
	if p.MinVolumeToHold != nil {
		next.MinVolumeToHold = *p.MinVolumeToHold
	}
	if p.MinBuySellRatio != nil {
		next.MinBuySellRatio = *p.MinBuySellRatio
	}
	if p.SlippageBudgetBps != nil {
		next.SlippageBudgetBps = *p.SlippageBudgetBps
	}
	if p.MaxPriceImpactPercent != nil {
		next.MaxPriceImpactPercent = *p.MaxPriceImpactPercent
	}
	if p.MinLaunchAgeSeconds != nil {
		next.MinLaunchAgeSeconds = *p.MinLaunchAgeSeconds
	}
	if p.MaxLaunchAgeSeconds != nil {
		next.MaxLaunchAgeSeconds = *p.MaxLaunchAgeSeconds
	}
	if p.MinMarketCap != nil {
		next.MinMarketCap = *p.MinMarketCap
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
