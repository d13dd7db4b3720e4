// Package exitpolicy decides and executes exits for open positions on a
// tick cadence. Rule evaluation is a pure function; the controller wraps
// it with market data, swap execution, and retry bookkeeping.
package exitpolicy

import (
	"solana-launch-trader/internal/domain"
)

// Action is what one rule evaluation asks the controller to do.
type Action int

const (
	ActionNone Action = iota
	ActionSell
	ActionDecayBump
)

// Decision is the outcome of evaluating the exit rules against one
// position and one market snapshot.
type Decision struct {
	Action       Action
	Reason       string
	TokensToSell float64
	Terminal     bool
	TierConsumed bool
}

// Evaluate applies the exit rules in priority order: stop loss, decayed
// stop, trailing stop, take-profit tier, max hold time. The first match
// wins; the stop loss therefore always beats a same-tick trailing stop or
// tier hit. The volume floor never exits, it only bumps the decay counter,
// and only when no exit fired.
func Evaluate(p *domain.Position, snap *domain.MarketSnapshot, cfg *domain.TradingConfig, nowMs int64) Decision {
	price := snap.Price

	if price <= p.EntryPrice*(1-cfg.StopLossPercent/100) {
		return fullSell(p, domain.ExitReasonStopLoss)
	}

	if p.DecayLevel > 0 {
		effective := cfg.StopLossPercent - float64(p.DecayLevel)*cfg.DeadPositionDecayPercent
		if effective < 0 {
			effective = 0
		}
		if price <= p.EntryPrice*(1-effective/100) {
			return fullSell(p, domain.ExitReasonDecay)
		}
	}

	armed := p.PeakPrice >= p.EntryPrice*(1+cfg.TrailingStopPercent/100)
	if armed && price <= p.PeakPrice*(1-cfg.TrailingStopPercent/100) {
		return fullSell(p, domain.ExitReasonTrailingStop)
	}

	if p.TierHit < len(cfg.TakeProfitTiers) && price >= p.EntryPrice*cfg.TakeProfitTiers[p.TierHit] {
		tier := p.TierHit + 1
		if tier == len(cfg.TakeProfitTiers) {
			d := fullSell(p, domain.TakeProfitReason(tier))
			d.TierConsumed = true
			return d
		}
		return Decision{
			Action:       ActionSell,
			Reason:       domain.TakeProfitReason(tier),
			TokensToSell: p.TokensRemaining * cfg.PartialSellPercent / 100,
			TierConsumed: true,
		}
	}

	if p.HoldDurationMs(nowMs) > int64(cfg.MaxHoldTimeMinutes)*60_000 {
		return fullSell(p, domain.ExitReasonMaxHoldTime)
	}

	if snap.Volume24h < cfg.MinVolumeToHold {
		return Decision{Action: ActionDecayBump}
	}

	return Decision{Action: ActionNone}
}

func fullSell(p *domain.Position, reason string) Decision {
	return Decision{
		Action:       ActionSell,
		Reason:       reason,
		TokensToSell: p.TokensRemaining,
		Terminal:     true,
	}
}
