package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/ledger"
	"solana-launch-trader/internal/observability"
)

// EvaluationSummary reports one evaluation sweep.
type EvaluationSummary struct {
	Scanned int `json:"scanned"`
	Buys    int `json:"buys"`
	Entered int `json:"entered"`
}

// RunEvaluationTick polls the launch source once, scores every snapshot,
// journals the decisions, and enters the ones that clear capacity. Per-item
// failures are logged and skipped; only a failed sweep aborts the tick.
// Decisions are journaled even while the kill switch is engaged.
func (e *Engine) RunEvaluationTick(ctx context.Context) (*EvaluationSummary, error) {
	defer func() {
		now := time.Now()
		e.lastEvalMs.Store(now.UnixMilli())
		observability.MarkEvaluationTick(float64(now.Unix()))
	}()

	launches, err := e.launches.Launches(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch sweep: %w", err)
	}

	cfg := e.Config()
	sum := &EvaluationSummary{Scanned: len(launches)}
	for _, snap := range launches {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		d := e.evaluator.Evaluate(snap, cfg, e.learning)
		e.journalDecision(ctx, d)
		observability.RecordEvaluation(d.ShouldBuy, rejectReason(d))
		if !d.ShouldBuy {
			e.logger.Debug("launch passed over",
				zap.String("mint", snap.Mint),
				zap.Float64("score", d.Score),
				zap.Strings("red_flags", d.RedFlags))
			continue
		}
		sum.Buys++

		if _, err := e.enter(ctx, ledger.EntryRequest{
			Mint:        snap.Mint,
			Symbol:      snap.Symbol,
			Name:        snap.Name,
			SizeSOL:     d.SuggestedSOL,
			EntryReason: d.EntryReason,
			Source:      domain.EntrySourceLaunch,
		}); err != nil {
			e.logEntrySkip(snap.Mint, err)
			continue
		}
		sum.Entered++
	}
	return sum, nil
}

// RunExitTick walks every open position through the exit rules once.
func (e *Engine) RunExitTick(ctx context.Context) error {
	defer func() {
		now := time.Now()
		e.lastExitMs.Store(now.UnixMilli())
		observability.MarkExitTick(float64(now.Unix()))
	}()
	return e.exits.Tick(ctx)
}

// enter runs the reservation protocol for one proposed entry: hold budget,
// swap outside the actor under a bounded timeout, then commit the fill or
// release the hold.
func (e *Engine) enter(ctx context.Context, req ledger.EntryRequest) (*domain.Position, error) {
	if err := e.entriesAllowed(); err != nil {
		return nil, err
	}

	rsvID, err := e.ledger.ReserveEntry(ctx, req)
	if err != nil {
		return nil, err
	}

	cfg := e.Config()
	start := time.Now()
	swapCtx, cancel := context.WithTimeout(ctx, e.swapTimeout)
	res, err := e.executor.ExecuteSwap(swapCtx, domain.SwapRequest{
		InputMint:         domain.WrappedSOLMint,
		OutputMint:        req.Mint,
		AmountIn:          req.SizeSOL,
		SlippageBps:       cfg.SlippageBudgetBps,
		MaxPriceImpactPct: cfg.MaxPriceImpactPercent,
	})
	cancel()

	// Post-swap bookkeeping must land even when the tick context is gone.
	bg := context.Background()
	if err != nil {
		if cErr := e.ledger.CancelReservation(bg, rsvID); cErr != nil {
			e.logger.Error("reservation release failed",
				zap.String("reservation_id", rsvID),
				zap.String("mint", req.Mint),
				zap.Error(cErr))
		}
		observability.RecordEntryFailure("swap")
		e.noteEntryFailure(req.Mint, err)
		return nil, &domain.ExecutionError{Stage: "entry_swap", Err: err}
	}
	observability.RecordSwapLatency("buy", time.Since(start).Seconds())
	e.entryFails.Store(0)

	execPrice := res.ExecPrice
	if execPrice <= 0 && res.FilledAmount > 0 {
		execPrice = req.SizeSOL / res.FilledAmount
	}

	p, err := e.ledger.CommitEntry(bg, rsvID, ledger.Fill{
		TxRef:     res.TxRef,
		Tokens:    res.FilledAmount,
		ExecPrice: execPrice,
	})
	if err != nil {
		// The swap filled; only a shutdown race refuses the commit now.
		e.logger.Error("entry commit refused after fill",
			zap.String("mint", req.Mint),
			zap.String("tx_ref", res.TxRef),
			zap.Error(err))
		observability.RecordEntryFailure("commit")
		return nil, fmt.Errorf("commit entry %s: %w", req.Mint, err)
	}

	observability.RecordEntry(string(req.Source))
	e.publishExposure(bg)
	e.logger.Info("position opened",
		zap.String("position_id", p.PositionID),
		zap.String("mint", p.Mint),
		zap.String("source", string(p.Source)),
		zap.Float64("size_sol", p.EntrySOL),
		zap.Float64("exec_price", p.EntryPrice),
		zap.String("entry_reason", p.EntryReason),
		zap.String("tx_ref", res.TxRef))
	return p, nil
}

// noteEntryFailure counts consecutive entry swap failures; at the retry cap
// the halt latch trips. Any filled entry resets the count.
func (e *Engine) noteEntryFailure(mint string, err error) {
	fails := e.entryFails.Add(1)
	e.logger.Warn("entry swap failed",
		zap.String("mint", mint),
		zap.Int32("consecutive_failures", fails),
		zap.Error(err))
	if int(fails) >= e.retryCap {
		e.halt(fmt.Sprintf("entry swaps failed %d times in a row: %v", fails, err))
	}
}

// logEntrySkip classifies a refused or failed entry. Refusals are routine
// (capacity, held mints, kill switch); real failures warn. noteEntryFailure
// already logged swap errors.
func (e *Engine) logEntrySkip(mint string, err error) {
	var capErr *domain.CapacityError
	var execErr *domain.ExecutionError
	switch {
	case errors.As(err, &capErr):
		e.logger.Info("entry refused",
			zap.String("mint", mint),
			zap.String("reason", capErr.Reason))
	case errors.Is(err, ledger.ErrMintAlreadyHeld):
		e.logger.Debug("mint already held", zap.String("mint", mint))
	case errors.Is(err, ErrTradingDisabled), errors.Is(err, ErrHalted):
		e.logger.Debug("entry blocked", zap.String("mint", mint), zap.Error(err))
	case errors.As(err, &execErr):
	default:
		e.logger.Warn("entry failed", zap.String("mint", mint), zap.Error(err))
	}
}

// enterCopy is the copy governor's entry hook. The observation already
// cleared the governor's checks; the ledger reservation still arbitrates
// capacity, including the copy exposure cap.
func (e *Engine) enterCopy(ctx context.Context, trade domain.ObservedTrade, sizeSOL float64) (*domain.Position, error) {
	symbol, name := trade.Symbol, ""
	if symbol == "" && e.metadata != nil {
		meta, err := e.metadata.Resolve(ctx, trade.Mint)
		switch {
		case err != nil:
			e.logger.Debug("token metadata lookup failed",
				zap.String("mint", trade.Mint),
				zap.Error(err))
		case meta != nil:
			symbol, name = meta.Symbol, meta.Name
		}
	}

	e.journalDecision(ctx, &domain.LaunchDecision{
		Mint:         trade.Mint,
		Symbol:       symbol,
		Source:       domain.EntrySourceCopy,
		EntryReason:  domain.SignalSmartMoney,
		ShouldBuy:    true,
		SuggestedSOL: sizeSOL,
		EvaluatedAt:  time.Now().UnixMilli(),
	})

	return e.enter(ctx, ledger.EntryRequest{
		Mint:               trade.Mint,
		Symbol:             symbol,
		Name:               name,
		SizeSOL:            sizeSOL,
		EntryReason:        domain.SignalSmartMoney,
		Source:             domain.EntrySourceCopy,
		SourceWallet:       trade.Wallet,
		CopyExposureCapSOL: e.governor.Config().MaxCopyExposureSOL,
	})
}

// mirrorSell closes our copy position when the source wallet exits. Nil
// without error when we hold nothing for that wallet and mint.
func (e *Engine) mirrorSell(ctx context.Context, wallet, mint string) (*domain.Position, error) {
	open, err := e.ledger.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range open {
		if p.Source == domain.EntrySourceCopy && p.SourceWallet == wallet && p.Mint == mint {
			return e.sellAll(ctx, p, domain.ExitReasonManual)
		}
	}
	return nil, nil
}

// sellAll runs one full exit through the in-flight protocol: mark, swap,
// commit. Mirrored sells come through here; scheduled exits go through the
// exit controller.
func (e *Engine) sellAll(ctx context.Context, p *domain.Position, reason string) (*domain.Position, error) {
	fresh, err := e.ledger.BeginExit(ctx, p.PositionID)
	if err != nil {
		return nil, err
	}

	cfg := e.Config()
	start := time.Now()
	swapCtx, cancel := context.WithTimeout(ctx, e.swapTimeout)
	res, err := e.executor.ExecuteSwap(swapCtx, domain.SwapRequest{
		InputMint:         fresh.Mint,
		OutputMint:        domain.WrappedSOLMint,
		AmountIn:          fresh.TokensRemaining,
		SlippageBps:       cfg.SlippageBudgetBps,
		MaxPriceImpactPct: cfg.MaxPriceImpactPercent,
	})
	cancel()

	bg := context.Background()
	nowMs := time.Now().UnixMilli()
	if err != nil {
		if aErr := e.ledger.AbortExit(bg, p.PositionID); aErr != nil {
			e.logger.Error("exit abort failed",
				zap.String("position_id", p.PositionID),
				zap.Error(aErr))
		}
		observability.RecordExitFailure()
		e.journalExit(bg, &domain.ExitEvent{
			PositionID: p.PositionID,
			Mint:       fresh.Mint,
			Reason:     reason,
			Action:     domain.ExitActionFullSell,
			TokensSold: fresh.TokensRemaining,
			Success:    false,
			Detail:     err.Error(),
			DecidedAt:  nowMs,
		})
		return nil, &domain.ExecutionError{Stage: "exit_swap", Err: err}
	}
	observability.RecordSwapLatency("sell", time.Since(start).Seconds())

	closed, err := e.ledger.CommitExit(bg, p.PositionID, ledger.ExitFill{
		Reason:      reason,
		TxRef:       res.TxRef,
		TokensSold:  fresh.TokensRemaining,
		ProceedsSOL: res.FilledAmount,
		Terminal:    true,
	})
	if err != nil {
		// The swap filled but the position changed under us. The fill is
		// real so the journal records it anyway.
		e.logger.Error("exit commit refused after fill",
			zap.String("position_id", p.PositionID),
			zap.String("tx_ref", res.TxRef),
			zap.Error(err))
		e.journalExit(bg, &domain.ExitEvent{
			PositionID:  p.PositionID,
			Mint:        fresh.Mint,
			Reason:      reason,
			Action:      domain.ExitActionFullSell,
			Price:       res.ExecPrice,
			TokensSold:  fresh.TokensRemaining,
			ProceedsSOL: res.FilledAmount,
			Success:     true,
			Detail:      fmt.Sprintf("ledger commit refused: %v", err),
			DecidedAt:   nowMs,
		})
		return nil, fmt.Errorf("commit exit %s: %w", p.PositionID, err)
	}

	e.journalExit(bg, &domain.ExitEvent{
		PositionID:  closed.PositionID,
		Mint:        closed.Mint,
		Reason:      reason,
		Action:      domain.ExitActionFullSell,
		Price:       res.ExecPrice,
		TokensSold:  fresh.TokensRemaining,
		ProceedsSOL: res.FilledAmount,
		Success:     true,
		DecidedAt:   nowMs,
	})
	observability.RecordExit(reason)
	e.finalizeClose(closed)
	return closed, nil
}

// ManualClose records an operator-reported out-of-band close. No swap runs;
// the tokens are assumed gone and proceeds seen so far stand.
func (e *Engine) ManualClose(ctx context.Context, positionID string) (*domain.Position, error) {
	p, err := e.ledger.ManualClose(ctx, positionID)
	if err != nil {
		return nil, err
	}

	bg := context.Background()
	e.journalExit(bg, &domain.ExitEvent{
		PositionID: p.PositionID,
		Mint:       p.Mint,
		Reason:     domain.ExitReasonManual,
		Action:     domain.ExitActionFullSell,
		Success:    true,
		Detail:     "closed out of band",
		DecidedAt:  time.Now().UnixMilli(),
	})
	observability.RecordExit(domain.ExitReasonManual)
	e.finalizeClose(p)
	return p, nil
}

// finalizeClose fans a terminal close out to the learning store, the copy
// governor's cooldown state, and the gauges. Callers invoke it only from
// the call that performed the terminal transition, so outcomes are counted
// exactly once per position.
func (e *Engine) finalizeClose(p *domain.Position) {
	if p == nil || p.PnL == nil {
		return
	}
	pnl := *p.PnL

	bg := context.Background()
	if err := e.learning.RecordOutcome(bg, p.EntryReason, pnl); err != nil {
		e.logger.Error("signal outcome not recorded",
			zap.String("position_id", p.PositionID),
			zap.String("entry_reason", p.EntryReason),
			zap.Error(err))
	}
	if p.Source == domain.EntrySourceCopy && p.SourceWallet != "" {
		e.governor.RecordOutcome(p.SourceWallet, pnl)
	}

	observability.RecordClose(pnl)
	e.publishExposure(bg)
	e.logger.Info("position closed",
		zap.String("position_id", p.PositionID),
		zap.String("mint", p.Mint),
		zap.String("exit_reason", p.ExitReason),
		zap.Float64("pnl_sol", pnl))
}

func (e *Engine) journalDecision(ctx context.Context, d *domain.LaunchDecision) {
	if err := e.decisions.Insert(ctx, d); err != nil {
		e.logger.Error("decision journal write failed",
			zap.String("mint", d.Mint),
			zap.Error(err))
	}
}

func (e *Engine) journalExit(ctx context.Context, ev *domain.ExitEvent) {
	if err := e.events.Insert(ctx, ev); err != nil {
		e.logger.Error("exit journal write failed",
			zap.String("position_id", ev.PositionID),
			zap.Error(err))
	}
}

// rejectReason labels a non-buy decision for the rejection counter: the
// first red flag, or low_score when every hard filter passed.
func rejectReason(d *domain.LaunchDecision) string {
	if len(d.RedFlags) > 0 {
		return d.RedFlags[0]
	}
	return "low_score"
}
