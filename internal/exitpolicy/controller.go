package exitpolicy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/execution"
	"solana-launch-trader/internal/ledger"
	"solana-launch-trader/internal/market"
	"solana-launch-trader/internal/observability"
	"solana-launch-trader/internal/storage"
)

// Default configuration values.
const (
	DefaultSwapTimeout    = 30 * time.Second
	DefaultMaxSnapshotAge = 90 * time.Second
	DefaultRetryCap       = 3
	DefaultRetryBase      = 30 * time.Second
)

// Controller runs the exit rules over every open position each tick.
// Per-item failures skip the item and never abort the batch; a position
// whose exit swap keeps failing is retried with exponential backoff until
// the retry cap escalates to the halt signal.
type Controller struct {
	ledger   *ledger.Ledger
	provider market.Provider
	executor execution.Executor
	config   func() *domain.TradingConfig
	events   storage.ExitEventStore
	logger   *zap.Logger
	halt     func(reason string)
	onClose  func(*domain.Position)

	swapTimeout    time.Duration
	maxSnapshotAge time.Duration
	retryCap       int
	retryBase      time.Duration

	mu      sync.Mutex
	retries map[string]*retryState
}

type retryState struct {
	failures    int
	nextAttempt int64 // Unix ms
}

// ControllerOptions contains configuration for creating a Controller.
// Halt receives escalations past the retry cap; OnClose observes terminal
// closes (learning and copy-trade cooldowns hang off it).
type ControllerOptions struct {
	Ledger   *ledger.Ledger
	Provider market.Provider
	Executor execution.Executor
	Config   func() *domain.TradingConfig
	Events   storage.ExitEventStore
	Logger   *zap.Logger
	Halt     func(reason string)
	OnClose  func(*domain.Position)

	SwapTimeout    time.Duration
	MaxSnapshotAge time.Duration
	RetryCap       int
	RetryBase      time.Duration
}

// NewController creates an exit controller.
func NewController(opts ControllerOptions) *Controller {
	c := &Controller{
		ledger:         opts.Ledger,
		provider:       opts.Provider,
		executor:       opts.Executor,
		config:         opts.Config,
		events:         opts.Events,
		logger:         opts.Logger,
		halt:           opts.Halt,
		onClose:        opts.OnClose,
		swapTimeout:    opts.SwapTimeout,
		maxSnapshotAge: opts.MaxSnapshotAge,
		retryCap:       opts.RetryCap,
		retryBase:      opts.RetryBase,
		retries:        make(map[string]*retryState),
	}
	if c.swapTimeout <= 0 {
		c.swapTimeout = DefaultSwapTimeout
	}
	if c.maxSnapshotAge <= 0 {
		c.maxSnapshotAge = DefaultMaxSnapshotAge
	}
	if c.retryCap <= 0 {
		c.retryCap = DefaultRetryCap
	}
	if c.retryBase <= 0 {
		c.retryBase = DefaultRetryBase
	}
	return c
}

// Tick evaluates every open position once. Returns an error only when the
// position list itself cannot be fetched or the context ends.
func (c *Controller) Tick(ctx context.Context) error {
	open, err := c.ledger.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}

	cfg := c.config()
	now := time.Now().UnixMilli()

	for _, p := range open {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.evaluatePosition(ctx, p, cfg, now)
	}

	c.pruneRetries(open)
	return nil
}

func (c *Controller) evaluatePosition(ctx context.Context, p *domain.Position, cfg *domain.TradingConfig, nowMs int64) {
	snap, err := c.provider.Snapshot(ctx, p.Mint)
	if err != nil {
		c.logger.Warn("snapshot failed; skipping position",
			zap.String("position_id", p.PositionID),
			zap.String("mint", p.Mint),
			zap.Error(err))
		return
	}
	if age := snap.Age(nowMs); age > c.maxSnapshotAge {
		c.logger.Warn("skipping position",
			zap.String("position_id", p.PositionID),
			zap.Error(&domain.StaleDataError{Mint: p.Mint, Age: age}))
		return
	}

	fresh, err := c.ledger.TouchMark(ctx, p.PositionID, snap.Price, false)
	if err != nil {
		// Closed or removed between the list and the mark.
		c.logger.Debug("watermark skipped",
			zap.String("position_id", p.PositionID),
			zap.Error(err))
		return
	}

	d := Evaluate(fresh, snap, cfg, nowMs)
	switch d.Action {
	case ActionDecayBump:
		c.bumpDecay(ctx, fresh, snap, cfg, nowMs)
	case ActionSell:
		c.executeSell(ctx, fresh, d, snap, cfg, nowMs)
	}
}

func (c *Controller) bumpDecay(ctx context.Context, p *domain.Position, snap *domain.MarketSnapshot, cfg *domain.TradingConfig, nowMs int64) {
	bumped, err := c.ledger.TouchMark(ctx, p.PositionID, snap.Price, true)
	if err != nil {
		c.logger.Warn("decay bump failed",
			zap.String("position_id", p.PositionID),
			zap.Error(err))
		return
	}

	c.journal(ctx, &domain.ExitEvent{
		PositionID: p.PositionID,
		Mint:       p.Mint,
		Action:     domain.ExitActionDecayBump,
		Price:      snap.Price,
		Success:    true,
		Detail:     fmt.Sprintf("volume %.0f below hold floor %.0f", snap.Volume24h, cfg.MinVolumeToHold),
		DecidedAt:  nowMs,
	})
	c.logger.Info("dead position decay bumped",
		zap.String("position_id", p.PositionID),
		zap.String("mint", p.Mint),
		zap.Int("decay_level", bumped.DecayLevel),
		zap.Float64("volume_24h", snap.Volume24h))
}

func (c *Controller) executeSell(ctx context.Context, p *domain.Position, d Decision, snap *domain.MarketSnapshot, cfg *domain.TradingConfig, nowMs int64) {
	if !c.retryDue(p.PositionID, nowMs) {
		return
	}

	if _, err := c.ledger.BeginExit(ctx, p.PositionID); err != nil {
		// Another actor holds the exit or already closed the position.
		c.logger.Debug("exit not started",
			zap.String("position_id", p.PositionID),
			zap.Error(err))
		return
	}

	swapCtx, cancel := context.WithTimeout(ctx, c.swapTimeout)
	start := time.Now()
	res, err := c.executor.ExecuteSwap(swapCtx, domain.SwapRequest{
		InputMint:         p.Mint,
		OutputMint:        domain.WrappedSOLMint,
		AmountIn:          d.TokensToSell,
		SlippageBps:       cfg.SlippageBudgetBps,
		MaxPriceImpactPct: cfg.MaxPriceImpactPercent,
	})
	cancel()
	if err != nil {
		c.failExit(p, d, snap, err, nowMs)
		return
	}
	observability.RecordSwapLatency("sell", time.Since(start).Seconds())

	// Post-fill bookkeeping must land even when the tick context is gone.
	bg := context.Background()
	closed, err := c.ledger.CommitExit(bg, p.PositionID, ledger.ExitFill{
		Reason:       d.Reason,
		TxRef:        res.TxRef,
		TokensSold:   d.TokensToSell,
		ProceedsSOL:  res.FilledAmount,
		Terminal:     d.Terminal,
		TierConsumed: d.TierConsumed,
	})
	if err != nil {
		// The swap filled but the position changed under us (manual close or
		// shutdown). The fill is real so the journal records it anyway.
		c.logger.Error("exit commit refused after fill",
			zap.String("position_id", p.PositionID),
			zap.String("tx_ref", res.TxRef),
			zap.Error(err))
		c.journal(bg, c.sellEvent(p, d, snap, res.FilledAmount, true, fmt.Sprintf("ledger commit refused: %v", err), nowMs))
		c.clearRetry(p.PositionID)
		return
	}

	c.clearRetry(p.PositionID)
	c.journal(bg, c.sellEvent(p, d, snap, res.FilledAmount, true, "", nowMs))
	observability.RecordExit(d.Reason)
	c.logger.Info("exit executed",
		zap.String("position_id", p.PositionID),
		zap.String("mint", p.Mint),
		zap.String("reason", d.Reason),
		zap.Bool("terminal", d.Terminal),
		zap.Float64("tokens_sold", d.TokensToSell),
		zap.Float64("proceeds_sol", res.FilledAmount),
		zap.String("tx_ref", res.TxRef))

	if d.Terminal && c.onClose != nil {
		c.onClose(closed)
	}
}

// failExit restores the position and records the failure. Runs on a
// background context: the abort must land even when the tick context died
// with the swap.
func (c *Controller) failExit(p *domain.Position, d Decision, snap *domain.MarketSnapshot, swapErr error, nowMs int64) {
	bg := context.Background()
	if err := c.ledger.AbortExit(bg, p.PositionID); err != nil {
		c.logger.Error("exit abort failed",
			zap.String("position_id", p.PositionID),
			zap.Error(err))
	}

	failures, delay := c.recordFailure(p.PositionID, nowMs)
	c.journal(bg, c.sellEvent(p, d, snap, 0, false, swapErr.Error(), nowMs))
	observability.RecordExitFailure()
	c.logger.Warn("exit swap failed",
		zap.String("position_id", p.PositionID),
		zap.String("mint", p.Mint),
		zap.String("reason", d.Reason),
		zap.Int("failures", failures),
		zap.Duration("retry_in", delay),
		zap.Error(swapErr))

	if failures >= c.retryCap {
		reason := fmt.Sprintf("exit for %s failed %d times: %v", p.Mint, failures, swapErr)
		c.logger.Error("exit retries exhausted", zap.String("position_id", p.PositionID), zap.String("halt_reason", reason))
		if c.halt != nil {
			c.halt(reason)
		}
	}
}

func (c *Controller) sellEvent(p *domain.Position, d Decision, snap *domain.MarketSnapshot, proceeds float64, success bool, detail string, nowMs int64) *domain.ExitEvent {
	action := domain.ExitActionPartialSell
	if d.Terminal {
		action = domain.ExitActionFullSell
	}
	return &domain.ExitEvent{
		PositionID:  p.PositionID,
		Mint:        p.Mint,
		Reason:      d.Reason,
		Action:      action,
		Price:       snap.Price,
		TokensSold:  d.TokensToSell,
		ProceedsSOL: proceeds,
		Success:     success,
		Detail:      detail,
		DecidedAt:   nowMs,
	}
}

func (c *Controller) journal(ctx context.Context, e *domain.ExitEvent) {
	if err := c.events.Insert(ctx, e); err != nil {
		c.logger.Error("exit journal write failed",
			zap.String("position_id", e.PositionID),
			zap.Error(err))
	}
}

func (c *Controller) retryDue(positionID string, nowMs int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.retries[positionID]
	return !ok || nowMs >= rs.nextAttempt
}

func (c *Controller) recordFailure(positionID string, nowMs int64) (int, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rs := c.retries[positionID]
	if rs == nil {
		rs = &retryState{}
		c.retries[positionID] = rs
	}
	rs.failures++
	delay := c.retryBase << (rs.failures - 1)
	rs.nextAttempt = nowMs + delay.Milliseconds()
	return rs.failures, delay
}

func (c *Controller) clearRetry(positionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.retries, positionID)
}

// pruneRetries drops backoff state for positions no longer open, so closed
// positions do not pin map entries.
func (c *Controller) pruneRetries(open []*domain.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.retries) == 0 {
		return
	}
	alive := make(map[string]struct{}, len(open))
	for _, p := range open {
		alive[p.PositionID] = struct{}{}
	}
	for id := range c.retries {
		if _, ok := alive[id]; !ok {
			delete(c.retries, id)
		}
	}
}
