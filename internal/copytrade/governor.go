// Package copytrade admits observed smart-money trades into the entry path.
// Every observation runs a fixed check sequence: enrollment, wallet win
// rate, the buys-only rule, the global hourly budget, per-wallet spacing,
// and the loss cooldown. Survivors are sized and either entered directly or
// queued for operator approval. The copy-exposure ceiling itself is not
// checked here: the ledger enforces it atomically inside the entry
// reservation.
package copytrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/idhash"
	"solana-launch-trader/internal/ledger"
	"solana-launch-trader/internal/observability"
	"solana-launch-trader/internal/solana"
	"solana-launch-trader/internal/storage"
)

// Outcome of a handled observation.
const (
	OutcomeRejected = "rejected"
	OutcomeQueued   = "queued"
	OutcomeEntered  = "entered"
	OutcomeMirrored = "mirrored"
)

// Rejection reasons, in check order. Capacity rejections from the ledger
// surface under their own reasons (position_limit, exposure_limit,
// copy_exposure_limit, mint_already_held).
const (
	ReasonNotEnrolled        = "wallet_not_enrolled"
	ReasonWinRateBelowFloor  = "win_rate_below_minimum"
	ReasonSellNotCopied      = "sells_not_copied"
	ReasonHourlyLimit        = "hourly_copy_limit"
	ReasonTradeInterval      = "trade_interval"
	ReasonLossCooldown       = "loss_cooldown"
	ReasonMintAlreadyHeld    = "mint_already_held"
	ReasonAlreadyQueued      = "already_queued"
	ReasonPendingExpired     = "pending_expired"
	ReasonNoMatchingPosition = "no_matching_position"
)

// copyWindow is the span of the global rate limit.
const copyWindow = time.Hour

// EnterFunc runs an admitted copy through the shared entry path: decision
// journal, ledger reservation, swap, commit.
type EnterFunc func(ctx context.Context, trade domain.ObservedTrade, sizeSOL float64) (*domain.Position, error)

// MirrorFunc closes our open copy position matching an observed sell.
// Returns nil when we hold nothing for that wallet and mint.
type MirrorFunc func(ctx context.Context, wallet, mint string) (*domain.Position, error)

// Result reports how one observation was handled.
type Result struct {
	Outcome  string                   `json:"outcome"`
	Reason   string                   `json:"reason,omitempty"`   // set when Outcome is rejected
	Pending  *domain.PendingCopyTrade `json:"pending,omitempty"`  // set when Outcome is queued
	Position *domain.Position         `json:"position,omitempty"` // set when Outcome is entered or mirrored
}

// GovernorOptions contains configuration for creating a Governor.
type GovernorOptions struct {
	Config  domain.CopyTradeConfig
	Wallets storage.SmartWalletStore
	Pending storage.PendingCopyTradeStore
	Logger  *zap.Logger

	// Enter is required. Mirror is optional: when nil, observed sells are
	// never acted on even with CopyBuysOnly disabled.
	Enter  EnterFunc
	Mirror MirrorFunc
}

// Governor serializes rate-limit state under one mutex; the checks and the
// budget consumption they guard happen in a single critical section.
// Consumed budget is never refunded when the entry later fails: the
// limiter fails closed, like the capacity checks.
type Governor struct {
	config  domain.CopyTradeConfig
	wallets storage.SmartWalletStore
	pending storage.PendingCopyTradeStore
	enter   EnterFunc
	mirror  MirrorFunc
	logger  *zap.Logger

	mu       sync.Mutex
	window   []time.Time          // accepted copies within the last hour
	lastCopy map[string]time.Time // wallet -> last accepted copy
	lastLoss map[string]time.Time // wallet -> close time of last losing copy
}

// NewGovernor creates a copy-trade governor.
func NewGovernor(opts GovernorOptions) (*Governor, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("copy trade config: %w", err)
	}
	if opts.Wallets == nil {
		return nil, errors.New("wallet store is required")
	}
	if opts.Pending == nil {
		return nil, errors.New("pending store is required")
	}
	if opts.Enter == nil {
		return nil, errors.New("enter func is required")
	}

	return &Governor{
		config:   opts.Config,
		wallets:  opts.Wallets,
		pending:  opts.Pending,
		enter:    opts.Enter,
		mirror:   opts.Mirror,
		logger:   opts.Logger,
		lastCopy: make(map[string]time.Time),
		lastLoss: make(map[string]time.Time),
	}, nil
}

// Config returns the static copy-trade settings.
func (g *Governor) Config() domain.CopyTradeConfig {
	return g.config
}

// HandleTrade runs one observation through the check sequence. Rejections
// come back as a Result, not an error; errors mean the observation could
// not be processed at all.
func (g *Governor) HandleTrade(ctx context.Context, trade domain.ObservedTrade) (*Result, error) {
	if trade.Wallet == "" {
		return nil, &domain.ValidationError{Field: "wallet", Reason: "required"}
	}
	if trade.Mint == "" {
		return nil, &domain.ValidationError{Field: "mint", Reason: "required"}
	}
	if trade.AmountSOL <= 0 {
		return nil, &domain.ValidationError{Field: "amountSol", Reason: "must be positive"}
	}

	wallet, err := g.wallets.GetByAddress(ctx, trade.Wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return g.reject(trade, ReasonNotEnrolled), nil
		}
		return nil, fmt.Errorf("look up wallet %s: %w", trade.Wallet, err)
	}

	if wallet.WinRate < g.config.MinWalletWinRate {
		return g.reject(trade, ReasonWinRateBelowFloor), nil
	}

	if trade.Action != domain.TradeActionBuy {
		if g.config.CopyBuysOnly || g.mirror == nil {
			return g.reject(trade, ReasonSellNotCopied), nil
		}
		return g.mirrorSell(ctx, trade)
	}

	if reason := g.consumeBudget(trade.Wallet); reason != "" {
		return g.reject(trade, reason), nil
	}

	size := trade.AmountSOL * g.config.SizeMultiplier
	if size > g.config.MaxCopyAmountSOL {
		size = g.config.MaxCopyAmountSOL
	}

	if g.config.RequireApproval {
		return g.queue(ctx, trade, wallet.Label, size)
	}
	return g.runEntry(ctx, trade, size)
}

// consumeBudget checks the hourly window, per-wallet spacing, and loss
// cooldown, and on success records the copy against all three. One critical
// section: concurrent observations cannot both take the last slot.
func (g *Governor) consumeBudget(wallet string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.pruneWindow(now)

	if len(g.window) >= g.config.MaxCopiesPerHour {
		return ReasonHourlyLimit
	}
	if last, ok := g.lastCopy[wallet]; ok && now.Sub(last) < g.config.MinTradeInterval {
		return ReasonTradeInterval
	}
	if loss, ok := g.lastLoss[wallet]; ok && now.Sub(loss) < g.config.LossCooldown {
		return ReasonLossCooldown
	}

	g.window = append(g.window, now)
	g.lastCopy[wallet] = now
	return ""
}

// pruneWindow drops window entries older than an hour. Caller holds the
// mutex.
func (g *Governor) pruneWindow(now time.Time) {
	cutoff := now.Add(-copyWindow)
	kept := g.window[:0]
	for _, t := range g.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.window = kept
}

func (g *Governor) queue(ctx context.Context, trade domain.ObservedTrade, label string, size float64) (*Result, error) {
	now := time.Now()
	p := &domain.PendingCopyTrade{
		PendingID:    idhash.ComputePendingID(trade.Wallet, trade.Mint, trade.ObservedAt),
		Wallet:       trade.Wallet,
		WalletLabel:  label,
		Action:       trade.Action,
		Mint:         trade.Mint,
		Symbol:       trade.Symbol,
		ObservedSOL:  trade.AmountSOL,
		SuggestedSOL: size,
		Status:       domain.PendingStatusPending,
		CreatedAt:    now.UnixMilli(),
		ExpiresAt:    now.Add(g.config.PendingTTL).UnixMilli(),
	}

	if err := g.pending.Insert(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// The feed replayed the observation; the queued trade stands.
			return g.reject(trade, ReasonAlreadyQueued), nil
		}
		return nil, fmt.Errorf("queue pending copy trade: %w", err)
	}

	observability.RecordCopyTrade(OutcomeQueued, "")
	g.refreshPendingGauge(ctx)
	g.logger.Info("copy trade queued for approval",
		zap.String("pending_id", p.PendingID),
		zap.String("wallet", trade.Wallet),
		zap.String("mint", trade.Mint),
		zap.Float64("suggested_sol", size),
		zap.Int64("expires_at", p.ExpiresAt))

	return &Result{Outcome: OutcomeQueued, Pending: p}, nil
}

// runEntry hands an admitted copy to the entry path. Capacity refusals from
// the ledger come back as rejections; anything else is a real failure.
func (g *Governor) runEntry(ctx context.Context, trade domain.ObservedTrade, size float64) (*Result, error) {
	p, err := g.enter(ctx, trade, size)
	if err != nil {
		var capErr *domain.CapacityError
		if errors.As(err, &capErr) {
			return g.reject(trade, capErr.Reason), nil
		}
		if errors.Is(err, ledger.ErrMintAlreadyHeld) {
			return g.reject(trade, ReasonMintAlreadyHeld), nil
		}
		return nil, fmt.Errorf("copy entry for %s: %w", trade.Mint, err)
	}

	observability.RecordCopyTrade(OutcomeEntered, "")
	g.logger.Info("copy trade entered",
		zap.String("wallet", trade.Wallet),
		zap.String("mint", trade.Mint),
		zap.String("position_id", p.PositionID),
		zap.Float64("size_sol", size))

	return &Result{Outcome: OutcomeEntered, Position: p}, nil
}

// mirrorSell closes our matching copy position in response to an observed
// sell. Exit signals skip the rate budget: reducing risk is never limited.
func (g *Governor) mirrorSell(ctx context.Context, trade domain.ObservedTrade) (*Result, error) {
	p, err := g.mirror(ctx, trade.Wallet, trade.Mint)
	if err != nil {
		return nil, fmt.Errorf("mirror sell for %s: %w", trade.Mint, err)
	}
	if p == nil {
		return g.reject(trade, ReasonNoMatchingPosition), nil
	}

	observability.RecordCopyTrade(OutcomeMirrored, "")
	g.logger.Info("copy position closed on source sell",
		zap.String("wallet", trade.Wallet),
		zap.String("mint", trade.Mint),
		zap.String("position_id", p.PositionID))

	return &Result{Outcome: OutcomeMirrored, Position: p}, nil
}

func (g *Governor) reject(trade domain.ObservedTrade, reason string) *Result {
	observability.RecordCopyTrade(OutcomeRejected, reason)
	g.logger.Debug("copy trade rejected",
		zap.String("wallet", trade.Wallet),
		zap.String("mint", trade.Mint),
		zap.String("action", trade.Action),
		zap.String("reason", reason))
	return &Result{Outcome: OutcomeRejected, Reason: reason}
}

// Approve resolves a pending trade and runs it through the entry path. The
// pending record is deleted before the entry executes, so a concurrent
// approve of the same ID loses with ErrNotFound. The checks that admitted
// the observation are not rerun; the ledger capacity checks still apply.
func (g *Governor) Approve(ctx context.Context, pendingID string) (*Result, error) {
	p, err := g.pending.GetByID(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if err := g.pending.Delete(ctx, pendingID); err != nil {
		return nil, err
	}
	g.refreshPendingGauge(ctx)

	if time.Now().UnixMilli() > p.ExpiresAt {
		observability.RecordCopyTrade(OutcomeRejected, ReasonPendingExpired)
		g.logger.Info("pending copy trade expired before approval",
			zap.String("pending_id", pendingID),
			zap.String("wallet", p.Wallet),
			zap.String("mint", p.Mint))
		return &Result{Outcome: OutcomeRejected, Reason: ReasonPendingExpired}, nil
	}

	trade := domain.ObservedTrade{
		Wallet:     p.Wallet,
		Action:     p.Action,
		Mint:       p.Mint,
		Symbol:     p.Symbol,
		AmountSOL:  p.ObservedSOL,
		ObservedAt: p.CreatedAt,
	}
	return g.runEntry(ctx, trade, p.SuggestedSOL)
}

// Reject resolves a pending trade without entering. Returns the resolved
// record.
func (g *Governor) Reject(ctx context.Context, pendingID string) (*domain.PendingCopyTrade, error) {
	p, err := g.pending.GetByID(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if err := g.pending.Delete(ctx, pendingID); err != nil {
		return nil, err
	}
	g.refreshPendingGauge(ctx)

	g.logger.Info("pending copy trade rejected",
		zap.String("pending_id", pendingID),
		zap.String("wallet", p.Wallet),
		zap.String("mint", p.Mint))

	p.Status = domain.PendingStatusRejected
	return p, nil
}

// ExpirePending auto-rejects every pending trade past its expiry. Returns
// the number expired. Run on a sweeper cadence.
func (g *Governor) ExpirePending(ctx context.Context) (int, error) {
	list, err := g.pending.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending copy trades: %w", err)
	}

	now := time.Now().UnixMilli()
	expired := 0
	for _, p := range list {
		if now <= p.ExpiresAt {
			continue
		}
		if err := g.pending.Delete(ctx, p.PendingID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue // resolved concurrently
			}
			return expired, fmt.Errorf("expire pending %s: %w", p.PendingID, err)
		}
		expired++
		g.logger.Info("pending copy trade expired",
			zap.String("pending_id", p.PendingID),
			zap.String("wallet", p.Wallet),
			zap.String("mint", p.Mint))
	}
	if expired > 0 {
		g.refreshPendingGauge(ctx)
	}
	return expired, nil
}

// ListPending returns the unresolved approval queue, oldest first.
func (g *Governor) ListPending(ctx context.Context) ([]*domain.PendingCopyTrade, error) {
	return g.pending.List(ctx)
}

// refreshPendingGauge republishes the approval queue depth. Best effort.
func (g *Governor) refreshPendingGauge(ctx context.Context) {
	list, err := g.pending.List(ctx)
	if err != nil {
		g.logger.Debug("pending gauge refresh failed", zap.Error(err))
		return
	}
	observability.SetPendingApprovals(len(list))
}

// RecordOutcome updates per-wallet cooldown state from a terminal close of
// a copy position. A loss starts the cooldown; a win clears it.
func (g *Governor) RecordOutcome(wallet string, pnl float64) {
	if wallet == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if pnl < 0 {
		g.lastLoss[wallet] = time.Now()
	} else {
		delete(g.lastLoss, wallet)
	}
}

// Enroll whitelists a wallet as a copy source. The address must be an
// on-curve ed25519 key: copy sources sign real transactions.
func (g *Governor) Enroll(ctx context.Context, w *domain.SmartWallet) error {
	if w == nil {
		return &domain.ValidationError{Field: "wallet", Reason: "required"}
	}
	if err := solana.ValidateWalletAddress(w.Address); err != nil {
		return &domain.ValidationError{Field: "address", Reason: err.Error()}
	}
	if w.WinRate < 0 || w.WinRate > 1 {
		return &domain.ValidationError{Field: "winRate", Reason: "must be within [0, 1]"}
	}
	if w.EnrolledAt == 0 {
		w.EnrolledAt = time.Now().UnixMilli()
	}

	if err := g.wallets.Insert(ctx, w); err != nil {
		return fmt.Errorf("enroll wallet %s: %w", w.Address, err)
	}

	g.logger.Info("smart wallet enrolled",
		zap.String("address", w.Address),
		zap.String("label", w.Label),
		zap.Float64("win_rate", w.WinRate))
	return nil
}

// Unenroll removes a wallet from the whitelist. Open positions copied from
// it are unaffected; the exit rules manage them.
func (g *Governor) Unenroll(ctx context.Context, address string) error {
	if err := g.wallets.Delete(ctx, address); err != nil {
		return err
	}
	g.logger.Info("smart wallet unenrolled", zap.String("address", address))
	return nil
}

// Wallets returns every enrolled wallet, oldest enrollment first.
func (g *Governor) Wallets(ctx context.Context) ([]*domain.SmartWallet, error) {
	return g.wallets.ListAll(ctx)
}
