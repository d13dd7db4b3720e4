// Package engine is the orchestration layer: evaluator verdicts flow
// through the capacity reservation into the executor and land in the
// ledger; terminal closes fan back out to the learning store and the copy
// governor. The engine also owns the hot trading config, the operator kill
// switch, and the halt latch that failing swaps escalate to.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-launch-trader/internal/copytrade"
	"solana-launch-trader/internal/domain"
	"solana-launch-trader/internal/evaluator"
	"solana-launch-trader/internal/execution"
	"solana-launch-trader/internal/exitpolicy"
	"solana-launch-trader/internal/ledger"
	"solana-launch-trader/internal/learning"
	"solana-launch-trader/internal/market"
	"solana-launch-trader/internal/observability"
	"solana-launch-trader/internal/solana"
	"solana-launch-trader/internal/storage"
)

var (
	// ErrTradingDisabled refuses new entries while the kill switch is
	// engaged. Evaluation and exits continue.
	ErrTradingDisabled = errors.New("trading disabled")

	// ErrHalted refuses new entries after an escalation tripped the halt
	// latch. Only a restart clears it.
	ErrHalted = errors.New("agent halted")
)

// Engine wires the decision pipeline together and exposes the operator
// surface the ops server serves. It constructs the ledger actor, the exit
// controller, and the copy governor itself: their callbacks (hot config,
// halt, close fan-out, copy entries) all terminate here.
type Engine struct {
	evaluator *evaluator.Evaluator
	learning  *learning.Store
	ledger    *ledger.Ledger
	exits     *exitpolicy.Controller
	governor  *copytrade.Governor

	positions storage.PositionStore
	decisions storage.DecisionLogStore
	events    storage.ExitEventStore

	launches market.LaunchSource
	executor execution.Executor
	metadata *solana.MetadataResolver
	logger   *zap.Logger

	swapTimeout time.Duration
	retryCap    int

	cfgMu sync.Mutex // serializes UpdateConfig
	cfg   atomic.Pointer[domain.TradingConfig]

	enabled    atomic.Bool
	halted     atomic.Bool
	haltMu     sync.Mutex
	haltReason string

	entryFails atomic.Int32

	startedAt  atomic.Int64 // Unix ms, 0 until Start
	lastEvalMs atomic.Int64
	lastExitMs atomic.Int64
}

// Options contains configuration for creating an Engine. All stores, the
// launch source, the market provider, and the executor are required.
type Options struct {
	Config     *domain.TradingConfig
	CopyConfig domain.CopyTradeConfig // zero value means defaults

	Positions storage.PositionStore
	Signals   storage.SignalRecordStore
	Decisions storage.DecisionLogStore
	Events    storage.ExitEventStore
	Wallets   storage.SmartWalletStore
	Pending   storage.PendingCopyTradeStore

	Launches market.LaunchSource
	Provider market.Provider
	Executor execution.Executor
	Metadata *solana.MetadataResolver // optional: names copy entries
	Logger   *zap.Logger

	SwapTimeout    time.Duration
	MaxSnapshotAge time.Duration
	RetryCap       int
	RetryBase      time.Duration
}

// New creates an engine and the components it owns. The trading config is
// validated up front; a bad one is a startup failure, not a halt.
func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		return nil, &domain.FatalConfigError{Reason: "trading config is required"}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Positions == nil || opts.Signals == nil || opts.Decisions == nil ||
		opts.Events == nil || opts.Wallets == nil || opts.Pending == nil {
		return nil, errors.New("engine: all stores are required")
	}
	if opts.Launches == nil || opts.Provider == nil || opts.Executor == nil {
		return nil, errors.New("engine: launch source, market provider, and executor are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		evaluator:   evaluator.NewEvaluator(),
		learning:    learning.NewStore(opts.Signals),
		positions:   opts.Positions,
		decisions:   opts.Decisions,
		events:      opts.Events,
		launches:    opts.Launches,
		executor:    opts.Executor,
		metadata:    opts.Metadata,
		logger:      logger,
		swapTimeout: opts.SwapTimeout,
		retryCap:    opts.RetryCap,
	}
	if e.swapTimeout <= 0 {
		e.swapTimeout = exitpolicy.DefaultSwapTimeout
	}
	if e.retryCap <= 0 {
		e.retryCap = exitpolicy.DefaultRetryCap
	}
	e.cfg.Store(opts.Config.Clone())
	e.enabled.Store(true)

	e.ledger = ledger.New(opts.Positions, e.Config,
		logger.With(zap.String("component", "ledger")))

	e.exits = exitpolicy.NewController(exitpolicy.ControllerOptions{
		Ledger:         e.ledger,
		Provider:       opts.Provider,
		Executor:       opts.Executor,
		Config:         e.Config,
		Events:         opts.Events,
		Logger:         logger.With(zap.String("component", "exitpolicy")),
		Halt:           e.halt,
		OnClose:        e.finalizeClose,
		SwapTimeout:    opts.SwapTimeout,
		MaxSnapshotAge: opts.MaxSnapshotAge,
		RetryCap:       opts.RetryCap,
		RetryBase:      opts.RetryBase,
	})

	copyCfg := opts.CopyConfig
	if copyCfg == (domain.CopyTradeConfig{}) {
		copyCfg = domain.DefaultCopyTradeConfig()
	}
	gov, err := copytrade.NewGovernor(copytrade.GovernorOptions{
		Config:  copyCfg,
		Wallets: opts.Wallets,
		Pending: opts.Pending,
		Logger:  logger.With(zap.String("component", "copytrade")),
		Enter:   e.enterCopy,
		Mirror:  e.mirrorSell,
	})
	if err != nil {
		return nil, fmt.Errorf("copy governor: %w", err)
	}
	e.governor = gov

	return e, nil
}

// Start warms the learning cache, reloads open positions, and starts the
// ledger actor. Call once, before any tick or feed traffic.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.learning.Load(ctx); err != nil {
		return fmt.Errorf("warm learning cache: %w", err)
	}
	if err := e.ledger.Recover(ctx); err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}
	e.ledger.Start()
	e.startedAt.Store(time.Now().UnixMilli())

	observability.SetKillSwitch(!e.enabled.Load())
	observability.SetHalted(e.halted.Load())

	exp, err := e.ledger.Exposure(ctx)
	if err != nil {
		return err
	}
	observability.UpdateExposure(exp.OpenPositions, exp.TotalSOL, exp.CopySOL)
	e.logger.Info("engine started",
		zap.Int("open_positions", exp.OpenPositions),
		zap.Float64("exposure_sol", exp.TotalSOL))
	return nil
}

// Stop shuts the ledger actor down. Operations racing the shutdown fail
// with ledger.ErrStopped.
func (e *Engine) Stop() {
	e.ledger.Stop()
	e.logger.Info("engine stopped")
}

// Config returns the live trading configuration. The returned value is
// shared and must not be mutated; changes go through UpdateConfig.
func (e *Engine) Config() *domain.TradingConfig {
	return e.cfg.Load()
}

// UpdateConfig validates a patch against the live config and swaps the
// result in atomically. On any validation failure nothing changes.
func (e *Engine) UpdateConfig(patch *domain.ConfigPatch) (*domain.TradingConfig, error) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	next, err := patch.Apply(e.cfg.Load())
	if err != nil {
		return nil, err
	}
	e.cfg.Store(next)
	e.logger.Info("trading config updated")
	return next, nil
}

// EnableTrading disengages the kill switch.
func (e *Engine) EnableTrading() {
	e.enabled.Store(true)
	observability.SetKillSwitch(false)
	e.logger.Info("trading enabled")
}

// DisableTrading engages the kill switch: new entries are refused, exits
// and evaluation continue.
func (e *Engine) DisableTrading() {
	e.enabled.Store(false)
	observability.SetKillSwitch(true)
	e.logger.Warn("trading disabled")
}

// TradingEnabled reports the kill switch state.
func (e *Engine) TradingEnabled() bool {
	return e.enabled.Load()
}

// halt latches the halted signal. Entries stop; exits keep running so the
// book can still be protected. The first reason wins.
func (e *Engine) halt(reason string) {
	e.haltMu.Lock()
	if e.haltReason == "" {
		e.haltReason = reason
	}
	e.haltMu.Unlock()
	e.halted.Store(true)
	observability.SetHalted(true)
	e.logger.Error("trading halted", zap.String("reason", reason))
}

// Halted reports the halt latch and the reason that tripped it.
func (e *Engine) Halted() (bool, string) {
	e.haltMu.Lock()
	defer e.haltMu.Unlock()
	return e.halted.Load(), e.haltReason
}

// entriesAllowed gates every entry attempt. The halt latch outranks the
// kill switch.
func (e *Engine) entriesAllowed() error {
	if e.halted.Load() {
		return ErrHalted
	}
	if !e.enabled.Load() {
		return ErrTradingDisabled
	}
	return nil
}

// Governor exposes the copy-trade governor for the feed consumer and the
// operator surface.
func (e *Engine) Governor() *copytrade.Governor {
	return e.governor
}

// Learning exposes signal rankings and the reset operation.
func (e *Engine) Learning() *learning.Store {
	return e.learning
}

// Status is the operator view served on /status.
type Status struct {
	Running          bool            `json:"running"`
	TradingEnabled   bool            `json:"tradingEnabled"`
	Halted           bool            `json:"halted"`
	HaltReason       string          `json:"haltReason,omitempty"`
	UptimeSeconds    int64           `json:"uptimeSeconds"`
	LastEvaluationAt int64           `json:"lastEvaluationAt"` // Unix ms, 0 = never
	LastExitCheckAt  int64           `json:"lastExitCheckAt"`  // Unix ms, 0 = never
	Exposure         ledger.Exposure `json:"exposure"`
}

// Status reports run state, tick recency, and live exposure.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	exp, err := e.ledger.Exposure(ctx)
	if err != nil {
		return nil, err
	}

	halted, reason := e.Halted()
	started := e.startedAt.Load()
	var uptime int64
	if started > 0 {
		uptime = (time.Now().UnixMilli() - started) / 1000
	}

	return &Status{
		Running:          started > 0,
		TradingEnabled:   e.enabled.Load(),
		Halted:           halted,
		HaltReason:       reason,
		UptimeSeconds:    uptime,
		LastEvaluationAt: e.lastEvalMs.Load(),
		LastExitCheckAt:  e.lastExitMs.Load(),
		Exposure:         exp,
	}, nil
}

// publishExposure refreshes the exposure gauges from the ledger.
func (e *Engine) publishExposure(ctx context.Context) {
	exp, err := e.ledger.Exposure(ctx)
	if err != nil {
		return
	}
	observability.UpdateExposure(exp.OpenPositions, exp.TotalSOL, exp.CopySOL)
}
